package malloc

import "github.com/cockroachdb/errors"

var (
	// ErrOutOfMemory indicates that no chunk large enough was found and
	// growth (if any external allocator is registered) failed or was
	// declined.
	ErrOutOfMemory = errors.New("malloc: out of memory")

	// ErrTooLarge indicates that a requested size is at or beyond the
	// largest representable chunk size (2 GiB).
	ErrTooLarge = errors.New("malloc: request exceeds maximum chunk size")

	// ErrNilBuffer indicates Init or AddBuffer was called with a nil or
	// empty buffer.
	ErrNilBuffer = errors.New("malloc: buffer is nil or empty")

	// ErrNotInitialized indicates a method was called on a Context that
	// has never been passed to Init.
	ErrNotInitialized = errors.New("malloc: context not initialized")

	// ErrCorrupted is returned by Check when a structural inconsistency
	// is found. It is never returned by any mutating operation.
	ErrCorrupted = errors.New("malloc: heap corruption detected")
)

// assertf panics with a structured, non-recoverable error built from
// cockroachdb/errors. It signals a programmer error (double free, freeing
// an address this Context never allocated, a corrupt in-band structure
// reached mid-operation) rather than an ordinary failure condition; the
// caller broke an invariant the allocator cannot safely continue from.
func assertf(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(errors.AssertionFailedf(format, args...))
	}
}
