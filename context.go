package malloc

import "github.com/cockroachdb/errors"

// binHead is the dummy node heading one free list. Unlike a chunk's
// links, which live in-band inside a managed buffer, a bin head's links
// are ordinary Go fields: the original implementation embeds its bin
// table inside the managed memory itself, but nothing in this design
// requires that, and keeping it out of any buffer means a bin head is
// never mistaken for user-visible memory.
type binHead struct {
	prev ref
	next ref
}

// Context owns a set of managed buffers and the free-list bins that
// index their free chunks. The zero Context is not usable; construct one
// with New or Init.
type Context struct {
	buffers []buffer

	bins [numBins]binHead

	freeMemory    int64
	lastChunk     ref
	lastChunkSize int32

	externalAlloc ExternalAllocFunc
	initialized   bool
}

type buffer struct {
	data []byte
}

// New allocates a Context and initializes it with buf as its first
// managed buffer. It is a convenience wrapper over Init.
func New(buf []byte) (*Context, error) {
	c := &Context{}
	if err := c.Init(buf); err != nil {
		return nil, err
	}
	return c, nil
}

// Init resets c to a fresh state and installs buf as its first managed
// buffer. Any previously managed buffers, live allocations, and the
// external-allocator hook are discarded. Init must precede every other
// method, directly or via SetContext from an already-initialized
// Context.
func (c *Context) Init(buf []byte) error {
	c.buffers = nil
	c.freeMemory = 0
	c.lastChunk = ref{}
	c.lastChunkSize = 0
	c.externalAlloc = nil

	for i := range c.bins {
		h := headRef(i)
		c.bins[i] = binHead{prev: h, next: h}
	}

	c.initialized = true

	return c.AddBuffer(buf)
}

// AddBuffer gives c another region of memory to manage. The region is
// bounded at both ends by minimal in-use sentinel chunks so that
// coalescing logic never needs to check whether it has walked off the
// edge of a buffer; its interior becomes one large free chunk.
//
// A buffer too small to host both sentinels plus a minimum-size free
// chunk is silently ignored (not added, no error): this mirrors the
// original implementation's treatment of buffers below its size floor,
// and callers that care can detect it by comparing FreeMemory before and
// after.
func (c *Context) AddBuffer(buf []byte) error {
	if !c.initialized {
		return ErrNotInitialized
	}
	if len(buf) == 0 {
		return ErrNilBuffer
	}
	if int64(len(buf)) >= maxChunkSize {
		return errors.Wrapf(ErrTooLarge, "buffer of %d bytes", len(buf))
	}

	const boundSize = MinInUseChunkSize

	size := int32(len(buf))
	if size < 2*boundSize+MinFreeChunkSize {
		return nil
	}

	idx := int32(len(c.buffers))
	c.buffers = append(c.buffers, buffer{data: buf})

	chunkView{b: buf, off: 0}.setInUse(boundSize)
	chunkView{b: buf, off: size - boundSize}.setInUse(boundSize)

	interior := size - 2*boundSize
	c.addFreeChunk(ref{buf: idx, off: boundSize}, interior)
	c.freeMemory += int64(interior)

	return nil
}

// at returns a chunkView for r, which must refer to a chunk inside a
// managed buffer (never a bin head).
func (c *Context) at(r ref) chunkView {
	return chunkView{b: c.buffers[r.buf].data, off: r.off}
}

// SetExternalAlloc registers the callback used to obtain more memory when
// c's managed buffers are exhausted. Passing nil disables growth.
func (c *Context) SetExternalAlloc(fn ExternalAllocFunc) {
	c.externalAlloc = fn
}

// FreeMemory reports the number of bytes currently held in free chunks
// across every managed buffer, including header/footer/link overhead —
// it is the same whole-block accounting the original implementation
// uses, not a count of bytes available to a single allocation request.
func (c *Context) FreeMemory() int64 {
	return c.freeMemory
}

// currentContext backs the package-level GetContext/SetContext façade.
// It exists purely for API parity with the historical global-context
// entry points; nothing in this package reads it internally, since every
// method already takes its Context explicitly.
var currentContext *Context

// GetContext returns the Context most recently installed with
// SetContext, or nil if none has been.
func GetContext() *Context {
	return currentContext
}

// SetContext installs ctx as the Context returned by subsequent calls to
// GetContext. It does not itself change which Context any in-flight
// operation is using; it is a convenience for callers who want a single
// ambient heap rather than threading a *Context through their own code.
func SetContext(ctx *Context) {
	currentContext = ctx
}
