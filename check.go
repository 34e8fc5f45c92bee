package malloc

import (
	"github.com/cockroachdb/errors"

	"github.com/esneider/malloc/internal/encoding"
)

// Check walks every free list, validating header/footer consistency,
// linkage, and bin placement, then confirms the sum of what it walked
// matches FreeMemory. It never mutates state. A nil return means no
// inconsistency was found; this is a best-effort diagnostic, not a
// guarantee of a fully sound heap, since some forms of corruption (e.g.
// a payload write that overruns into a neighbour's header while both
// remain in-use) are invisible to a free-list walk.
func (c *Context) Check() error {
	if !c.initialized {
		return ErrNotInitialized
	}

	residual := c.freeMemory

	for bin := range c.bins {
		head := headRef(bin)
		prev := head

		chunk := c.next(head)
		for !chunk.equal(head) {
			if chunk.buf < 0 || int(chunk.buf) >= len(c.buffers) {
				return errors.Wrapf(ErrCorrupted, "bin %d: chunk %v names an unknown buffer", bin, chunk)
			}

			buf := c.buffers[chunk.buf].data
			if !hasRoom(buf, chunk.off, MinFreeChunkSize) {
				return errors.Wrapf(ErrCorrupted, "bin %d: chunk %v is out of bounds", bin, chunk)
			}

			view := chunkView{b: buf, off: chunk.off}
			word := view.headerWord()

			if !isFreeWord(word) {
				return errors.Wrapf(ErrCorrupted, "bin %d: chunk %v is not marked free", bin, chunk)
			}

			size := unpackSize(word)
			if !hasRoom(buf, chunk.off, size) {
				return errors.Wrapf(ErrCorrupted, "bin %d: chunk %v claims size %d beyond its buffer", bin, chunk, size)
			}
			if view.footerSize() != size {
				return errors.Wrapf(ErrCorrupted, "bin %d: chunk %v header/footer size mismatch", bin, chunk)
			}

			wantBin, ok := findBin(int64(size))
			if !ok || wantBin != bin {
				return errors.Wrapf(ErrCorrupted, "bin %d: chunk %v of size %d belongs in bin %d", bin, chunk, size, wantBin)
			}

			if !c.prev(chunk).equal(prev) {
				return errors.Wrapf(ErrCorrupted, "bin %d: chunk %v has inconsistent prev link", bin, chunk)
			}

			residual -= int64(size)

			prev = chunk
			chunk = c.next(chunk)
		}

		if !c.prev(head).equal(prev) {
			return errors.Wrapf(ErrCorrupted, "bin %d: head's prev link does not point to the list tail", bin)
		}
	}

	if residual != 0 {
		return errors.Wrapf(ErrCorrupted, "FreeMemory accounting off by %d bytes", residual)
	}

	return nil
}

func hasRoom(buf []byte, off, size int32) bool {
	if size <= 0 {
		return false
	}
	return encoding.Has(buf, int64(off), int64(size))
}
