package malloc

import (
	"github.com/cockroachdb/errors"

	"github.com/esneider/malloc/internal/encoding"
)

// split turns the free chunk at r into an in-use chunk of exactly
// requestedSize bytes (rounding up to absorb any leftover too small to
// host a free chunk of its own), publishing the remainder back to the
// free lists when one survives. r must already be unlinked from its bin.
func (c *Context) split(r ref, requestedSize int32) (Ptr, []byte) {
	block := c.at(r)
	leftover := block.size() - requestedSize
	size := requestedSize

	if leftover < MinFreeChunkSize {
		size += leftover
		leftover = 0
	}

	block.setInUse(size)

	if leftover > 0 {
		remainder := ref{buf: r.buf, off: r.off + size}
		c.addFreeChunk(remainder, leftover)
		c.lastChunk = remainder
		c.lastChunkSize = leftover
	} else {
		c.lastChunkSize = 0
	}

	c.freeMemory -= int64(size)

	return r.toPtr(), c.at(r).payload()
}

// Allocate reserves n bytes and returns a handle to them, the n-byte
// payload slice itself, and a nil error. On failure it returns the zero Ptr, a
// nil slice, and a non-nil error; no state is changed other than by any
// external-allocator call that was attempted.
func (c *Context) Allocate(n int, cls Class) (Ptr, []byte, error) {
	if !c.initialized {
		return Nil, nil, ErrNotInitialized
	}
	assertf(n >= 0, "Allocate: negative size %d", n)

	need64, ok := encoding.AddOverflowSafe(int64(n), MinInUseChunkSize)
	if !ok {
		return Nil, nil, errors.Wrapf(ErrTooLarge, "requested %d bytes", n)
	}
	if need64 < MinFreeChunkSize {
		need64 = MinFreeChunkSize
	}
	if need64 >= maxChunkSize {
		return Nil, nil, errors.Wrapf(ErrTooLarge, "requested %d bytes", n)
	}
	need := int32(need64)

	if need64 > c.freeMemory {
		return c.outOfMemory(n, need, cls)
	}

	bin, ok := findBin(need64)
	if !ok {
		return Nil, nil, errors.Wrapf(ErrTooLarge, "requested %d bytes", n)
	}

	for c.binIsEmpty(bin) {
		bin++
		if bin >= numBins {
			return c.outOfMemory(n, need, cls)
		}
	}

	chunk := c.findChunk(bin, need)

	if chunk.equal(headRef(bin)) {
		for {
			bin++
			if bin >= numBins {
				return c.outOfMemory(n, need, cls)
			}
			if !c.binIsEmpty(bin) {
				break
			}
		}
		chunk = c.next(headRef(bin))
	}

	if c.chunkSize(chunk) > need && need <= MaxSmallRequest && c.lastChunkSize >= need {
		chunk = c.lastChunk
	}

	c.unlink(chunk)

	ptr, payload := c.split(chunk, need)
	return ptr, payload[:n], nil
}

// Callocate is Allocate(count*size, cls) with the returned payload
// zero-filled, mirroring the historical calloc contract. The original
// implementation this package is ported from never implemented calloc;
// this is a supplement grounded in that contract, built atop Allocate.
func (c *Context) Callocate(count, size int, cls Class) (Ptr, []byte, error) {
	assertf(count >= 0 && size >= 0, "Callocate: negative count=%d size=%d", count, size)

	total, ok := mulOverflowSafe(count, size)
	if !ok {
		return Nil, nil, errors.Wrapf(ErrTooLarge, "count=%d * size=%d overflows", count, size)
	}

	ptr, payload, err := c.Allocate(total, cls)
	if err != nil {
		return Nil, nil, err
	}

	for i := range payload {
		payload[i] = 0
	}

	return ptr, payload, nil
}

func mulOverflowSafe(a, b int) (int, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	r := a * b
	if r/b != a {
		return 0, false
	}
	return r, true
}

// Free releases the chunk named by p, coalescing it with any free
// neighbour on either side. Free(Nil) is a no-op. Freeing a Ptr that
// does not name a chunk this Context currently considers allocated is a
// programmer error and panics rather than corrupting the heap silently.
//
// Free returns error for interface symmetry with Allocate/Callocate/
// Reallocate, though every failure mode it currently detects is a
// programmer error and panics rather than returning.
func (c *Context) Free(p Ptr) error {
	if p.isNil() {
		return nil
	}
	assertf(c.initialized, "Free: context not initialized")

	r := fromPtr(p)
	assertf(r.buf >= 0 && int(r.buf) < len(c.buffers), "Free: invalid buffer index %d", r.buf)

	buf := c.buffers[r.buf].data
	assertf(r.off >= 0 && int64(r.off) < int64(len(buf)), "Free: offset %d out of range", r.off)

	block := chunkView{b: buf, off: r.off}
	word := block.headerWord()
	assertf(isInUseWord(word), "Free: chunk at %v is not in use", p)

	size := unpackSize(word)
	assertf(int64(r.off)+int64(size) <= int64(len(buf)), "Free: chunk at %v overruns its buffer", p)
	assertf(block.footerSize() == size, "Free: chunk at %v has mismatched header/footer size", p)

	c.freeMemory += int64(size)

	pos := r.off

	// Coalesce with the previous chunk, which is always safe to inspect
	// because every buffer begins with an in-use sentinel.
	if pos > 0 {
		prevSize := footerSizeBefore(buf, pos)
		prevOff := pos - prevSize
		assertf(prevOff >= 0, "Free: corrupt previous-chunk footer at %v", p)

		prevBlock := chunkView{b: buf, off: prevOff}
		if prevBlock.isFree() {
			assertf(prevBlock.size() == prevSize, "Free: previous chunk size mismatch at %v", p)
			c.unlink(ref{buf: r.buf, off: prevOff})
			size += prevSize
			pos = prevOff
		}
	}

	size = c.coalesceNext(r.buf, buf, pos, size)

	c.addFreeChunk(ref{buf: r.buf, off: pos}, size)

	return nil
}

// coalesceNext checks whether the chunk immediately following pos (of
// size bytes, within buf) is free, and if so unlinks it and returns the
// merged size. It is the half of Free's coalescing logic that applies
// equally to a tail fragment carved off during an in-place Reallocate
// shrink, which by construction has no free predecessor to check (its
// predecessor is the in-use block being shrunk).
func (c *Context) coalesceNext(bufIdx int32, buf []byte, pos, size int32) int32 {
	if int64(pos)+int64(size) >= int64(len(buf)) {
		return size
	}

	nextOff := pos + size
	nextBlock := chunkView{b: buf, off: nextOff}
	nextWord := nextBlock.headerWord()

	if !isFreeWord(nextWord) {
		return size
	}

	nextSize := unpackSize(nextWord)
	assertf(nextBlock.footerSize() == nextSize, "coalesceNext: size mismatch at offset %d", nextOff)

	nextRef := ref{buf: bufIdx, off: nextOff}
	if c.lastChunk.equal(nextRef) {
		c.lastChunkSize = 0
	}
	c.unlink(nextRef)

	return size + nextSize
}

// Reallocate resizes the chunk named by p to n bytes, preserving the
// leading min(old payload, n) bytes. Passing the zero Ptr behaves as
// Allocate(n, cls).
func (c *Context) Reallocate(p Ptr, n int, cls Class) (Ptr, []byte, error) {
	if p.isNil() {
		return c.Allocate(n, cls)
	}
	assertf(n >= 0, "Reallocate: negative size %d", n)

	r := fromPtr(p)
	buf := c.buffers[r.buf].data
	block := chunkView{b: buf, off: r.off}
	assertf(isInUseWord(block.headerWord()), "Reallocate: chunk at %v is not in use", p)

	cur := block.size()

	need64, ok := encoding.AddOverflowSafe(int64(n), MinInUseChunkSize)
	if !ok || need64 >= maxChunkSize {
		return Nil, nil, errors.Wrapf(ErrTooLarge, "requested %d bytes", n)
	}
	if need64 < MinFreeChunkSize {
		need64 = MinFreeChunkSize
	}
	need := int32(need64)

	if need <= cur {
		if cur-need < MinFreeChunkSize {
			return p, block.payload(), nil
		}

		block.setInUse(need)
		tailOff := r.off + need
		freed := cur - need
		tailSize := c.coalesceNext(r.buf, buf, tailOff, freed)
		c.addFreeChunk(ref{buf: r.buf, off: tailOff}, tailSize)
		c.freeMemory += int64(freed)
		c.lastChunk = ref{buf: r.buf, off: tailOff}
		c.lastChunkSize = tailSize

		return p, chunkView{b: buf, off: r.off}.payload(), nil
	}

	if int64(r.off)+int64(cur) < int64(len(buf)) {
		nextOff := r.off + cur
		nextBlock := chunkView{b: buf, off: nextOff}
		nextWord := nextBlock.headerWord()

		// The historical implementation this is ported from inverts
		// this comparison (it checks next.size+cur < need, the
		// opposite of "is there enough room"); this port uses the
		// corrected direction, pinned by a regression test.
		if isFreeWord(nextWord) && int64(unpackSize(nextWord))+int64(cur) >= int64(need) {
			nextSize := unpackSize(nextWord)
			nextRef := ref{buf: r.buf, off: nextOff}

			if c.lastChunk.equal(nextRef) {
				c.lastChunkSize = 0
			}
			c.unlink(nextRef)

			total := cur + nextSize
			block.setInUse(total)
			c.freeMemory -= int64(nextSize)

			return p, chunkView{b: buf, off: r.off}.payload(), nil
		}
	}

	newPtr, newPayload, err := c.Allocate(n, cls)
	if err != nil {
		return Nil, nil, err
	}

	oldPayload := block.payload()
	copy(newPayload, oldPayload)

	c.Free(p)

	return newPtr, newPayload, nil
}

// outOfMemory is invoked when the internal pool cannot serve a request
// of need bytes. With no external allocator registered, or if it
// declines, allocation fails. Otherwise the callback's region is handed
// to AddBuffer and the original request retried exactly once.
func (c *Context) outOfMemory(n int, need int32, cls Class) (Ptr, []byte, error) {
	if c.externalAlloc == nil {
		return Nil, nil, ErrOutOfMemory
	}

	ask := int(need) + 2*MinInUseChunkSize

	grown, ok := c.externalAlloc(ask)
	if !ok || len(grown) < ask {
		return Nil, nil, errors.Wrapf(ErrOutOfMemory, "external allocator declined %d bytes", ask)
	}

	if err := c.AddBuffer(grown); err != nil {
		return Nil, nil, errors.Wrapf(err, "adding externally-grown buffer")
	}

	return c.Allocate(n, cls)
}
