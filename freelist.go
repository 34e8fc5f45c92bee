package malloc

// next and prev read a free list's links uniformly whether r names a bin
// head or a chunk living in a managed buffer.
func (c *Context) next(r ref) ref {
	if r.isHead() {
		return c.bins[r.off].next
	}
	return c.at(r).nextRef()
}

func (c *Context) prev(r ref) ref {
	if r.isHead() {
		return c.bins[r.off].prev
	}
	return c.at(r).prevRef()
}

func (c *Context) setNext(r, v ref) {
	if r.isHead() {
		c.bins[r.off].next = v
		return
	}
	c.at(r).setNextRef(v)
}

func (c *Context) setPrev(r, v ref) {
	if r.isHead() {
		c.bins[r.off].prev = v
		return
	}
	c.at(r).setPrevRef(v)
}

// chunkSize reports the size of the chunk named by r. r must not be a
// bin head.
func (c *Context) chunkSize(r ref) int32 {
	return c.at(r).size()
}

// findChunk returns the first chunk in bin whose size is >= size, or the
// bin's own head if none qualifies (an empty result, in the sense that
// the head never holds live data).
func (c *Context) findChunk(bin int, size int32) ref {
	head := headRef(bin)
	chunk := head

	for {
		chunk = c.next(chunk)
		if chunk.equal(head) || c.chunkSize(chunk) >= size {
			break
		}
	}

	return chunk
}

// findUpperChunk returns the first chunk in bin whose size is > size
// (strict), or the head if none qualifies. Used on insertion: picking the
// strict upper bound, rather than findChunk's inclusive one, places new
// entries after any existing chunks of the same size, giving bins a
// least-recently-used order among equal-size chunks that keeps
// fragmentation low.
func (c *Context) findUpperChunk(bin int, size int32) ref {
	head := headRef(bin)
	chunk := head

	for {
		chunk = c.next(chunk)
		if chunk.equal(head) || c.chunkSize(chunk) > size {
			break
		}
	}

	return chunk
}

// unlink removes r, which must currently be linked into some bin list,
// from that list. It does not alter the chunk's header or footer.
func (c *Context) unlink(r ref) {
	p, n := c.prev(r), c.next(r)
	c.setNext(p, n)
	c.setPrev(n, p)
}

// addFreeChunk installs a free header and footer covering size bytes
// starting at r, then inserts it into the bin matching size, just before
// the first strictly-larger chunk. It does not touch FreeMemory; callers
// adjust that themselves, since the bookkeeping differs between a brand
// new buffer (add) and a split remainder (no change) and a freed chunk
// (add back what was taken).
func (c *Context) addFreeChunk(r ref, size int32) {
	assertf(size >= MinFreeChunkSize, "addFreeChunk: size %d below minimum %d", size, MinFreeChunkSize)

	c.at(r).setFree(size)

	bin, ok := findBin(int64(size))
	assertf(ok, "addFreeChunk: size %d has no bin", size)

	next := c.findUpperChunk(bin, size)
	prev := c.prev(next)

	c.setNext(r, next)
	c.setPrev(r, prev)
	c.setNext(prev, r)
	c.setPrev(next, r)
}

// binIsEmpty reports whether bin holds no chunks.
func (c *Context) binIsEmpty(bin int) bool {
	head := headRef(bin)
	return c.bins[bin].next.equal(head)
}
