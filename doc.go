// Package malloc implements a general-purpose dynamic memory allocator over
// caller-supplied byte buffers.
//
// # Overview
//
// A Context manages one or more buffers, carving each into chunks delimited
// by in-band boundary tags (a header at the front, a duplicate size footer
// at the back). Free chunks are kept in 89 size-segregated bins, each a
// circular doubly-linked list. Allocation walks the smallest bin that can
// satisfy a request; freeing a chunk eagerly coalesces it with any free
// neighbour.
//
// # Usage
//
//	buf := make([]byte, 1<<20)
//	ctx, err := malloc.New(buf)
//	if err != nil {
//		// buf is empty, or 2 GiB or larger; a buffer too small to host
//		// the two sentinels plus a free chunk is ignored, not an error
//	}
//	ptr, data, err := ctx.Allocate(128, malloc.ClassDefault)
//	// ... use data ...
//	err = ctx.Free(ptr)
//
// # Handles
//
// Unlike the historical C implementation this package is ported from,
// chunks are never addressed by raw pointer. A Ptr is a small, comparable
// value identifying a chunk by buffer index and byte offset; it is safe to
// store, compare, and pass across goroutine boundaries (though the
// allocator itself is not safe for concurrent use — see below).
//
// # Growth
//
// A Context can be told, via SetExternalAlloc, how to obtain more memory
// when its current buffers are exhausted. The callback is invoked with the
// minimum byte count needed and may decline by returning false.
//
// # Thread safety
//
// None of the exported methods are safe for concurrent use on the same
// Context. Callers needing concurrency must serialize externally or use
// one Context per goroutine.
package malloc
