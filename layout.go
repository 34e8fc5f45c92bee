package malloc

import "github.com/esneider/malloc/internal/encoding"

// Chunk layout, relative to a chunk's starting offset:
//
//	in-use:  [0:4) header word   [4:size-4) payload        [size-4:size) footer
//	free:    [0:4) header word   [4:12) prev ref  [12:20) next ref  ...  [size-4:size) footer
//
// The header word packs a one-bit status flag into the top bit of a
// uint32 and the chunk's total size (header + payload/links + footer)
// into the low 31 bits. The footer duplicates the size as a plain int32,
// letting free coalesce backward in O(1) without a status bit of its
// own (the block it describes always carries one).
const (
	headerWordSize = 4
	footerSize     = 4
	refSize        = 8 // one ref (buf int32, off int32)

	// MinInUseChunkSize is the smallest chunk capable of carrying an
	// in-use header and footer with no payload.
	MinInUseChunkSize = headerWordSize + footerSize

	// MinFreeChunkSize is the smallest chunk capable of carrying a free
	// header, both free-list links, and a footer.
	MinFreeChunkSize = headerWordSize + 2*refSize + footerSize

	// MaxSmallRequest is the largest chunk size (payload plus header and
	// footer) eligible for the locality heuristic in Allocate.
	MaxSmallRequest = 256

	statusBit uint32 = 1 << 31
)

func packHeader(status uint32, size int32) uint32 {
	return status | uint32(size)
}

func unpackStatus(word uint32) uint32 { return word & statusBit }
func unpackSize(word uint32) int32    { return int32(word &^ statusBit) }

func isFreeWord(word uint32) bool  { return unpackStatus(word) == 0 }
func isInUseWord(word uint32) bool { return unpackStatus(word) == statusBit }

// chunkView is a cursor onto a single chunk within one of a Context's
// managed buffers. It never crosses a buffer boundary: callers build one
// from the slice of the buffer off belongs to, directly or via
// (*Context).at.
type chunkView struct {
	b   []byte
	off int32
}

func (v chunkView) headerWord() uint32 {
	return encoding.ReadU32(v.b, int(v.off))
}

func (v chunkView) setHeaderWord(word uint32) {
	encoding.PutU32(v.b, int(v.off), word)
}

func (v chunkView) size() int32 { return unpackSize(v.headerWord()) }

func (v chunkView) isFree() bool { return isFreeWord(v.headerWord()) }

func (v chunkView) footerOffset() int32 { return v.off + v.size() - footerSize }

func (v chunkView) footerSize() int32 {
	return encoding.ReadI32(v.b, int(v.footerOffset()))
}

func (v chunkView) setFooterSize(size int32) {
	encoding.PutI32(v.b, int(v.footerOffset()), size)
}

func (v chunkView) setInUse(size int32) {
	v.setHeaderWord(packHeader(statusBit, size))
	v.setFooterSize(size)
}

func (v chunkView) setFree(size int32) {
	v.setHeaderWord(packHeader(0, size))
	v.setFooterSize(size)
}

func (v chunkView) payload() []byte {
	size := v.size()
	return v.b[v.off+headerWordSize : v.off+size-footerSize]
}

func (v chunkView) readLink(fieldOff int32) ref {
	base := int(v.off + fieldOff)
	return ref{
		buf: encoding.ReadI32(v.b, base),
		off: encoding.ReadI32(v.b, base+4),
	}
}

func (v chunkView) writeLink(fieldOff int32, r ref) {
	base := int(v.off + fieldOff)
	encoding.PutI32(v.b, base, r.buf)
	encoding.PutI32(v.b, base+4, r.off)
}

const (
	prevFieldOffset = headerWordSize
	nextFieldOffset = headerWordSize + refSize
)

func (v chunkView) prevRef() ref     { return v.readLink(prevFieldOffset) }
func (v chunkView) nextRef() ref     { return v.readLink(nextFieldOffset) }
func (v chunkView) setPrevRef(r ref) { v.writeLink(prevFieldOffset, r) }
func (v chunkView) setNextRef(r ref) { v.writeLink(nextFieldOffset, r) }

// footerSizeBefore reads the size recorded in the footer immediately
// preceding off, i.e. the size of the chunk ending right before off.
func footerSizeBefore(b []byte, off int32) int32 {
	return encoding.ReadI32(b, int(off-footerSize))
}
