// Package encoding provides little-endian integer encode/decode helpers
// for the in-band chunk headers, footers, and free-list links.
package encoding

import "encoding/binary"

// PutU32 writes v to b[off:off+4] in little-endian order.
func PutU32(b []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(b[off:off+4], v)
}

// ReadU32 reads a little-endian uint32 from b[off:off+4].
func ReadU32(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off : off+4])
}

// PutI32 writes v to b[off:off+4] in little-endian order.
func PutI32(b []byte, off int, v int32) {
	binary.LittleEndian.PutUint32(b[off:off+4], uint32(v))
}

// ReadI32 reads a little-endian int32 from b[off:off+4].
func ReadI32(b []byte, off int) int32 {
	return int32(binary.LittleEndian.Uint32(b[off : off+4]))
}
