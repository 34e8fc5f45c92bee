package malloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckCleanOnFreshContext(t *testing.T) {
	ctx := newTestContext(t, 1<<16)
	require.NoError(t, ctx.Check())
}

func TestCheckCatchesCorruptedHeader(t *testing.T) {
	ctx := newTestContext(t, 1<<16)

	ptr, _, err := ctx.Allocate(64, ClassDefault)
	require.NoError(t, err)
	ctx.Free(ptr)
	require.NoError(t, ctx.Check())

	// Directly corrupt the header size field of the one free chunk, as a
	// fuzzer might simulate a stray write. Check must notice.
	r := fromPtr(ptr)
	buf := ctx.buffers[r.buf].data
	view := chunkView{b: buf, off: r.off}
	view.setHeaderWord(packHeader(0, view.size()+8))

	assert.ErrorIs(t, ctx.Check(), ErrCorrupted)
}

func TestCheckDetectsFreeMemoryDrift(t *testing.T) {
	ctx := newTestContext(t, 1<<16)
	ctx.freeMemory += 100 // simulate accounting drift
	assert.ErrorIs(t, ctx.Check(), ErrCorrupted)
}
