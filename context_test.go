package malloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitIgnoresTinyBuffer(t *testing.T) {
	buf := make([]byte, 4)
	ctx, err := New(buf)
	require.NoError(t, err)
	assert.Equal(t, int64(0), ctx.FreeMemory())
}

func TestInitAcceptsMinimalBuffer(t *testing.T) {
	size := 2*MinInUseChunkSize + MinFreeChunkSize
	buf := make([]byte, size)
	ctx, err := New(buf)
	require.NoError(t, err)
	assert.Equal(t, int64(MinFreeChunkSize), ctx.FreeMemory())
	require.NoError(t, ctx.Check())
}

func TestAddBufferExtendsFreeMemory(t *testing.T) {
	ctx, err := New(make([]byte, 4096))
	require.NoError(t, err)

	before := ctx.FreeMemory()
	require.NoError(t, ctx.AddBuffer(make([]byte, 4096)))
	assert.Greater(t, ctx.FreeMemory(), before)
	require.NoError(t, ctx.Check())
}

func TestAddBufferIgnoresUndersizedRegion(t *testing.T) {
	ctx, err := New(make([]byte, 4096))
	require.NoError(t, err)

	before := ctx.FreeMemory()
	require.NoError(t, ctx.AddBuffer(make([]byte, 8)))
	assert.Equal(t, before, ctx.FreeMemory())
}

func TestGetSetContext(t *testing.T) {
	a, err := New(make([]byte, 4096))
	require.NoError(t, err)
	b, err := New(make([]byte, 4096))
	require.NoError(t, err)

	SetContext(a)
	assert.Same(t, a, GetContext())

	SetContext(b)
	assert.Same(t, b, GetContext())
}
