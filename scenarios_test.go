package malloc

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarioFillAndDrain reproduces the fill/drain property from the
// randomised exerciser this allocator's correctness is judged against: a
// deterministic pseudo-random sequence of allocate/free pairs against a
// fixed set of slots, verified clean and fully reclaimed at the end. The
// exerciser program itself is out of scope for this package; this test
// captures the same property inline so the core stays pinned without it.
func TestScenarioFillAndDrain(t *testing.T) {
	ctx := newTestContext(t, 10<<20)
	before := ctx.FreeMemory()

	const slots = 50
	ptrs := make([]Ptr, slots)

	rng := rand.New(rand.NewSource(1))

	for round := 0; round < 5000; round++ {
		j := rng.Intn(slots)

		if !ptrs[j].isNil() {
			ctx.Free(ptrs[j])
			ptrs[j] = Nil
			continue
		}

		size := rng.Intn(1000)
		ptr, payload, err := ctx.Allocate(size, ClassDefault)
		require.NoError(t, err)
		require.Len(t, payload, size)
		ptrs[j] = ptr
	}

	for _, p := range ptrs {
		if !p.isNil() {
			ctx.Free(p)
		}
	}

	require.NoError(t, ctx.Check())
	assert.Equal(t, before, ctx.FreeMemory())
}

// TestScenarioMultiBufferCoalescing exercises coalescing across a
// sequence that spans two independently-added buffers, checking after
// every step.
func TestScenarioMultiBufferCoalescing(t *testing.T) {
	ctx := newTestContext(t, 32<<20)
	require.NoError(t, ctx.AddBuffer(make([]byte, 16<<20)))
	require.NoError(t, ctx.Check())

	p1, _, err := ctx.Allocate(16<<20-1<<16, ClassDefault)
	require.NoError(t, err)
	require.NoError(t, ctx.Check())

	ctx.Free(p1)
	require.NoError(t, ctx.Check())

	p1, _, err = ctx.Allocate(24<<20-1<<16, ClassDefault)
	require.NoError(t, err)
	require.NoError(t, ctx.Check())

	p2, _, err := ctx.Allocate(6<<20, ClassDefault)
	require.NoError(t, err)
	require.NoError(t, ctx.Check())

	p3, _, err := ctx.Allocate(6<<20, ClassDefault)
	require.NoError(t, err)
	require.NoError(t, ctx.Check())

	ctx.Free(p1)
	require.NoError(t, ctx.Check())

	p1, _, err = ctx.Allocate(6<<20, ClassDefault)
	require.NoError(t, err)
	require.NoError(t, ctx.Check())

	ctx.Free(p3)
	require.NoError(t, ctx.Check())

	ctx.Free(p1)
	require.NoError(t, ctx.Check())

	ctx.Free(p2)
	require.NoError(t, ctx.Check())
}

// TestScenarioContextSwap pins independent accounting across two heaps
// interleaved through SetContext/GetContext.
func TestScenarioContextSwap(t *testing.T) {
	heapA := newTestContext(t, 1<<20)
	heapB := newTestContext(t, 1<<20)

	SetContext(heapA)
	ptrA, _, err := GetContext().Allocate(128, ClassDefault)
	require.NoError(t, err)

	SetContext(heapB)
	ptrB, _, err := GetContext().Allocate(256, ClassDefault)
	require.NoError(t, err)

	assert.NotEqual(t, heapA.FreeMemory(), heapB.FreeMemory())

	SetContext(heapA)
	GetContext().Free(ptrA)
	require.NoError(t, GetContext().Check())

	SetContext(heapB)
	GetContext().Free(ptrB)
	require.NoError(t, GetContext().Check())
}
