package heap_test

import (
	"math"
	"testing"

	"github.com/mna/notlox/lang/heap"
	"github.com/stretchr/testify/require"
)

func TestHashableValueRoundTrip(t *testing.T) {
	cases := []heap.Value{
		heap.NilValue,
		heap.Number(3.5),
		heap.Boolean(true),
		heap.String("hi"),
		heap.RefID(2),
		heap.Range{Lo: 1, Hi: 4},
	}
	for _, v := range cases {
		hv, err := heap.ToHashable(v)
		require.NoError(t, err)
		require.Equal(t, v, hv.Value())
	}
}

func TestToHashableRejectsNonFiniteFloats(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := heap.ToHashable(heap.Number(f))
		require.Error(t, err)
	}
}

func TestToHashableNormalizesSignedZero(t *testing.T) {
	pos, err := heap.ToHashable(heap.Number(0))
	require.NoError(t, err)
	neg, err := heap.ToHashable(heap.Number(math.Copysign(0, -1)))
	require.NoError(t, err)
	require.Equal(t, pos, neg)
}

func TestHashableValueTagOrdering(t *testing.T) {
	// Nil < Number < Boolean < String < RefID < Range
	values := []heap.Value{
		heap.NilValue,
		heap.Number(0),
		heap.Boolean(false),
		heap.String(""),
		heap.RefID(0),
		heap.Range{},
	}
	hashed := make([]heap.HashableValue, len(values))
	for i, v := range values {
		hv, err := heap.ToHashable(v)
		require.NoError(t, err)
		hashed[i] = hv
	}
	for i := 0; i < len(hashed)-1; i++ {
		require.True(t, hashed[i].Less(hashed[i+1]), "index %d should sort before %d", i, i+1)
	}
}

func TestToHashableRejectsMapForContext(t *testing.T) {
	_, err := heap.ToHashable(heap.MapForContext{})
	require.Error(t, err)
}

func TestHeapAllocAndGet(t *testing.T) {
	h := heap.New()
	ref := h.Alloc(heap.NewArrayObject())
	arr, err := h.Array(ref)
	require.NoError(t, err)
	arr.Elems = append(arr.Elems, heap.Number(1))

	got, err := h.Array(ref)
	require.NoError(t, err)
	require.Equal(t, []heap.Value{heap.Number(1)}, got.Elems)
}

func TestHeapArrayAsMapIsTypeError(t *testing.T) {
	h := heap.New()
	ref := h.Alloc(heap.NewMapObject())
	_, err := h.Array(ref)
	require.Error(t, err)
	var terr *heap.TypeError
	require.ErrorAs(t, err, &terr)
}

func TestHeapResetClearsObjects(t *testing.T) {
	h := heap.New()
	h.Alloc(heap.NewArrayObject())
	h.Alloc(heap.NewArrayObject())
	require.Len(t, h.Objects, 2)
	h.Reset()
	require.Empty(t, h.Objects)
}

func TestArrayObjectGrowPadsWithNil(t *testing.T) {
	a := heap.NewArrayObject()
	a.Grow(2)
	require.Equal(t, []heap.Value{heap.NilValue, heap.NilValue, heap.NilValue}, a.Elems)
}

func TestMapObjectGetSetLen(t *testing.T) {
	m := heap.NewMapObject()
	k, err := heap.ToHashable(heap.String("a"))
	require.NoError(t, err)

	_, ok := m.Get(k)
	require.False(t, ok)

	m.Set(k, heap.Number(1))
	v, ok := m.Get(k)
	require.True(t, ok)
	require.Equal(t, heap.Number(1), v)
	require.Equal(t, 1, m.Len())
}
