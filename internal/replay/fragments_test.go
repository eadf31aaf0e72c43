package replay

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFragments_SparseIDs(t *testing.T) {
	f := NewFragments(
		Fragment{ID: 5, Data: []byte("e")},
		Fragment{ID: 1, Data: []byte("a")},
		Fragment{ID: 3, Data: []byte("c")},
	)

	assert.Equal(t, 3, f.Len())
	assert.Equal(t, 6, f.Span())
	assert.Equal(t, []uint16{1, 3, 5}, f.IDs())

	var got []uint16
	for fr := range f.All() {
		got = append(got, fr.ID)
	}
	assert.Equal(t, []uint16{1, 3, 5}, got)

	last, ok := f.Last()
	require.True(t, ok)
	assert.Equal(t, uint16(5), last.ID)

	_, ok = f.Get(2)
	assert.False(t, ok)
}

func TestFragments_PutReplaces(t *testing.T) {
	f := NewFragments(Fragment{ID: 1, Data: []byte("old")})
	f.Put(Fragment{ID: 1, Data: []byte("new")})

	fr, ok := f.Get(1)
	require.True(t, ok)
	assert.Equal(t, []byte("new"), fr.Data)
	assert.Equal(t, 1, f.Len())
}

func TestFragments_NilAndEmpty(t *testing.T) {
	var nilSet *Fragments
	assert.Equal(t, 0, nilSet.Len())
	assert.Equal(t, 0, nilSet.Span())
	assert.Empty(t, nilSet.IDs())
	assert.Equal(t, 0, nilSet.PayloadSize())
	assert.Empty(t, slices.Collect(nilSet.All()))

	var zero Fragments
	zero.Put(Fragment{ID: 2, Data: []byte{1, 2}})
	assert.Equal(t, 1, zero.Len())
	assert.Equal(t, 3, zero.Span())
	assert.Equal(t, 2, zero.PayloadSize())
}

func TestFragments_AllStopsEarly(t *testing.T) {
	f := NewFragments(Fragment{ID: 1}, Fragment{ID: 2}, Fragment{ID: 3})

	var seen int
	for range f.All() {
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)
}
