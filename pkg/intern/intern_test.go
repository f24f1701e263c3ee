package intern

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	name string
	id   uint32
}

func (i *item) Hash() uint64 {
	// Deliberately weak so that buckets collide.
	return uint64(len(i.name))
}

func (i *item) Equal(other *item) bool { return i.name == other.name }

func TestTable_FindOrInsert(t *testing.T) {
	tbl := New[*item](Options{})

	a := &item{name: "a"}
	got, id, inserted, err := tbl.FindOrInsert(a, func(id uint32) { a.id = id })
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Same(t, a, got)
	assert.Equal(t, uint32(0), id)

	got, id, inserted, err = tbl.FindOrInsert(&item{name: "a"}, nil)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Same(t, a, got)
	assert.Equal(t, uint32(0), id)

	b := &item{name: "b"}
	_, id, inserted, err = tbl.FindOrInsert(b, func(id uint32) { b.id = id })
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, uint32(1), id)
	assert.Equal(t, uint32(1), b.id)

	v, ok := tbl.Get(1)
	require.True(t, ok)
	assert.Same(t, b, v)

	found, ok := tbl.Find(&item{name: "b"})
	require.True(t, ok)
	assert.Same(t, b, found)

	_, ok = tbl.Find(&item{name: "c"})
	assert.False(t, ok)
	assert.Equal(t, 2, tbl.Len())
}

func TestTable_RemoveReusesLowestID(t *testing.T) {
	tbl := New[*item](Options{})
	for _, name := range []string{"a", "b", "c", "d"} {
		_, _, _, err := tbl.FindOrInsert(&item{name: name}, nil)
		require.NoError(t, err)
	}

	require.NoError(t, tbl.Remove(2))
	require.NoError(t, tbl.Remove(1))
	assert.ErrorIs(t, tbl.Remove(1), ErrNotFound)
	assert.Equal(t, 2, tbl.Len())

	_, ok := tbl.Find(&item{name: "b"})
	assert.False(t, ok)

	_, id, _, err := tbl.FindOrInsert(&item{name: "e"}, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), id)
	_, id, _, err = tbl.FindOrInsert(&item{name: "f"}, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), id)
}

func TestTable_Full(t *testing.T) {
	tbl := New[*item](Options{MaxID: 2})
	_, _, _, err := tbl.FindOrInsert(&item{name: "a"}, nil)
	require.NoError(t, err)
	_, _, _, err = tbl.FindOrInsert(&item{name: "b"}, nil)
	require.NoError(t, err)
	_, _, _, err = tbl.FindOrInsert(&item{name: "c"}, nil)
	assert.ErrorIs(t, err, ErrFull)

	_, ok := tbl.Get(5)
	assert.False(t, ok)
}

func TestTable_RangeAndClear(t *testing.T) {
	tbl := New[*item](Options{})
	for i := 0; i < 5; i++ {
		_, _, _, err := tbl.FindOrInsert(&item{name: fmt.Sprintf("n%d", i)}, nil)
		require.NoError(t, err)
	}

	var ids []uint32
	tbl.Range(func(id uint32, v *item) bool {
		ids = append(ids, id)
		return id < 2
	})
	assert.Equal(t, []uint32{0, 1, 2}, ids)

	tbl.Clear()
	assert.Equal(t, 0, tbl.Len())
	_, ok := tbl.Get(0)
	assert.False(t, ok)

	_, id, _, err := tbl.FindOrInsert(&item{name: "n0"}, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), id)
}

func TestTable_ConcurrentInsert(t *testing.T) {
	tbl := New[*item](Options{})

	const workers = 8
	const names = 500
	results := make([][]*item, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < names; i++ {
				it := &item{name: fmt.Sprintf("name-%d", i)}
				got, _, _, err := tbl.FindOrInsert(it, func(id uint32) { it.id = id })
				if err != nil {
					return
				}
				results[w] = append(results[w], got)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, names, tbl.Len())
	for w := 1; w < workers; w++ {
		require.Len(t, results[w], names)
		for i := range results[w] {
			assert.Same(t, results[0][i], results[w][i])
		}
	}
	for _, it := range results[0] {
		got, ok := tbl.Get(it.id)
		require.True(t, ok)
		assert.Same(t, it, got)
	}
}

type key uint64

func (k key) Hash() uint64         { return uint64(k) * 0x9e3779b97f4a7c15 }
func (k key) Equal(other key) bool { return k == other }

func TestTable_HitReturnsStoredID(t *testing.T) {
	tbl := New[key](Options{})

	const n = 50000
	for i := 0; i < n; i++ {
		_, id, inserted, err := tbl.FindOrInsert(key(i), nil)
		require.NoError(t, err)
		require.True(t, inserted)
		require.Equal(t, uint32(i), id)
	}
	require.NoError(t, tbl.Remove(7))
	_, id, inserted, err := tbl.FindOrInsert(key(n), nil)
	require.NoError(t, err)
	require.True(t, inserted)
	assert.Equal(t, uint32(7), id)

	for i := n; i > 0; i-- {
		if i == 7 {
			continue
		}
		got, id, inserted, err := tbl.FindOrInsert(key(i), nil)
		require.NoError(t, err)
		require.False(t, inserted)
		require.Equal(t, key(i), got)
		if i == n {
			require.Equal(t, uint32(7), id)
		} else {
			require.Equal(t, uint32(i), id)
		}
	}
}
