package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/23skdu/longbow-jordan/internal/linsys"
)

func TestMapCache(t *testing.T) {
	c := NewMapCache(2)

	e := Entry{Result: linsys.UniqueSolution, Rank: 1, Reduced: []float64{1, 2}, Values: []float64{2}}
	c.Put(1, e)

	got, ok := c.Get(1)
	assert.True(t, ok)
	assert.Equal(t, e, got)

	// Mutating the returned copy must not leak into the cache.
	got.Reduced[0] = 99
	again, _ := c.Get(1)
	assert.Equal(t, 1.0, again.Reduced[0])

	// Mutating the stored value must not leak either.
	e.Values[0] = -1
	again, _ = c.Get(1)
	assert.Equal(t, 2.0, again.Values[0])

	_, ok = c.Get(2)
	assert.False(t, ok)
}

func TestMapCache_Evicts(t *testing.T) {
	c := NewMapCache(2)
	c.Put(1, Entry{Rank: 1})
	c.Put(2, Entry{Rank: 2})
	c.Put(2, Entry{Rank: 22})
	assert.Equal(t, 2, c.Size())

	c.Put(3, Entry{Rank: 3})
	assert.Equal(t, 2, c.Size())

	_, ok := c.Get(1)
	assert.False(t, ok, "oldest entry should be evicted")
	e, ok := c.Get(2)
	assert.True(t, ok)
	assert.Equal(t, 22, e.Rank)
}

func TestKey(t *testing.T) {
	a := Key(1, 3, []float64{1, 2, 3}, "first")
	assert.Equal(t, a, Key(1, 3, []float64{1, 2, 3}, "first"))
	assert.NotEqual(t, a, Key(3, 1, []float64{1, 2, 3}, "first"))
	assert.NotEqual(t, a, Key(1, 3, []float64{1, 2, 4}, "first"))
	assert.NotEqual(t, a, Key(1, 3, []float64{1, 2, 3}, "maxabs"))
}
