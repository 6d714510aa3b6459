package cache

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/23skdu/longbow-jordan/internal/linsys"
)

// Entry is a cached solve outcome. Reduced holds the reduced augmented
// matrix row-major; Values holds the solution when it is unique.
type Entry struct {
	Result  linsys.Result
	Rank    int
	Reduced []float64
	Values  []float64
}

func (e Entry) clone() Entry {
	e.Reduced = append([]float64(nil), e.Reduced...)
	if e.Values != nil {
		e.Values = append([]float64(nil), e.Values...)
	}
	return e
}

// ResultCache defines a generic interface for caching solve outcomes.
type ResultCache interface {
	// Get retrieves an entry from the cache.
	Get(key uint64) (Entry, bool)
	// Put stores an entry in the cache.
	Put(key uint64, e Entry)
	// Size returns the number of items in the cache.
	Size() int
}

// Key digests a system together with the settings that influence its
// reduction. Systems with equal keys reduce to the same matrix.
func Key(rows, cols int, data []float64, settings string) uint64 {
	d := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(rows))
	_, _ = d.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(cols))
	_, _ = d.Write(buf[:])
	for _, v := range data {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = d.Write(buf[:])
	}
	_, _ = d.WriteString(settings)
	return d.Sum64()
}

// MapCache is a simple in-memory implementation of ResultCache. When
// maxEntries > 0 the oldest entry is evicted once the cache is full.
type MapCache struct {
	data       map[uint64]Entry
	order      []uint64
	maxEntries int
	mu         sync.RWMutex
}

func NewMapCache(maxEntries int) *MapCache {
	return &MapCache{
		data:       make(map[uint64]Entry),
		maxEntries: maxEntries,
	}
}

func (c *MapCache) Get(key uint64) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// Return copy to avoid modification of cached value
	if e, ok := c.data[key]; ok {
		return e.clone(), true
	}
	return Entry{}, false
}

func (c *MapCache) Put(key uint64, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.data[key]; !ok {
		if c.maxEntries > 0 && len(c.data) >= c.maxEntries {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.data, oldest)
		}
		c.order = append(c.order, key)
	}
	// Store copy
	c.data[key] = e.clone()
}

func (c *MapCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
