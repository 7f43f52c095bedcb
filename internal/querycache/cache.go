// Package querycache memoizes search results by canonical query key.
//
// Entries are never invalidated by writes to the catalog: a cached result
// reflects the catalog at the moment it was populated and is served as-is to
// every later identical query. Capacity only bounds memory; when a stripe is
// full its least recently used entry is evicted.
package querycache

import (
	"fmt"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dreamware/jukebox/internal/song"
)

const (
	// DefaultCapacity is the total number of cached queries across all stripes.
	DefaultCapacity = 8192
	// DefaultStripes is the number of independently locked stripes.
	DefaultStripes = 16
)

// Stats reports cache effectiveness.
type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Entries int    `json:"entries"`
}

// Cache is a striped result cache keyed by song.Query.Key.
type Cache struct {
	stripes []*lru.Cache[string, []song.Song]
	mask    uint64
	hits    atomic.Uint64
	misses  atomic.Uint64
}

// New creates a cache holding up to capacity entries spread across stripes.
// stripes is rounded up to a power of two.
func New(capacity, stripes int) (*Cache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", capacity)
	}
	n := 1
	for n < stripes {
		n <<= 1
	}
	perStripe := capacity / n
	if perStripe < 1 {
		perStripe = 1
	}

	c := &Cache{
		stripes: make([]*lru.Cache[string, []song.Song], n),
		mask:    uint64(n - 1),
	}
	for i := range c.stripes {
		l, err := lru.New[string, []song.Song](perStripe)
		if err != nil {
			return nil, fmt.Errorf("creating cache stripe: %w", err)
		}
		c.stripes[i] = l
	}
	return c, nil
}

func (c *Cache) stripe(key string) *lru.Cache[string, []song.Song] {
	return c.stripes[xxhash.Sum64String(key)&c.mask]
}

// Lookup returns a copy of the results cached under key.
func (c *Cache) Lookup(key string) ([]song.Song, bool) {
	results, ok := c.stripe(key).Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return clone(results), true
}

// Populate stores a copy of results under key, replacing any earlier entry.
func (c *Cache) Populate(key string, results []song.Song) {
	c.stripe(key).Add(key, clone(results))
}

// Stats returns hit/miss counters and the current entry count.
func (c *Cache) Stats() Stats {
	entries := 0
	for _, s := range c.stripes {
		entries += s.Len()
	}
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: entries,
	}
}

func clone(in []song.Song) []song.Song {
	out := make([]song.Song, len(in))
	copy(out, in)
	return out
}
