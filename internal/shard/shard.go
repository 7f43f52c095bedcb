package shard

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/dreamware/jukebox/internal/song"
)

// ErrDuplicateID is returned when a song id is already present in the shard
var ErrDuplicateID = errors.New("duplicate song id")

// Shard is one genre partition of the catalog.
// Every operation on a shard serializes on its own lock; shards never share locks.
type Shard struct {
	Genre string                // Shard key (lowercased genre)
	Stats *ShardStats           // Operation statistics
	songs map[uint64]*song.Song // Records owned by this shard
	mu    sync.RWMutex          // Protects songs
}

// ShardStats tracks operation counts
type ShardStats struct {
	Inserts uint64 // Number of insert operations
	Updates uint64 // Number of in-place mutations
	Scans   uint64 // Number of full-shard reads
}

// Info contains metadata about a shard
type Info struct {
	Genre   string `json:"genre"`
	Songs   int    `json:"songs"`
	Inserts uint64 `json:"inserts"`
	Updates uint64 `json:"updates"`
	Scans   uint64 `json:"scans"`
}

// NewShard creates an empty shard for the given genre key
func NewShard(genre string) *Shard {
	return &Shard{
		Genre: genre,
		Stats: &ShardStats{},
		songs: make(map[uint64]*song.Song),
	}
}

// Insert stores a copy of rec keyed by its id
// Returns ErrDuplicateID if the id is already present
func (s *Shard) Insert(rec song.Song) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.songs[rec.ID]; exists {
		return ErrDuplicateID
	}
	atomic.AddUint64(&s.Stats.Inserts, 1)
	s.songs[rec.ID] = &rec
	return nil
}

// Get returns a copy of the song with the given id
func (s *Shard) Get(id uint64) (song.Song, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.songs[id]
	if !ok {
		return song.Song{}, false
	}
	return *rec, true
}

// Update runs fn on the stored record while holding the shard's write lock
// and returns a copy of the record after fn has run
func (s *Shard) Update(id uint64, fn func(*song.Song)) (song.Song, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.songs[id]
	if !ok {
		return song.Song{}, false
	}
	atomic.AddUint64(&s.Stats.Updates, 1)
	fn(rec)
	return *rec, true
}

// Collect returns copies of every song matching q
// Order is not guaranteed
func (s *Shard) Collect(q song.Query) []song.Song {
	s.mu.RLock()
	defer s.mu.RUnlock()

	atomic.AddUint64(&s.Stats.Scans, 1)
	var out []song.Song
	for _, rec := range s.songs {
		if q.Matches(*rec) {
			out = append(out, *rec)
		}
	}
	return out
}

// Songs returns copies of every song in the shard
func (s *Shard) Songs() []song.Song {
	s.mu.RLock()
	defer s.mu.RUnlock()

	atomic.AddUint64(&s.Stats.Scans, 1)
	out := make([]song.Song, 0, len(s.songs))
	for _, rec := range s.songs {
		out = append(out, *rec)
	}
	return out
}

// Len returns the number of songs in the shard
func (s *Shard) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.songs)
}

// Info returns metadata about the shard
func (s *Shard) Info() Info {
	return Info{
		Genre:   s.Genre,
		Songs:   s.Len(),
		Inserts: atomic.LoadUint64(&s.Stats.Inserts),
		Updates: atomic.LoadUint64(&s.Stats.Updates),
		Scans:   atomic.LoadUint64(&s.Stats.Scans),
	}
}
