package catalog

import (
	"errors"
	"iter"
	"sort"
	"strings"
	"sync"

	"github.com/dreamware/jukebox/internal/shard"
	"github.com/dreamware/jukebox/internal/song"
)

var (
	// ErrNotFound is returned when no shard holds the requested song id.
	ErrNotFound = errors.New("song not found")

	// ErrDuplicateID is returned when an inserted id already exists anywhere in the store.
	ErrDuplicateID = errors.New("duplicate song id")
)

// Store holds every song in the catalog, partitioned into one shard per
// lowercased genre.
//
// The shard table lock is only held to find or create a shard; all record
// access then happens under that shard's own lock, so operations on different
// genres never block each other. A secondary id → genre index lets point
// operations find the right shard without scanning.
//
// Cross-shard reads (Match without a genre filter, Snapshot) visit shards one
// at a time. Each shard's contribution is consistent with itself, but the
// result as a whole need not correspond to a single instant.
type Store struct {
	shards map[string]*shard.Shard // genre key -> shard
	index  sync.Map                // song id (uint64) -> genre key (string)
	mu     sync.RWMutex            // Protects shards
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		shards: make(map[string]*shard.Shard),
	}
}

// shardFor returns the shard for genre, creating it if create is set.
func (s *Store) shardFor(genre string, create bool) *shard.Shard {
	s.mu.RLock()
	sh := s.shards[genre]
	s.mu.RUnlock()
	if sh != nil || !create {
		return sh
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sh = s.shards[genre]; sh == nil {
		sh = shard.NewShard(genre)
		s.shards[genre] = sh
	}
	return sh
}

// Insert adds rec to the shard for its genre.
// Returns ErrDuplicateID if rec.ID is already present in any shard.
func (s *Store) Insert(rec song.Song) error {
	key := rec.ShardKey()
	if _, loaded := s.index.LoadOrStore(rec.ID, key); loaded {
		return ErrDuplicateID
	}
	if err := s.shardFor(key, true).Insert(rec); err != nil {
		if errors.Is(err, shard.ErrDuplicateID) {
			return ErrDuplicateID
		}
		return err
	}
	return nil
}

func (s *Store) locate(id uint64) *shard.Shard {
	key, ok := s.index.Load(id)
	if !ok {
		return nil
	}
	return s.shardFor(key.(string), false)
}

// Get returns a copy of the song with the given id.
func (s *Store) Get(id uint64) (song.Song, error) {
	sh := s.locate(id)
	if sh == nil {
		return song.Song{}, ErrNotFound
	}
	rec, ok := sh.Get(id)
	if !ok {
		return song.Song{}, ErrNotFound
	}
	return rec, nil
}

// Update runs fn on the stored song with exclusive access and returns a copy
// of the result. Returns ErrNotFound if no shard holds id.
func (s *Store) Update(id uint64, fn func(*song.Song)) (song.Song, error) {
	sh := s.locate(id)
	if sh == nil {
		return song.Song{}, ErrNotFound
	}
	rec, ok := sh.Update(id, fn)
	if !ok {
		return song.Song{}, ErrNotFound
	}
	return rec, nil
}

// scope returns the shards a query has to visit. A genre filter restricts the
// scan to shards whose key contains it, which is a single shard when the
// filter names one genre exactly and no other genre contains it.
func (s *Store) scope(q song.Query) []*shard.Shard {
	genre, filtered := q.GenreFilter()

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*shard.Shard, 0, len(s.shards))
	for key, sh := range s.shards {
		if !filtered || strings.Contains(key, genre) {
			out = append(out, sh)
		}
	}
	return out
}

// Match returns a lazy sequence of copies of the songs satisfying q.
// Each shard is copied under its read lock and yielded after the lock is
// released, so the consumer may call back into the store. Order is unspecified.
func (s *Store) Match(q song.Query) iter.Seq[song.Song] {
	return func(yield func(song.Song) bool) {
		for _, sh := range s.scope(q) {
			for _, rec := range sh.Collect(q) {
				if !yield(rec) {
					return
				}
			}
		}
	}
}

// Snapshot returns a copy of every song, in no particular order.
func (s *Store) Snapshot() []song.Song {
	s.mu.RLock()
	shards := make([]*shard.Shard, 0, len(s.shards))
	for _, sh := range s.shards {
		shards = append(shards, sh)
	}
	s.mu.RUnlock()

	var out []song.Song
	for _, sh := range shards {
		out = append(out, sh.Songs()...)
	}
	return out
}

// Len returns the number of songs in the store.
func (s *Store) Len() int {
	n := 0
	for _, info := range s.Shards() {
		n += info.Songs
	}
	return n
}

// Shards returns per-genre metadata sorted by genre.
func (s *Store) Shards() []shard.Info {
	s.mu.RLock()
	infos := make([]shard.Info, 0, len(s.shards))
	for _, sh := range s.shards {
		infos = append(infos, sh.Info())
	}
	s.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Genre < infos[j].Genre })
	return infos
}
