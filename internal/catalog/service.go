package catalog

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/dreamware/jukebox/internal/logging"
	"github.com/dreamware/jukebox/internal/metrics"
	"github.com/dreamware/jukebox/internal/querycache"
	"github.com/dreamware/jukebox/internal/shard"
	"github.com/dreamware/jukebox/internal/song"
)

// Service is the catalog as seen by the request layer. It is constructed once
// at startup and shared by every handler and the snapshot scheduler.
type Service struct {
	store  *Store
	cache  *querycache.Cache
	ids    *IDAllocator
	visits VisitCounter
	logger logr.Logger
}

// NewService wires a store, cache, and id allocator together.
// The allocator must already be seeded past every id held by store.
func NewService(store *Store, cache *querycache.Cache, ids *IDAllocator, logger logr.Logger) *Service {
	return &Service{
		store:  store,
		cache:  cache,
		ids:    ids,
		logger: logger,
	}
}

func (s *Service) log(ctx context.Context) logr.Logger {
	if l, err := logr.FromContext(ctx); err == nil {
		return l
	}
	return s.logger
}

// AddSong assigns an id to req and inserts the new song into its genre shard.
func (s *Service) AddSong(ctx context.Context, req song.NewSongRequest) (song.Song, error) {
	rec := song.New(s.ids.Next(), req)
	if err := s.store.Insert(rec); err != nil {
		return song.Song{}, fmt.Errorf("inserting song %d: %w", rec.ID, err)
	}
	metrics.RecordSongAdded(rec.ShardKey())
	s.log(ctx).V(logging.DEBUG).Info("song added", "id", rec.ID, "genre", rec.ShardKey())
	return rec, nil
}

// SearchSongs returns the songs matching q and whether the answer came from
// the query cache. Cached answers are returned even if the catalog has
// changed since they were computed.
func (s *Service) SearchSongs(ctx context.Context, q song.Query) ([]song.Song, bool) {
	key := q.Key()
	if cached, ok := s.cache.Lookup(key); ok {
		metrics.RecordSearch(true)
		s.log(ctx).V(logging.TRACE).Info("search served from cache", "key", key, "results", len(cached))
		return cached, true
	}

	results := make([]song.Song, 0)
	for rec := range s.store.Match(q) {
		results = append(results, rec)
	}
	s.cache.Populate(key, results)
	metrics.RecordSearch(false)
	s.log(ctx).V(logging.TRACE).Info("search computed", "key", key, "results", len(results))
	return results, false
}

// PlaySong increments the play count of the song with the given id and
// returns the updated record, or ErrNotFound.
func (s *Service) PlaySong(ctx context.Context, id uint64) (song.Song, error) {
	rec, err := s.store.Update(id, func(rec *song.Song) {
		rec.PlayCount++
	})
	metrics.RecordPlay(err == nil)
	if err != nil {
		s.log(ctx).V(logging.DEBUG).Info("play of unknown song", "id", id)
		return song.Song{}, err
	}
	return rec, nil
}

// GetVisitCount records a visit and returns the running total.
func (s *Service) GetVisitCount() uint64 {
	return s.visits.Increment()
}

// Shards returns per-genre statistics.
func (s *Service) Shards() []shard.Info {
	return s.store.Shards()
}

// CacheStats returns query cache statistics.
func (s *Service) CacheStats() querycache.Stats {
	return s.cache.Stats()
}
