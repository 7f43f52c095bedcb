package persistence

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/dreamware/jukebox/internal/catalog"
	"github.com/dreamware/jukebox/internal/logging"
	"github.com/dreamware/jukebox/internal/metrics"
	"github.com/dreamware/jukebox/internal/song"
	"github.com/dreamware/jukebox/internal/storage"
)

// DefaultName is the blob name snapshots are written under.
const DefaultName = "songs.json"

// ErrSnapshotCorrupt is returned by Load when the stored snapshot exists but
// cannot be decoded.
var ErrSnapshotCorrupt = errors.New("snapshot corrupt")

// Snapshotter is anything that can hand out a copy of every song.
// *catalog.Store satisfies it.
type Snapshotter interface {
	Snapshot() []song.Song
}

// Manager saves and loads catalog snapshots through a storage.Store.
// Saves are serialized.
type Manager struct {
	mu       sync.Mutex
	store    storage.Store
	name     string
	compress bool
	logger   logr.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithName overrides the blob name (default "songs.json").
func WithName(name string) Option {
	return func(m *Manager) { m.name = name }
}

// WithCompression zstd-compresses snapshots on save.
func WithCompression(enabled bool) Option {
	return func(m *Manager) { m.compress = enabled }
}

// NewManager returns a Manager writing to store.
func NewManager(store storage.Store, logger logr.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		name:   DefaultName,
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the blob name snapshots are written under.
func (m *Manager) Name() string {
	return m.name
}

// Save writes a full snapshot of src, replacing the previous one as a unit.
// Once the snapshot is written, temporary blobs left by earlier interrupted
// saves are removed.
func (m *Manager) Save(ctx context.Context, src Snapshotter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	songs := src.Snapshot()

	err := m.save(ctx, songs)
	metrics.RecordSnapshot(time.Since(start), len(songs), err)
	if err != nil {
		return err
	}

	m.logger.V(logging.DEBUG).Info("snapshot saved", "name", m.name, "songs", len(songs), "elapsed", time.Since(start))
	m.prune(ctx)
	return nil
}

// tempPrefix is the name prefix of the temporary blobs a file-backed store
// writes before renaming them over the snapshot.
func (m *Manager) tempPrefix() string {
	return path.Join(path.Dir(m.name), "."+path.Base(m.name)+".tmp-")
}

// prune deletes stale temporary blobs. Failures are logged; the snapshot
// itself has already been written.
func (m *Manager) prune(ctx context.Context) {
	stale, err := m.store.List(ctx, m.tempPrefix())
	if err != nil {
		m.logger.Error(err, "failed to list stale snapshot blobs", "name", m.name)
		return
	}
	for _, name := range stale {
		if err := m.store.Delete(ctx, name); err != nil {
			m.logger.Error(err, "failed to delete stale snapshot blob", "blob", name)
			continue
		}
		m.logger.V(logging.VERBOSE).Info("deleted stale snapshot blob", "blob", name)
	}
}

func (m *Manager) save(ctx context.Context, songs []song.Song) error {
	data, err := Encode(ctx, songs)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if m.compress {
		if data, err = compress(data); err != nil {
			return fmt.Errorf("compressing snapshot: %w", err)
		}
	}
	if err := m.store.Put(ctx, m.name, data); err != nil {
		return fmt.Errorf("writing snapshot %q: %w", m.name, err)
	}
	return nil
}

// Load reads the stored snapshot.
//
// A missing snapshot yields an empty catalog and no error. An unreadable or
// undecodable one also yields an empty catalog, together with the error so
// the caller can report it; startup should continue either way.
func (m *Manager) Load(ctx context.Context) ([]song.Song, error) {
	data, err := m.store.Get(ctx, m.name)
	if err != nil {
		if storage.IsNotFound(err) {
			m.logger.Info("no snapshot found, starting with an empty catalog", "name", m.name)
			return nil, nil
		}
		m.logger.Error(err, "failed to read snapshot, starting with an empty catalog", "name", m.name)
		return nil, fmt.Errorf("reading snapshot %q: %w", m.name, err)
	}

	songs, err := Decode(data)
	if err != nil {
		m.logger.Error(err, "failed to decode snapshot, starting with an empty catalog", "name", m.name)
		return nil, fmt.Errorf("%w: %s: %w", ErrSnapshotCorrupt, m.name, err)
	}
	return songs, nil
}

// Restore loads the snapshot into store and seeds ids past the highest
// loaded id. It returns the number of songs restored and any Load error.
// Records missing their search index get one derived from their display
// fields; records with no genre at all are skipped.
func (m *Manager) Restore(ctx context.Context, store *catalog.Store, ids *catalog.IDAllocator) (int, error) {
	songs, err := m.Load(ctx)
	if err != nil {
		return 0, err
	}

	var maxID uint64
	restored := 0
	for _, rec := range songs {
		rec = rec.Reindexed()
		if rec.ShardKey() == "" {
			m.logger.Error(ErrSnapshotCorrupt, "skipping snapshot record without a genre", "id", rec.ID)
			continue
		}
		if err := store.Insert(rec); err != nil {
			m.logger.Error(err, "skipping snapshot record", "id", rec.ID, "genre", rec.ShardKey())
			continue
		}
		restored++
		maxID = max(maxID, rec.ID)
	}
	ids.Seed(maxID + 1)

	m.logger.Info("snapshot restored", "name", m.name, "songs", restored, "shards", len(store.Shards()), "nextID", ids.Peek())
	return restored, nil
}
