package main

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/jukebox/internal/api"
	"github.com/dreamware/jukebox/internal/song"
)

// startApp runs an app on a random local port and returns a client for it.
func startApp(t *testing.T, opts *Options) (*app, *api.Client) {
	t.Helper()
	a, err := newApp(context.Background(), opts, logr.Discard())
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		if err := a.serve(ln); err != nil {
			t.Errorf("serve failed: %v", err)
		}
	}()

	client := api.NewClient("http://"+ln.Addr().String())
	require.Eventually(t, func() bool {
		_, err := client.Health(context.Background())
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	return a, client
}

// TestRestartRestoresCatalog verifies that songs and play counts written
// before shutdown are served again after a restart, and that new ids continue
// past the restored ones.
func TestRestartRestoresCatalog(t *testing.T) {
	for _, compress := range []bool{false, true} {
		t.Run(map[bool]string{false: "plain", true: "zstd"}[compress], func(t *testing.T) {
			ctx := context.Background()
			opts := NewOptions()
			opts.SnapshotDir = t.TempDir()
			opts.SnapshotInterval = time.Hour
			opts.SnapshotCompress = compress

			a, client := startApp(t, opts)
			first, err := client.AddSong(ctx, song.NewSongRequest{Title: "Blue Train", Artist: "John Coltrane", Genre: "Jazz"})
			require.NoError(t, err)
			_, err = client.AddSong(ctx, song.NewSongRequest{Title: "Paranoid", Artist: "Black Sabbath", Genre: "Rock"})
			require.NoError(t, err)
			_, err = client.Play(ctx, first.ID)
			require.NoError(t, err)
			require.NoError(t, a.shutdown(ctx))

			_, err = os.Stat(filepath.Join(opts.SnapshotDir, opts.SnapshotName))
			require.NoError(t, err, "final snapshot should be written on shutdown")

			b, client := startApp(t, opts)
			defer func() { _ = b.shutdown(ctx) }()

			jazz, err := client.Search(ctx, song.Query{Genre: song.Str("jazz")})
			require.NoError(t, err)
			require.Len(t, jazz, 1)
			assert.Equal(t, first.ID, jazz[0].ID)
			assert.Equal(t, uint64(1), jazz[0].PlayCount)

			third, err := client.AddSong(ctx, song.NewSongRequest{Title: "Kind of Blue", Artist: "Miles Davis", Genre: "Jazz"})
			require.NoError(t, err)
			assert.Equal(t, uint64(3), third.ID)
		})
	}
}

// TestCorruptSnapshotStartsEmpty verifies that an undecodable snapshot does not
// prevent startup.
func TestCorruptSnapshotStartsEmpty(t *testing.T) {
	ctx := context.Background()
	opts := NewOptions()
	opts.SnapshotDir = t.TempDir()
	opts.SnapshotInterval = time.Hour
	require.NoError(t, os.WriteFile(filepath.Join(opts.SnapshotDir, opts.SnapshotName), []byte("not json"), 0o644))

	a, client := startApp(t, opts)
	defer func() { _ = a.shutdown(ctx) }()

	found, err := client.Search(ctx, song.Query{})
	require.NoError(t, err)
	assert.Empty(t, found)

	added, err := client.AddSong(ctx, song.NewSongRequest{Title: "T", Artist: "A", Genre: "G"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), added.ID)
}

// TestPeriodicSnapshot verifies that the scheduler writes without a shutdown.
func TestPeriodicSnapshot(t *testing.T) {
	ctx := context.Background()
	opts := NewOptions()
	opts.SnapshotDir = t.TempDir()
	opts.SnapshotInterval = 20 * time.Millisecond

	a, client := startApp(t, opts)
	defer func() { _ = a.shutdown(ctx) }()

	_, err := client.AddSong(ctx, song.NewSongRequest{Title: "T", Artist: "A", Genre: "G"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		songs, err := a.manager.Load(ctx)
		return err == nil && len(songs) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNewBlobStore(t *testing.T) {
	ctx := context.Background()

	opts := NewOptions()
	opts.SnapshotBackend = BackendMemory
	store, err := newBlobStore(ctx, opts)
	require.NoError(t, err)
	assert.NotNil(t, store)

	opts = NewOptions()
	opts.SnapshotBackend = BackendMinIO
	opts.MinioEndpoint = "localhost:9000"
	opts.Bucket = "songs"
	store, err = newBlobStore(ctx, opts)
	require.NoError(t, err)
	assert.NotNil(t, store)

	opts = NewOptions()
	opts.SnapshotDir = filepath.Join(t.TempDir(), "nested", "dir")
	store, err = newBlobStore(ctx, opts)
	require.NoError(t, err)
	assert.NotNil(t, store)
	assert.DirExists(t, opts.SnapshotDir)
}
