package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/jukebox/internal/api"
	"github.com/dreamware/jukebox/internal/catalog"
	"github.com/dreamware/jukebox/internal/querycache"
	"github.com/dreamware/jukebox/internal/song"
)

func newTestServer(t *testing.T) (*httptest.Server, *api.Client) {
	t.Helper()
	cache, err := querycache.New(querycache.DefaultCapacity, querycache.DefaultStripes)
	require.NoError(t, err)

	svc := catalog.NewService(catalog.NewStore(), cache, catalog.NewIDAllocator(), logr.Discard())
	srv := httptest.NewServer(newServer(svc, nil, logr.Discard()).routes())
	t.Cleanup(srv.Close)
	return srv, api.NewClient(srv.URL)
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestHandleRoot(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := get(t, srv.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, welcome, body)

	resp, _ = get(t, srv.URL+"/nowhere")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleCount(t *testing.T) {
	srv, client := newTestServer(t)

	_, body := get(t, srv.URL+api.PathCount)
	assert.Equal(t, "Visit count: 1", body)

	n, err := client.VisitCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
}

func TestHandleAddSong(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantErr    string
	}{
		{
			name:       "valid song",
			body:       `{"title":"Blue Train","artist":"John Coltrane","genre":"Jazz"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing title",
			body:       `{"artist":"John Coltrane","genre":"Jazz"}`,
			wantStatus: http.StatusBadRequest,
			wantErr:    "malformed song request: title is required",
		},
		{
			name:       "blank genre",
			body:       `{"title":"Blue Train","artist":"John Coltrane","genre":"  "}`,
			wantStatus: http.StatusBadRequest,
			wantErr:    "malformed song request: genre is required",
		},
		{
			name:       "bad json",
			body:       `{"title":`,
			wantStatus: http.StatusBadRequest,
			wantErr:    "bad json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t)

			resp, err := http.Post(srv.URL+api.PathAdd, "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantErr != "" {
				var er api.ErrorResponse
				require.NoError(t, json.Unmarshal(body, &er))
				assert.Equal(t, tt.wantErr, er.Error)
				return
			}
			assert.JSONEq(t, `{"id":1,"title":"Blue Train","artist":"John Coltrane","genre":"Jazz","play_count":0,
				"index":{"title":"blue train","artist":"john coltrane","genre":"jazz"}}`, string(body))
		})
	}
}

func TestHandleAddSongWrongMethod(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := get(t, srv.URL+api.PathAdd)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandleSearch(t *testing.T) {
	srv, client := newTestServer(t)
	ctx := context.Background()

	for _, req := range []song.NewSongRequest{
		{Title: "Blue Train", Artist: "John Coltrane", Genre: "Jazz"},
		{Title: "Giant Steps", Artist: "John Coltrane", Genre: "Jazz"},
		{Title: "Paranoid", Artist: "Black Sabbath", Genre: "Rock"},
	} {
		_, err := client.AddSong(ctx, req)
		require.NoError(t, err)
	}

	t.Run("genre filter", func(t *testing.T) {
		found, err := client.Search(ctx, song.Query{Genre: song.Str("JAZZ")})
		require.NoError(t, err)
		assert.Len(t, found, 2)
	})

	t.Run("combined filters", func(t *testing.T) {
		found, err := client.Search(ctx, song.Query{Title: song.Str("train"), Artist: song.Str("coltrane")})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "Blue Train", found[0].Title)
	})

	t.Run("no match is an empty array", func(t *testing.T) {
		resp, body := get(t, srv.URL+api.PathSearch+"?genre=polka")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `[]`, body)
	})

	t.Run("unknown parameter", func(t *testing.T) {
		resp, body := get(t, srv.URL+api.PathSearch+"?year=1959")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, body, "year")
	})
}

// TestSearchServesCachedResults verifies that a repeated query returns the
// cached answer even after the catalog changed.
func TestSearchServesCachedResults(t *testing.T) {
	_, client := newTestServer(t)
	ctx := context.Background()
	rock := song.Query{Genre: song.Str("rock")}

	first, err := client.AddSong(ctx, song.NewSongRequest{Title: "Song A", Artist: "Band", Genre: "Rock"})
	require.NoError(t, err)

	found, err := client.Search(ctx, rock)
	require.NoError(t, err)
	require.Len(t, found, 1)

	_, err = client.AddSong(ctx, song.NewSongRequest{Title: "Song B", Artist: "Band", Genre: "Rock"})
	require.NoError(t, err)

	found, err = client.Search(ctx, rock)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, first.ID, found[0].ID)
}

func TestHandlePlay(t *testing.T) {
	srv, client := newTestServer(t)
	ctx := context.Background()

	added, err := client.AddSong(ctx, song.NewSongRequest{Title: "Paranoid", Artist: "Black Sabbath", Genre: "Rock"})
	require.NoError(t, err)

	played, err := client.Play(ctx, added.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), played.PlayCount)

	played, err = client.Play(ctx, added.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), played.PlayCount)

	resp, body := get(t, srv.URL+api.PathPlay+"999")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Song not found"}`, body)

	resp, _ = get(t, srv.URL+api.PathPlay+"abc")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// TestConcurrentPlays verifies that every play is counted exactly once.
func TestConcurrentPlays(t *testing.T) {
	_, client := newTestServer(t)
	ctx := context.Background()

	added, err := client.AddSong(ctx, song.NewSongRequest{Title: "Paranoid", Artist: "Black Sabbath", Genre: "Rock"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.Play(ctx, added.ID); err != nil {
				t.Errorf("Play failed: %v", err)
			}
		}()
	}
	wg.Wait()

	played, err := client.Play(ctx, added.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(51), played.PlayCount)
}

func TestHandleShards(t *testing.T) {
	_, client := newTestServer(t)
	ctx := context.Background()

	for _, genre := range []string{"Rock", "rock", "Jazz"} {
		_, err := client.AddSong(ctx, song.NewSongRequest{Title: "T", Artist: "A", Genre: genre})
		require.NoError(t, err)
	}

	shards, err := client.Shards(ctx)
	require.NoError(t, err)
	require.Len(t, shards, 2)
	assert.Equal(t, "jazz", shards[0].Genre)
	assert.Equal(t, 1, shards[0].Songs)
	assert.Equal(t, "rock", shards[1].Genre)
	assert.Equal(t, 2, shards[1].Songs)
}

func TestHandleCache(t *testing.T) {
	_, client := newTestServer(t)
	ctx := context.Background()
	jazz := song.Query{Genre: song.Str("jazz")}

	for i := 0; i < 3; i++ {
		_, err := client.Search(ctx, jazz)
		require.NoError(t, err)
	}

	stats, err := client.CacheStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, querycache.Stats{Hits: 2, Misses: 1, Entries: 1}, stats)
}

type fakeSnapshots struct {
	saves int
	err   error
}

func (f fakeSnapshots) LastResult() (int, error) { return f.saves, f.err }

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name      string
		snapshots snapshotStatus
		want      api.HealthResponse
	}{
		{
			name: "no scheduler",
			want: api.HealthResponse{Status: "ok"},
		},
		{
			name:      "snapshots succeeding",
			snapshots: fakeSnapshots{saves: 4},
			want:      api.HealthResponse{Status: "ok", SnapshotSaves: 4},
		},
		{
			name:      "last snapshot failed",
			snapshots: fakeSnapshots{saves: 5, err: errors.New("disk full")},
			want:      api.HealthResponse{Status: "ok", SnapshotSaves: 5, SnapshotError: "disk full"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache, err := querycache.New(querycache.DefaultCapacity, querycache.DefaultStripes)
			require.NoError(t, err)
			svc := catalog.NewService(catalog.NewStore(), cache, catalog.NewIDAllocator(), logr.Discard())
			srv := httptest.NewServer(newServer(svc, tt.snapshots, logr.Discard()).routes())
			defer srv.Close()

			got, err := api.NewClient(srv.URL).Health(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequestID(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := get(t, srv.URL+api.PathHealth)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(api.HeaderRequestID))

	req, err := http.NewRequest(http.MethodGet, srv.URL+api.PathHealth, nil)
	require.NoError(t, err)
	req.Header.Set(api.HeaderRequestID, "abc-123")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get(api.HeaderRequestID))
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := get(t, srv.URL+api.PathMetrics)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
