package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dreamware/jukebox/internal/querycache"
	"github.com/dreamware/jukebox/internal/shard"
	"github.com/dreamware/jukebox/internal/song"
)

// Client talks to a jukebox server.
type Client struct {
	base string
}

// NewClient returns a client for the server at base (e.g. "http://127.0.0.1:8080").
func NewClient(base string) *Client {
	return &Client{base: strings.TrimRight(base, "/")}
}

// AddSong creates a song and returns it with its assigned id.
func (c *Client) AddSong(ctx context.Context, req song.NewSongRequest) (song.Song, error) {
	var out song.Song
	err := PostJSON(ctx, c.base+PathAdd, req, &out)
	return out, err
}

// Search returns the songs matching q.
func (c *Client) Search(ctx context.Context, q song.Query) ([]song.Song, error) {
	url := c.base + PathSearch
	if v := q.Values(); len(v) > 0 {
		url += "?" + v.Encode()
	}
	var out []song.Song
	err := GetJSON(ctx, url, &out)
	return out, err
}

// Play increments the play count of song id. IsNotFound(err) reports an unknown id.
func (c *Client) Play(ctx context.Context, id uint64) (song.Song, error) {
	var out song.Song
	err := GetJSON(ctx, c.base+PathPlay+strconv.FormatUint(id, 10), &out)
	return out, err
}

// Shards returns per-genre shard statistics.
func (c *Client) Shards(ctx context.Context) ([]shard.Info, error) {
	var out []shard.Info
	err := GetJSON(ctx, c.base+PathShards, &out)
	return out, err
}

// CacheStats returns the server's query cache statistics.
func (c *Client) CacheStats(ctx context.Context) (querycache.Stats, error) {
	var out querycache.Stats
	err := GetJSON(ctx, c.base+PathCache, &out)
	return out, err
}

// VisitCount records a visit and returns the running total.
func (c *Client) VisitCount(ctx context.Context) (uint64, error) {
	body, err := getText(ctx, c.base+PathCount)
	if err != nil {
		return 0, err
	}
	return ParseVisitCount(body)
}

// Health returns the server's health report, or an error if it does not answer.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	err := GetJSON(ctx, c.base+PathHealth, &out)
	return out, err
}

func getText(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", statusError(url, resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", url, err)
	}
	return string(data), nil
}
