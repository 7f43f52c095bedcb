// Package api holds the jukebox wire types, JSON helpers, and a Go client for
// the HTTP surface served by cmd/jukebox.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Route paths.
const (
	PathRoot    = "/"
	PathCount   = "/count"
	PathAdd     = "/songs/new"
	PathSearch  = "/songs/search"
	PathPlay    = "/songs/play/"
	PathShards  = "/shards"
	PathCache   = "/cache"
	PathHealth  = "/health"
	PathMetrics = "/metrics"
)

// HeaderRequestID carries the per-request id set by the server.
const HeaderRequestID = "X-Request-Id"

// MsgSongNotFound is the error body text for an unknown song id.
const MsgSongNotFound = "Song not found"

// visitCountPrefix precedes the number in the /count response body.
const visitCountPrefix = "Visit count: "

// ErrorResponse is the JSON body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusError is returned by the JSON helpers for a non-2xx response.
type StatusError struct {
	URL     string
	Code    int
	Message string // from ErrorResponse, if the body had one
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http %s: %d: %s", e.URL, e.Code, e.Message)
	}
	return fmt.Sprintf("http %s: %d", e.URL, e.Code)
}

// HealthResponse is the body of the health check. SnapshotSaves counts the
// scheduler's save attempts; SnapshotError is the most recent one's failure.
type HealthResponse struct {
	Status        string `json:"status"`
	SnapshotSaves int    `json:"snapshot_saves"`
	SnapshotError string `json:"snapshot_error,omitempty"`
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// FormatVisitCount renders the /count response body.
func FormatVisitCount(n uint64) string {
	return visitCountPrefix + strconv.FormatUint(n, 10)
}

// ParseVisitCount extracts the number from a /count response body.
func ParseVisitCount(body string) (uint64, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(body), visitCountPrefix)
	if !ok {
		return 0, fmt.Errorf("unexpected visit count body %q", body)
	}
	return strconv.ParseUint(rest, 10, 64)
}
