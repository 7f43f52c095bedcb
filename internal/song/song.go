// Package song defines the catalog record, the request that creates one, and the
// typed search filter used to query the catalog.
package song

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is returned by NewSongRequest.Validate when a required field is
// missing or blank.
var ErrMalformed = errors.New("malformed song request")

// Index holds the lowercase mirror of a song's display fields.
// It is computed once when the song is created and never recomputed.
type Index struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Genre  string `json:"genre"`
}

// Song is a single catalog record.
// Genre is kept in display case; Index.Genre is the shard key.
type Song struct {
	ID        uint64 `json:"id"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Genre     string `json:"genre"`
	PlayCount uint64 `json:"play_count"`
	Index     Index  `json:"index"`
}

// NewSongRequest carries the client-supplied fields of a new song.
// The id and play count are assigned by the catalog.
type NewSongRequest struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Genre  string `json:"genre"`
}

// Validate reports whether every field is present and non-blank.
func (r NewSongRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Title) == "":
		return fmt.Errorf("%w: title is required", ErrMalformed)
	case strings.TrimSpace(r.Artist) == "":
		return fmt.Errorf("%w: artist is required", ErrMalformed)
	case strings.TrimSpace(r.Genre) == "":
		return fmt.Errorf("%w: genre is required", ErrMalformed)
	}
	return nil
}

// New builds a Song with the given id and a fresh search index.
func New(id uint64, req NewSongRequest) Song {
	return Song{
		ID:     id,
		Title:  req.Title,
		Artist: req.Artist,
		Genre:  req.Genre,
		Index:  newIndex(req.Title, req.Artist, req.Genre),
	}
}

func newIndex(title, artist, genre string) Index {
	return Index{
		Title:  strings.ToLower(title),
		Artist: strings.ToLower(artist),
		Genre:  strings.ToLower(genre),
	}
}

// Reindexed returns s with an index derived from its display fields if any
// index field is missing. Records carrying a complete index are returned as is.
func (s Song) Reindexed() Song {
	if s.Index.Title == "" || s.Index.Artist == "" || s.Index.Genre == "" {
		s.Index = newIndex(s.Title, s.Artist, s.Genre)
	}
	return s
}

// ShardKey returns the genre partition the song belongs to.
func (s Song) ShardKey() string {
	return s.Index.Genre
}
