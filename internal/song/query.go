package song

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/exp/slices"
)

// Field names recognised in a search query.
const (
	FieldTitle  = "title"
	FieldArtist = "artist"
	FieldGenre  = "genre"
)

// Query is a search filter. A nil field is unconstrained; a non-nil field
// requires its lowercased value to be a substring of the song's index field.
type Query struct {
	Title  *string
	Artist *string
	Genre  *string
}

// Str returns a pointer to s, for building queries inline.
func Str(s string) *string { return &s }

// ParseQuery builds a Query from URL query parameters.
// Unknown parameters are rejected; a repeated parameter uses its first value.
func ParseQuery(values url.Values) (Query, error) {
	var q Query
	for name, vs := range values {
		if len(vs) == 0 {
			continue
		}
		v := vs[0]
		switch name {
		case FieldTitle:
			q.Title = &v
		case FieldArtist:
			q.Artist = &v
		case FieldGenre:
			q.Genre = &v
		default:
			return Query{}, fmt.Errorf("unknown search field %q", name)
		}
	}
	return q, nil
}

// Empty reports whether the query has no constraints.
func (q Query) Empty() bool {
	return q.Title == nil && q.Artist == nil && q.Genre == nil
}

// GenreFilter returns the lowercased genre constraint, if any.
func (q Query) GenreFilter() (string, bool) {
	if q.Genre == nil {
		return "", false
	}
	return strings.ToLower(*q.Genre), true
}

// Matches reports whether s satisfies every constraint in q.
func (q Query) Matches(s Song) bool {
	return contains(s.Index.Title, q.Title) &&
		contains(s.Index.Artist, q.Artist) &&
		contains(s.Index.Genre, q.Genre)
}

func contains(indexed string, filter *string) bool {
	if filter == nil {
		return true
	}
	return strings.Contains(indexed, strings.ToLower(*filter))
}

// Key returns the canonical cache key for q: present fields sorted by name,
// each rendered as name=lowercased value, joined by '&'.
// Queries with the same field/value pairs always share a key.
func (q Query) Key() string {
	parts := make([]string, 0, 3)
	add := func(name string, v *string) {
		if v != nil {
			parts = append(parts, name+"="+url.QueryEscape(strings.ToLower(*v)))
		}
	}
	add(FieldTitle, q.Title)
	add(FieldArtist, q.Artist)
	add(FieldGenre, q.Genre)
	slices.Sort(parts)
	return strings.Join(parts, "&")
}

// Values renders q as URL query parameters.
func (q Query) Values() url.Values {
	v := url.Values{}
	if q.Title != nil {
		v.Set(FieldTitle, *q.Title)
	}
	if q.Artist != nil {
		v.Set(FieldArtist, *q.Artist)
	}
	if q.Genre != nil {
		v.Set(FieldGenre, *q.Genre)
	}
	return v
}
