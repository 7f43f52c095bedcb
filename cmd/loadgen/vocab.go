package main

import (
	"math/rand/v2"
	"strings"

	"github.com/dreamware/jukebox/internal/song"
)

var vocabulary = []string{
	"Aurora", "Bliss", "Breeze", "Cascade", "Cinder", "Cliff", "Comet", "Crimson", "Dew", "Drift",
	"Eclipse", "Ember", "Frost", "Galaxy", "Gleam", "Glow", "Harmony", "Haven", "Infinity", "Iris",
	"Journey", "Lagoon", "Lullaby", "Meadow", "Mist", "Mystic", "Nebula", "Oasis", "Orbit", "Petal",
	"Pulse", "Quartz", "Realm", "Reflection", "Resonance", "Ripple", "Rising", "Sanctuary", "Serene", "Shade",
	"Shelter", "Shimmer", "Silver", "Solace", "Spark", "Spire", "Stillness", "Stream", "Summit", "Symphony",
	"Temple", "Thorn", "Thunder", "Tide", "Tranquil", "Treasure", "Unity", "Valley", "Velocity", "Vortex",
	"Wave", "Wilderness", "Wisdom", "Wonder", "Zephyr", "Zenith", "Blaze", "Cove", "Crest", "Crystal",
	"Dawnlight", "Delight", "Dusk", "Echoes", "Essence", "Ethereal", "Evergreen", "Fable", "Fern", "Flicker",
	"Fragment", "Glimpse", "Glowstone", "Horizon", "Illusion", "Lyric", "Melody", "Moonrise", "Opal", "Passage",
	"Radiance", "Seascape", "Solitude", "Spectrum", "Timeless", "Whispering", "Willow", "Wings",
}

var artists = []string{
	"Taylor Swift", "Ed Sheeran", "Adele", "Drake", "Billie Eilish", "Beyoncé", "Justin Bieber",
	"The Weeknd", "Lady Gaga", "Bruno Mars", "Ariana Grande", "Katy Perry", "Harry Styles", "Rihanna",
	"Dua Lipa", "Sam Smith", "Post Malone", "Shawn Mendes", "Selena Gomez", "Lil Nas X",
}

var genres = []string{"Rock", "Pop", "Country", "Jazz", "Electronic", "Hip-Hop", "Blues", "Classical", "Folk", "Reggae"}

// generator produces random songs and queries from a fixed vocabulary.
// It is not safe for concurrent use.
type generator struct {
	rng *rand.Rand
}

func newGenerator(seed uint64) *generator {
	return &generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (g *generator) pick(from []string) string {
	return from[g.rng.IntN(len(from))]
}

// title joins one to five random vocabulary words.
func (g *generator) title() string {
	words := make([]string, 1+g.rng.IntN(5))
	for i := range words {
		words[i] = g.pick(vocabulary)
	}
	return strings.Join(words, " ")
}

func (g *generator) song() song.NewSongRequest {
	return song.NewSongRequest{
		Title:  g.title(),
		Artist: g.pick(artists),
		Genre:  g.pick(genres),
	}
}

// query returns a filter constraining at least one field.
func (g *generator) query() song.Query {
	var q song.Query
	for q.Empty() {
		if g.rng.IntN(2) == 0 {
			q.Title = song.Str(g.title())
		}
		if g.rng.IntN(2) == 0 {
			q.Artist = song.Str(g.pick(artists))
		}
		if g.rng.IntN(2) == 0 {
			q.Genre = song.Str(g.pick(genres))
		}
	}
	return q
}
