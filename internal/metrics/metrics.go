// Package metrics defines the Prometheus collectors exported by jukebox.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const component = "jukebox"

var (
	songsAdded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: component,
			Name:      "songs_added_total",
			Help:      "Count of songs added to the catalog, by genre shard.",
		},
		[]string{"genre"},
	)

	plays = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: component,
			Name:      "plays_total",
			Help:      "Count of successful play operations.",
		},
	)

	playNotFound = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: component,
			Name:      "play_not_found_total",
			Help:      "Count of play operations against an unknown song id.",
		},
	)

	searches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: component,
			Name:      "search_total",
			Help:      "Count of searches, by whether the result came from the query cache.",
		},
		[]string{"cache"},
	)

	snapshotDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: component,
			Name:      "snapshot_duration_seconds",
			Help:      "Time taken to encode and write a catalog snapshot.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		},
	)

	snapshotFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: component,
			Name:      "snapshot_failures_total",
			Help:      "Count of snapshot saves that failed to encode or write.",
		},
	)

	snapshotSongs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: component,
			Name:      "snapshot_songs",
			Help:      "Number of songs in the most recent successful snapshot.",
		},
	)
)

var registerMetrics sync.Once

// Register adds every collector to reg. Later calls are no-ops.
func Register(reg prometheus.Registerer) {
	registerMetrics.Do(func() {
		reg.MustRegister(songsAdded)
		reg.MustRegister(plays)
		reg.MustRegister(playNotFound)
		reg.MustRegister(searches)
		reg.MustRegister(snapshotDuration)
		reg.MustRegister(snapshotFailures)
		reg.MustRegister(snapshotSongs)
	})
}

// RecordSongAdded counts a song inserted into the given genre shard.
func RecordSongAdded(genre string) {
	songsAdded.WithLabelValues(genre).Inc()
}

// RecordPlay counts a play; found is false when the id was unknown.
func RecordPlay(found bool) {
	if found {
		plays.Inc()
		return
	}
	playNotFound.Inc()
}

// RecordSearch counts a search served from the cache (hit) or computed (miss).
func RecordSearch(hit bool) {
	label := "miss"
	if hit {
		label = "hit"
	}
	searches.WithLabelValues(label).Inc()
}

// RecordSnapshot records the outcome of one save cycle.
func RecordSnapshot(elapsed time.Duration, songs int, err error) {
	if err != nil {
		snapshotFailures.Inc()
		return
	}
	snapshotDuration.Observe(elapsed.Seconds())
	snapshotSongs.Set(float64(songs))
}
