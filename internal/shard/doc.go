// Package shard implements a single genre partition of the song catalog.
//
// # Overview
//
// A Shard owns every song whose lowercased genre equals the shard's key. It is
// the unit of lock contention in the catalog: inserts, plays, and scans on one
// genre serialize against each other, while different genres never block one
// another.
//
// # Concurrency and Thread Safety
//
// Locking Strategy:
//   - Get, Collect, and Songs take the shard's read lock
//   - Insert and Update take the write lock
//   - Statistics are updated with atomic adds and can be read without a lock
//
// Values handed out by the shard are always copies. The only way to mutate a
// stored record is Update, which runs the caller's function while the write
// lock is held:
//
//	updated, ok := s.Update(id, func(rec *song.Song) {
//	    rec.PlayCount++
//	})
//
// # Statistics
//
// Each shard tracks inserts, in-place updates, and full scans. The counters are
// cumulative since the shard was created and are exposed through Info for the
// /shards endpoint.
package shard
