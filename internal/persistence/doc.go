// Package persistence writes the catalog to durable storage and reads it back
// at startup.
//
// # Overview
//
// The snapshot is a single blob holding a JSON array of every song, each with
// its id, display fields, play count, and lowercase search index. It is the
// only durable state; the query cache and the visit counter are rebuilt from
// nothing on every start.
//
//	┌──────────────┐  Snapshot()  ┌─────────┐  Encode  ┌───────────────┐
//	│ catalog.Store│─────────────▶│ Manager │─────────▶│ storage.Store │
//	└──────────────┘              └─────────┘   Put    └───────────────┘
//	        ▲                          ▲
//	        │ Insert                   │ Save every interval
//	     Restore                   Scheduler
//
// # Encoding
//
// Records are marshalled in parallel chunks bounded by GOMAXPROCS and joined
// into one array in snapshot order. With compression enabled the array is
// wrapped in a zstd frame. Decode recognises the zstd magic number, so turning
// compression on or off never strands an existing snapshot.
//
// # Failure Handling
//
//   - Missing snapshot: Load returns an empty catalog and no error
//   - Unreadable or corrupt snapshot: Load returns an empty catalog and an
//     error wrapping ErrSnapshotCorrupt (or the read error) for reporting
//   - Failed save: logged, counted in jukebox_snapshot_failures_total, and
//     retried on the next tick
//
// The snapshot is read-committed per genre shard. Songs added after their
// shard was copied miss the current snapshot and land in the next one.
package persistence
