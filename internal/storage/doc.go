// Package storage defines where catalog snapshots are kept: a small blob
// store interface with local-disk and in-memory implementations, plus MinIO
// and S3 implementations in the minio and s3 subpackages.
//
// # Overview
//
// A snapshot is a single named blob that is fully rewritten on every save.
// The only hard requirement on a backend is that Put replaces a blob as a
// unit: a reader, or the next process start, sees either the previous
// snapshot or the new one.
//
//	┌─────────────────────────────────────┐
//	│        persistence.Manager          │
//	└─────────────────────────────────────┘
//	                 │
//	                 ▼
//	┌─────────────────────────────────────┐
//	│           storage.Store             │
//	│      (Get, Put, Delete, List)       │
//	└─────────────────────────────────────┘
//	                 │
//	    ┌────────────┼────────────┬────────────┐
//	    ▼            ▼            ▼            ▼
//	┌────────┐  ┌────────┐  ┌────────┐  ┌────────┐
//	│ Local  │  │ Memory │  │ MinIO  │  │   S3   │
//	└────────┘  └────────┘  └────────┘  └────────┘
//
// # Implementations
//
// LocalStore: one file per blob under a root directory
//   - Put writes a temp file, fsyncs, then renames over the target
//   - Temp files start with "." and are ignored by List
//
// MemoryStore: in-process map guarded by sync.RWMutex
//   - No persistence (data lost on restart)
//   - Suitable for tests and ephemeral deployments
//
// minio.Store and s3.Store: object storage
//   - A single PutObject is atomic from the reader's point of view
//   - Keys are prefixed with a configurable root
//
// # Error Handling
//
// ErrNotFound (os.ErrNotExist) is returned by Get for a missing blob on every
// backend; use IsNotFound to test for it. Delete of a missing blob succeeds.
package storage
