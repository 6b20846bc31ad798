// Package repositories implements SQLite persistence for the local song cache and download history.
//
// Each repository handles CRUD operations with atomic sequence generation for stable ordering.
// Records are soft deleted via deleted_at timestamps and excluded from queries by default.
//
// Key Implementations:
//   - [SongRepository] : Song metadata cache, unique per source and source id
//   - [DownloadRepository] : Download outcomes with status tracking
//   - [SongCacheAdapter] : Deduplicating cache writes for search and metadata results
//
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
