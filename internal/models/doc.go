// Package models defines the value records shared by every music source and the persistent entities used by the local cache.
//
// The package contains two categories of types:
//
// 1. Source records: plain values returned by capability services
//   - [Song] : Track metadata with candidate [AudioStreamInfo] descriptors
//   - [AudioStreamInfo] : Enough information to fetch or extract playable audio
//   - [Playlist] : Playlist metadata from a source
//   - [DownloadProgress] : One progress event of a single download
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [PersistedSong] : Cached songs keyed by source and source id
//   - [DownloadRecord] : Outcome of a download, kept as history
//
// All persistent entities implement the Model interface providing ID generation, timestamps and validation.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
