// Package tasks orchestrates multi-step operations on top of the sources with non-blocking progress reporting.
//
// # Core Operations
//
//  1. [Engine.Save] : Download one song and move it into the output directory
//     - Skips songs whose file already exists unless overwriting
//     - Records the outcome in the download history
//
//  2. [Engine.Batch] : Download every song of a playlist
//     - Worker pool paced by a [rate.Limiter]
//     - Per-song progress is forwarded as [ProgressUpdate] values
//     - Returns a per-song summary and writes a JSON manifest
//
//  3. [Engine.Export] : Write a playlist and its songs to JSON, CSV, Markdown or text
//
// # Progress Reporting
//
// Updates are sent with select/default so a slow consumer never stalls a download.
// Consumers that need every event should use a buffered channel.
//
// # Caching
//
// The optional [SongCacher] and [HistoryRecorder] persist enumerated songs and download outcomes.
// Their errors are logged and never fail an operation.
package tasks
