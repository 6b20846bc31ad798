// Package download turns audio streams into local files.
//
// Two strategies exist:
//   - [Fetcher] streams a direct HTTP URL into a temp file
//   - [Extractor] runs an external extraction tool (yt-dlp) and parses its progress from stdout
//
// Both report progress through a [models.ProgressFunc]: a Starting event, zero or more non-decreasing Downloading
// events and exactly one terminal event. [Guard] deduplicates concurrent downloads of one stream and retries
// failed attempts.
package download
