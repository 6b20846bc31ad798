// Package youtube implements the YouTube source on top of the yt-dlp executable.
//
// Metadata, search and playlists come from yt-dlp's JSON output (-j / -J). Audio is fetched directly over HTTP
// from the format URLs yt-dlp resolves, falling back to extraction when no direct URL is usable.
package youtube
