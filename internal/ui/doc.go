// Package ui implements interactive terminal views using bubbletea's Elm architecture.
//
// [DownloadModel] shows a single download: a spinner while the source prepares the transfer, then a progress bar
// fed by [models.DownloadProgress] events.
//
// [Model] is a multi-view playlist browser:
//  1. [PlaylistListView] : Browse the user's playlists of one source
//  2. [SongListView] : Preview songs before downloading
//  3. [ConfirmView] : Confirm the batch download
//  4. [BatchView] : Monitor per-song progress from [tasks.Engine.Batch]
//  5. [ResultView] : Display saved, skipped and failed songs
//
// Both models receive work results through the [Msg] union. Progress flows through channels, so downloads never wait on rendering.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
