package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/mixdeck/internal/models"
	"github.com/desertthunder/mixdeck/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPlaylistsFetched MsgKind = iota
	MsgSongsFetched
	MsgProgressUpdate
	MsgBatchComplete
	MsgDownloadProgress
	MsgDownloadComplete
)

type playlistsFetched struct {
	playlists []models.Playlist
	err       error
}

type songsFetched struct {
	export *models.PlaylistExport
	err    error
}

type batchComplete struct {
	result *tasks.BatchResult
	err    error
}

// playlistsFetchedMsg is the constructor for [MsgPlaylistsFetched]
func playlistsFetchedMsg(playlists []models.Playlist, err error) Msg {
	return Msg{kind: MsgPlaylistsFetched, data: playlistsFetched{playlists, err}}
}

// songsFetchedMsg is the constructor for [MsgSongsFetched]
func songsFetchedMsg(export *models.PlaylistExport, err error) Msg {
	return Msg{kind: MsgSongsFetched, data: songsFetched{export, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// batchCompleteMsg is the constructor for [MsgBatchComplete]
func batchCompleteMsg(result *tasks.BatchResult, err error) Msg {
	return Msg{kind: MsgBatchComplete, data: batchComplete{result, err}}
}

// downloadProgressMsg is the constructor for [MsgDownloadProgress]
func downloadProgressMsg(p models.DownloadProgress) Msg {
	return Msg{kind: MsgDownloadProgress, data: p}
}

// downloadCompleteMsg is the constructor for [MsgDownloadComplete]
func downloadCompleteMsg(result tasks.SaveResult) Msg {
	return Msg{kind: MsgDownloadComplete, data: result}
}
