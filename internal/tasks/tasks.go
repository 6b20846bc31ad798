package tasks

import (
	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixdeck/internal/models"
	"github.com/desertthunder/mixdeck/internal/shared"
)

// Phase of a long-running operation.
type Phase int

const (
	LoadPlaylist Phase = iota
	DownloadSong
	ExportPlaylist
	Summary
)

func (p Phase) String() string {
	switch p {
	case LoadPlaylist:
		return "load_playlist"
	case DownloadSong:
		return "download_song"
	case ExportPlaylist:
		return "export_playlist"
	case Summary:
		return "summary"
	default:
		return ""
	}
}

// ProgressUpdate represents a progress event during a long-running operation.
type ProgressUpdate struct {
	Phase   Phase
	Step    int    // Current step within the phase, starting at 1
	Total   int    // Total steps in the phase
	Message string // Human-readable message for display
	Data    any    // Phase-specific payload: [models.DownloadProgress] or [SaveResult] while downloading
}

// SongCacher persists enumerated songs (repositories.SongCacheAdapter).
type SongCacher interface {
	CacheSongs(songs []models.Song) error
}

// HistoryRecorder stores download outcomes (repositories.HistoryAdapter).
type HistoryRecorder interface {
	Begin(song models.Song, streamURL string) (*models.DownloadRecord, error)
	Finish(record *models.DownloadRecord, path string, bytes int64, err error) error
}

// Engine runs tasks against source services. Cache and history are optional.
type Engine struct {
	cache   SongCacher
	history HistoryRecorder
	logger  *log.Logger
}

// NewEngine creates an Engine. Either of cache and history may be nil.
func NewEngine(logger *log.Logger, cache SongCacher, history HistoryRecorder) *Engine {
	return &Engine{cache: cache, history: history, logger: shared.WithLogger(logger, "component", "tasks")}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func (e *Engine) cacheSongs(songs []models.Song) {
	if e.cache == nil || len(songs) == 0 {
		return
	}
	if err := e.cache.CacheSongs(songs); err != nil {
		e.logger.Warn("failed to cache songs", "error", err)
	}
}
