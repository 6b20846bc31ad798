package models

import "time"

// PlaybackState is the playback state of a [Song] as tracked by the consumer.
type PlaybackState int

const (
	Stopped PlaybackState = iota
	Playing
	Paused
	Buffering
	Errored
)

func (s PlaybackState) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Buffering:
		return "buffering"
	case Errored:
		return "error"
	default:
		return ""
	}
}

// Song represents a track returned by a source.
//
// ID is unique within its Source only. Songs are handed over to the caller; sources do not keep references to them.
type Song struct {
	ID             string
	Title          string
	Artist         string
	Album          string
	Duration       time.Duration // Zero when unknown
	ThumbnailURL   string
	SourceURL      string
	Description    string
	Source         string            // Name of the owning source
	Streams        []AudioStreamInfo // Candidate streams, when known
	SelectedStream *AudioStreamInfo
	PlaylistName   string // Set when retrieved in playlist context
	State          PlaybackState
}

// Key identifies the song across sources as "source:id".
func (s *Song) Key() string {
	return s.Source + ":" + s.ID
}

// DisplayName returns "Artist - Title", or just the title when the artist is unknown.
func (s *Song) DisplayName() string {
	if s.Artist == "" {
		return s.Title
	}
	return s.Artist + " - " + s.Title
}

// Playlist represents a music playlist from any source.
type Playlist struct {
	ID           string
	Name         string
	Description  string
	ThumbnailURL string
	SongCount    int // May be an upper-bound estimate before the songs are enumerated
	Source       string
	Public       bool
}

// PlaylistExport is a playlist together with its enumerated songs.
type PlaylistExport struct {
	Playlist Playlist
	Songs    []Song
}
