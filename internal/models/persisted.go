package models

import (
	"fmt"
	"time"
)

// entity holds the fields shared by every persistent model.
type entity struct {
	id        string
	sequence  int
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

func newEntity(sequence int) entity {
	now := time.Now()
	return entity{sequence: sequence, createdAt: now, updatedAt: now}
}

func (e *entity) ID() string                { return e.id }
func (e *entity) Sequence() int             { return e.sequence }
func (e *entity) CreatedAt() time.Time      { return e.createdAt }
func (e *entity) UpdatedAt() time.Time      { return e.updatedAt }
func (e *entity) DeletedAt() *time.Time     { return e.deletedAt }
func (e *entity) SetID(id string)           { e.id = id }
func (e *entity) SetSequence(seq int)       { e.sequence = seq }
func (e *entity) SetCreatedAt(t time.Time)  { e.createdAt = t }
func (e *entity) SetUpdatedAt(t time.Time)  { e.updatedAt = t }
func (e *entity) SetDeletedAt(t *time.Time) { e.deletedAt = t }

// PersistedSong is a cached [Song], unique per source and source id.
type PersistedSong struct {
	entity
	source   string
	sourceID string
	song     Song
}

var _ Model = (*PersistedSong)(nil)

// NewPersistedSong wraps a [Song] for caching.
func NewPersistedSong(sequence int, song Song) *PersistedSong {
	return &PersistedSong{
		entity:   newEntity(sequence),
		source:   song.Source,
		sourceID: song.ID,
		song:     song,
	}
}

func (p *PersistedSong) Source() string          { return p.source }
func (p *PersistedSong) SourceID() string        { return p.sourceID }
func (p *PersistedSong) Title() string           { return p.song.Title }
func (p *PersistedSong) Artist() string          { return p.song.Artist }
func (p *PersistedSong) Album() string           { return p.song.Album }
func (p *PersistedSong) Duration() time.Duration { return p.song.Duration }
func (p *PersistedSong) ThumbnailURL() string    { return p.song.ThumbnailURL }
func (p *PersistedSong) SourceURL() string       { return p.song.SourceURL }

// Song returns a copy of the cached song without stream candidates.
func (p *PersistedSong) Song() Song {
	s := p.song
	s.Streams = nil
	s.SelectedStream = nil
	return s
}

// SetSong replaces the cached metadata, keeping source and source id.
func (p *PersistedSong) SetSong(song Song) {
	song.Source = p.source
	song.ID = p.sourceID
	p.song = song
}

func (p *PersistedSong) Validate() error {
	if p.source == "" {
		return fmt.Errorf("source is required")
	}
	if p.sourceID == "" {
		return fmt.Errorf("source id is required")
	}
	if p.song.Title == "" {
		return fmt.Errorf("title is required")
	}
	return nil
}

// DownloadStatus is the outcome stored in a [DownloadRecord].
type DownloadStatus string

const (
	DownloadPending   DownloadStatus = "pending"
	DownloadCompleted DownloadStatus = "completed"
	DownloadFailed    DownloadStatus = "failed"
	DownloadCancelled DownloadStatus = "cancelled"
)

// DownloadRecord tracks one download of a song.
type DownloadRecord struct {
	entity
	source     string
	songID     string
	title      string
	streamURL  string
	status     DownloadStatus
	outputPath string
	bytes      int64
	errorMsg   string
}

var _ Model = (*DownloadRecord)(nil)

// NewDownloadRecord creates a pending record for the given song and stream URL.
func NewDownloadRecord(sequence int, song Song, streamURL string) *DownloadRecord {
	return &DownloadRecord{
		entity:    newEntity(sequence),
		source:    song.Source,
		songID:    song.ID,
		title:     song.DisplayName(),
		streamURL: streamURL,
		status:    DownloadPending,
	}
}

func (d *DownloadRecord) Source() string         { return d.source }
func (d *DownloadRecord) SongID() string         { return d.songID }
func (d *DownloadRecord) Title() string          { return d.title }
func (d *DownloadRecord) StreamURL() string      { return d.streamURL }
func (d *DownloadRecord) Status() DownloadStatus { return d.status }
func (d *DownloadRecord) OutputPath() string     { return d.outputPath }
func (d *DownloadRecord) Bytes() int64           { return d.bytes }
func (d *DownloadRecord) Error() string          { return d.errorMsg }

// SetTitle overrides the display title captured at creation.
func (d *DownloadRecord) SetTitle(title string) { d.title = title }

// Complete marks the record as completed with the output file and its size.
func (d *DownloadRecord) Complete(path string, bytes int64) {
	d.status = DownloadCompleted
	d.outputPath = path
	d.bytes = bytes
	d.errorMsg = ""
}

// Fail marks the record as failed.
func (d *DownloadRecord) Fail(err error) {
	d.status = DownloadFailed
	if err != nil {
		d.errorMsg = err.Error()
	}
}

// Cancel marks the record as cancelled.
func (d *DownloadRecord) Cancel() {
	d.status = DownloadCancelled
}

// Restore sets the outcome fields read back from storage.
func (d *DownloadRecord) Restore(status DownloadStatus, path string, bytes int64, errMsg string) {
	d.status = status
	d.outputPath = path
	d.bytes = bytes
	d.errorMsg = errMsg
}

func (d *DownloadRecord) Validate() error {
	if d.source == "" {
		return fmt.Errorf("source is required")
	}
	if d.songID == "" {
		return fmt.Errorf("song id is required")
	}
	switch d.status {
	case DownloadPending, DownloadCompleted, DownloadFailed, DownloadCancelled:
	default:
		return fmt.Errorf("invalid status: %s", d.status)
	}
	if d.status == DownloadCompleted && d.outputPath == "" {
		return fmt.Errorf("output path is required for completed downloads")
	}
	return nil
}
