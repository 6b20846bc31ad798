package models

import (
	"time"
)

// Model is a row in the local cache database: a [PersistedSong] in the song cache or a [DownloadRecord] in the
// download history.
type Model interface {
	ID() string           // Generated UUID, not the source's song id
	CreatedAt() time.Time // First cached or first attempted
	UpdatedAt() time.Time // Last refreshed from a source or last status change
	Validate() error      // Checked before every write
}

// Repository stores one kind of [Model] in SQLite.
//
// List filters are keyed by column: "source" for both tables, "query" for song title or artist, "song_id" and
// "status" for download history. "limit" caps the result.
type Repository[T Model] interface {
	Create(model T) error
	Get(id string) (T, error)
	Update(model T) error
	Delete(id string) error
	List(criteria map[string]any) ([]T, error)
}
