package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/mixdeck/internal/models"
	"github.com/desertthunder/mixdeck/internal/shared"
)

const songColumns = `id, sequence, source, source_id, title, artist, album, duration_ms, thumbnail_url, source_url,
	created_at, updated_at, deleted_at`

// SongRepository implements models.Repository[*models.PersistedSong] for the song cache.
//
// Songs are unique per source and source id. Soft-deleted songs are revived by [SongRepository.Upsert].
type SongRepository struct {
	db *sql.DB
}

// NewSongRepository creates a new SongRepository with the given database connection
func NewSongRepository(db *sql.DB) *SongRepository {
	return &SongRepository{db: db}
}

var _ models.Repository[*models.PersistedSong] = (*SongRepository)(nil)

// Create inserts a new [models.PersistedSong] into the database with generated ID and sequence
func (r *SongRepository) Create(song *models.PersistedSong) error {
	if err := song.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "songs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	song.SetID(id)
	song.SetSequence(sequence)

	query := `
		INSERT INTO songs (id, sequence, source, source_id, title, artist, album, duration_ms, thumbnail_url, source_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		song.Source(),
		song.SourceID(),
		song.Title(),
		song.Artist(),
		song.Album(),
		song.Duration().Milliseconds(),
		song.ThumbnailURL(),
		song.SourceURL(),
		song.CreatedAt(),
		song.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert song: %w", err)
	}

	return nil
}

// Upsert inserts the song or refreshes the cached metadata of an existing one, reviving it when soft-deleted.
// The stored ID and sequence are written back to song.
func (r *SongRepository) Upsert(song *models.PersistedSong) error {
	if err := song.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "songs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	now := time.Now()
	query := `
		INSERT INTO songs (id, sequence, source, source_id, title, artist, album, duration_ms, thumbnail_url, source_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source, source_id) DO UPDATE SET
			title = excluded.title,
			artist = excluded.artist,
			album = excluded.album,
			duration_ms = excluded.duration_ms,
			thumbnail_url = excluded.thumbnail_url,
			source_url = excluded.source_url,
			updated_at = excluded.updated_at,
			deleted_at = NULL
	`

	_, err = r.db.Exec(query,
		shared.GenerateID(),
		sequence,
		song.Source(),
		song.SourceID(),
		song.Title(),
		song.Artist(),
		song.Album(),
		song.Duration().Milliseconds(),
		song.ThumbnailURL(),
		song.SourceURL(),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert song: %w", err)
	}

	stored, err := r.GetBySourceID(song.Source(), song.SourceID())
	if err != nil {
		return err
	}
	song.SetID(stored.ID())
	song.SetSequence(stored.Sequence())
	song.SetCreatedAt(stored.CreatedAt())
	song.SetUpdatedAt(stored.UpdatedAt())
	return nil
}

// Get retrieves a song by ID, excluding soft-deleted songs
func (r *SongRepository) Get(id string) (*models.PersistedSong, error) {
	query := `SELECT ` + songColumns + ` FROM songs WHERE id = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, id), id)
}

// GetBySourceID retrieves a song by source and the source's own song id
func (r *SongRepository) GetBySourceID(source, sourceID string) (*models.PersistedSong, error) {
	query := `SELECT ` + songColumns + ` FROM songs WHERE source = ? AND source_id = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, source, sourceID), source+":"+sourceID)
}

// Update modifies the cached metadata of an existing song
func (r *SongRepository) Update(song *models.PersistedSong) error {
	if err := song.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	song.SetUpdatedAt(now)

	query := `
		UPDATE songs
		SET title = ?, artist = ?, album = ?, duration_ms = ?, thumbnail_url = ?, source_url = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		song.Title(),
		song.Artist(),
		song.Album(),
		song.Duration().Milliseconds(),
		song.ThumbnailURL(),
		song.SourceURL(),
		now,
		song.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update song: %w", err)
	}

	return checkAffected(result, "song", song.ID())
}

// Delete soft-deletes a song by ID
func (r *SongRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE songs SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete song: %w", err)
	}
	return checkAffected(result, "song", id)
}

// List retrieves cached songs, excluding soft-deleted ones.
//
// Supported criteria: "source" (string), "query" (string, matched against title and artist) and "limit" (int).
func (r *SongRepository) List(criteria map[string]any) ([]*models.PersistedSong, error) {
	query := `SELECT ` + songColumns + ` FROM songs WHERE deleted_at IS NULL`
	args := []any{}

	if source, ok := criteria["source"].(string); ok && source != "" {
		query += " AND source = ?"
		args = append(args, source)
	}

	if q, ok := criteria["query"].(string); ok && q != "" {
		query += " AND (title LIKE ? OR artist LIKE ?)"
		pattern := "%" + q + "%"
		args = append(args, pattern, pattern)
	}

	query += " ORDER BY sequence ASC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query songs: %w", err)
	}
	defer rows.Close()

	var songs []*models.PersistedSong
	for rows.Next() {
		song, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		songs = append(songs, song)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return songs, nil
}

// Count returns the number of cached songs per source.
func (r *SongRepository) Count() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT source, COUNT(*) FROM songs WHERE deleted_at IS NULL GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("failed to count songs: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			source string
			n      int
		)
		if err := rows.Scan(&source, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[source] = n
	}
	return counts, rows.Err()
}

// Purge permanently removes cached songs of source, or of every source when source is empty.
func (r *SongRepository) Purge(source string) (int64, error) {
	query, args := `DELETE FROM songs`, []any{}
	if source != "" {
		query += " WHERE source = ?"
		args = append(args, source)
	}

	result, err := r.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to purge songs: %w", err)
	}
	return result.RowsAffected()
}

func (r *SongRepository) scanOne(row *sql.Row, key string) (*models.PersistedSong, error) {
	song, err := r.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("song %s: %w", key, ErrNotFound)
	}
	return song, err
}

// scan reads one row of songColumns into a [models.PersistedSong]
func (r *SongRepository) scan(row scanner) (*models.PersistedSong, error) {
	var (
		id         string
		sequence   int
		source     string
		sourceID   string
		title      string
		artist     string
		album      string
		durationMS int64
		thumbnail  string
		sourceURL  string
		createdAt  time.Time
		updatedAt  time.Time
		deletedAt  sql.NullTime
	)

	err := row.Scan(&id, &sequence, &source, &sourceID, &title, &artist, &album, &durationMS, &thumbnail, &sourceURL,
		&createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan song: %w", err)
	}

	song := models.NewPersistedSong(sequence, models.Song{
		ID:           sourceID,
		Title:        title,
		Artist:       artist,
		Album:        album,
		Duration:     time.Duration(durationMS) * time.Millisecond,
		ThumbnailURL: thumbnail,
		SourceURL:    sourceURL,
		Source:       source,
	})
	song.SetID(id)
	song.SetCreatedAt(createdAt)
	song.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		song.SetDeletedAt(&deletedAt.Time)
	}

	return song, nil
}
