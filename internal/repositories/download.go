package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/mixdeck/internal/models"
	"github.com/desertthunder/mixdeck/internal/shared"
)

const downloadColumns = `id, sequence, source, song_id, title, stream_url, status, output_path, bytes, error,
	created_at, updated_at, deleted_at`

// DownloadRepository implements models.Repository[*models.DownloadRecord] for the download history.
type DownloadRepository struct {
	db *sql.DB
}

// NewDownloadRepository creates a new DownloadRepository with the given database connection
func NewDownloadRepository(db *sql.DB) *DownloadRepository {
	return &DownloadRepository{db: db}
}

var _ models.Repository[*models.DownloadRecord] = (*DownloadRepository)(nil)

// Create inserts a new [models.DownloadRecord] with generated ID and sequence
func (r *DownloadRepository) Create(record *models.DownloadRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "downloads")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	record.SetID(id)
	record.SetSequence(sequence)

	query := `
		INSERT INTO downloads (id, sequence, source, song_id, title, stream_url, status, output_path, bytes, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		record.Source(),
		record.SongID(),
		record.Title(),
		record.StreamURL(),
		string(record.Status()),
		record.OutputPath(),
		record.Bytes(),
		record.Error(),
		record.CreatedAt(),
		record.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert download: %w", err)
	}

	return nil
}

// Get retrieves a download record by ID, excluding soft-deleted records
func (r *DownloadRepository) Get(id string) (*models.DownloadRecord, error) {
	query := `SELECT ` + downloadColumns + ` FROM downloads WHERE id = ? AND deleted_at IS NULL`
	record, err := r.scan(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("download %s: %w", id, ErrNotFound)
	}
	return record, err
}

// LatestCompleted returns the most recent completed download of a song.
func (r *DownloadRepository) LatestCompleted(source, songID string) (*models.DownloadRecord, error) {
	query := `SELECT ` + downloadColumns + ` FROM downloads
		WHERE source = ? AND song_id = ? AND status = ? AND deleted_at IS NULL
		ORDER BY sequence DESC LIMIT 1`
	record, err := r.scan(r.db.QueryRow(query, source, songID, string(models.DownloadCompleted)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("download of %s:%s: %w", source, songID, ErrNotFound)
	}
	return record, err
}

// Update stores the outcome of a download
func (r *DownloadRepository) Update(record *models.DownloadRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	record.SetUpdatedAt(now)

	query := `
		UPDATE downloads
		SET status = ?, output_path = ?, bytes = ?, error = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		string(record.Status()),
		record.OutputPath(),
		record.Bytes(),
		record.Error(),
		now,
		record.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update download: %w", err)
	}

	return checkAffected(result, "download", record.ID())
}

// Delete soft-deletes a download record by ID
func (r *DownloadRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE downloads SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete download: %w", err)
	}
	return checkAffected(result, "download", id)
}

// List retrieves download records, newest first.
//
// Supported criteria: "source" (string), "song_id" (string), "status" ([models.DownloadStatus]) and "limit" (int).
func (r *DownloadRepository) List(criteria map[string]any) ([]*models.DownloadRecord, error) {
	query := `SELECT ` + downloadColumns + ` FROM downloads WHERE deleted_at IS NULL`
	args := []any{}

	if source, ok := criteria["source"].(string); ok && source != "" {
		query += " AND source = ?"
		args = append(args, source)
	}

	if songID, ok := criteria["song_id"].(string); ok && songID != "" {
		query += " AND song_id = ?"
		args = append(args, songID)
	}

	if status, ok := criteria["status"].(models.DownloadStatus); ok && status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query downloads: %w", err)
	}
	defer rows.Close()

	var records []*models.DownloadRecord
	for rows.Next() {
		record, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// Clear permanently removes the whole download history.
func (r *DownloadRepository) Clear() (int64, error) {
	result, err := r.db.Exec(`DELETE FROM downloads`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear downloads: %w", err)
	}
	return result.RowsAffected()
}

func (r *DownloadRepository) scan(row scanner) (*models.DownloadRecord, error) {
	var (
		id        string
		sequence  int
		source    string
		songID    string
		title     string
		streamURL string
		status    string
		output    string
		bytes     int64
		errMsg    string
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
	)

	err := row.Scan(&id, &sequence, &source, &songID, &title, &streamURL, &status, &output, &bytes, &errMsg,
		&createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan download: %w", err)
	}

	record := models.NewDownloadRecord(sequence, models.Song{ID: songID, Source: source}, streamURL)
	record.SetTitle(title)
	record.Restore(models.DownloadStatus(status), output, bytes, errMsg)
	record.SetID(id)
	record.SetCreatedAt(createdAt)
	record.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		record.SetDeletedAt(&deletedAt.Time)
	}

	return record, nil
}
