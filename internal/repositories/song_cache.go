package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/mixdeck/internal/models"
)

// SongCacheAdapter implements tasks.SongCacher using SongRepository.
//
// Writes are upserts on source+source_id, so caching the same song twice refreshes it instead of duplicating it.
// Songs without an ID, source or title are skipped.
type SongCacheAdapter struct {
	repo *SongRepository
}

// NewSongCacheAdapter creates a new SongCacheAdapter with the given repository
func NewSongCacheAdapter(repo *SongRepository) *SongCacheAdapter {
	return &SongCacheAdapter{repo: repo}
}

// CacheSong stores or refreshes a single song.
func (a *SongCacheAdapter) CacheSong(song models.Song) error {
	if song.ID == "" || song.Source == "" || song.Title == "" {
		return nil
	}
	if err := a.repo.Upsert(models.NewPersistedSong(0, song)); err != nil {
		return fmt.Errorf("failed to cache song %s: %w", song.Key(), err)
	}
	return nil
}

// CacheSongs stores every song, returning the joined errors of the ones that failed.
func (a *SongCacheAdapter) CacheSongs(songs []models.Song) error {
	var errs []error
	for _, song := range songs {
		if err := a.CacheSong(song); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Lookup returns the cached copy of a song, if any.
func (a *SongCacheAdapter) Lookup(source, id string) (models.Song, bool) {
	stored, err := a.repo.GetBySourceID(source, id)
	if err != nil {
		return models.Song{}, false
	}
	return stored.Song(), true
}

// HistoryAdapter implements tasks.HistoryRecorder using DownloadRepository.
type HistoryAdapter struct {
	repo *DownloadRepository
}

// NewHistoryAdapter creates a new HistoryAdapter with the given repository
func NewHistoryAdapter(repo *DownloadRepository) *HistoryAdapter {
	return &HistoryAdapter{repo: repo}
}

// Begin records a pending download.
func (a *HistoryAdapter) Begin(song models.Song, streamURL string) (*models.DownloadRecord, error) {
	record := models.NewDownloadRecord(0, song, streamURL)
	if err := a.repo.Create(record); err != nil {
		return nil, err
	}
	return record, nil
}

// Finish stores the outcome of a download started with Begin. A nil err completes the record.
func (a *HistoryAdapter) Finish(record *models.DownloadRecord, path string, bytes int64, err error) error {
	switch {
	case err == nil:
		record.Complete(path, bytes)
	case errors.Is(err, context.Canceled):
		record.Cancel()
	default:
		record.Fail(err)
	}
	return a.repo.Update(record)
}
