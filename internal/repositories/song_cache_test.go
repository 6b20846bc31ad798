package repositories

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/desertthunder/mixdeck/internal/models"
)

func TestSongCacheAdapter(t *testing.T) {
	t.Run("deduplicates", func(t *testing.T) {
		repo := NewSongRepository(setupTestDB(t))
		cache := NewSongCacheAdapter(repo)

		songs := []models.Song{testSong("a"), testSong("b"), testSong("a")}
		if err := cache.CacheSongs(songs); err != nil {
			t.Fatalf("failed to cache songs: %v", err)
		}

		stored, _ := repo.List(map[string]any{})
		if len(stored) != 2 {
			t.Errorf("expected 2 cached songs, got %d", len(stored))
		}

		got, ok := cache.Lookup("YouTube", "b")
		if !ok || got.Title != "Song b" {
			t.Errorf("expected cached song, got %+v", got)
		}
	})

	t.Run("skips incomplete songs", func(t *testing.T) {
		repo := NewSongRepository(setupTestDB(t))
		cache := NewSongCacheAdapter(repo)

		if err := cache.CacheSong(models.Song{ID: "a", Source: "YouTube"}); err != nil {
			t.Errorf("expected untitled song to be skipped, got %v", err)
		}
		if _, ok := cache.Lookup("YouTube", "a"); ok {
			t.Error("expected no cached song")
		}
	})

	t.Run("closed database", func(t *testing.T) {
		db := setupTestDB(t)
		cache := NewSongCacheAdapter(NewSongRepository(db))
		db.Close()

		if err := cache.CacheSongs([]models.Song{testSong("a"), testSong("b")}); err == nil {
			t.Error("expected error on closed database")
		}
	})
}

func TestHistoryAdapter(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status models.DownloadStatus
	}{
		{"completed", nil, models.DownloadCompleted},
		{"failed", errors.New("boom"), models.DownloadFailed},
		{"cancelled", fmt.Errorf("download: %w", context.Canceled), models.DownloadCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewDownloadRepository(setupTestDB(t))
			history := NewHistoryAdapter(repo)

			record, err := history.Begin(testSong("a"), "https://cdn/a")
			if err != nil {
				t.Fatalf("failed to begin: %v", err)
			}
			if err := history.Finish(record, "/tmp/a", 10, tt.err); err != nil {
				t.Fatalf("failed to finish: %v", err)
			}

			stored, err := repo.Get(record.ID())
			if err != nil {
				t.Fatal(err)
			}
			if stored.Status() != tt.status {
				t.Errorf("expected status %s, got %s", tt.status, stored.Status())
			}
		})
	}
}
