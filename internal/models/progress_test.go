package models

import (
	"errors"
	"strings"
	"testing"
)

func TestDownloadProgress(t *testing.T) {
	song := &Song{ID: "abc", Title: "Song", Source: "youtube"}

	t.Run("Percent", func(t *testing.T) {
		p := DownloadingProgress(song, 512000, 2048000)
		if p.Percent() != 25 {
			t.Errorf("expected 25%%, got %d", p.Percent())
		}
		if p.Status != "25%" {
			t.Errorf("expected status 25%%, got %q", p.Status)
		}
	})

	t.Run("Unknown Total", func(t *testing.T) {
		p := DownloadingProgress(song, 1024, 0)
		if p.Percent() != 0 {
			t.Errorf("expected 0%% for unknown total, got %d", p.Percent())
		}
	})

	t.Run("Phases", func(t *testing.T) {
		if StartingProgress(song).Phase.Terminal() {
			t.Error("starting should not be terminal")
		}
		if !CompletedProgress(song, 1, 1).Phase.Terminal() {
			t.Error("completed should be terminal")
		}

		failed := FailedProgress(song, 0, errors.New("boom"))
		if !failed.Phase.Terminal() {
			t.Error("failed should be terminal")
		}
		if !strings.Contains(failed.Status, "boom") {
			t.Errorf("expected error in status, got %q", failed.Status)
		}
	})

	t.Run("Nil ProgressFunc", func(t *testing.T) {
		var f ProgressFunc
		f.Emit(StartingProgress(song))
	})
}

func TestSong(t *testing.T) {
	song := Song{ID: "42", Title: "Title", Artist: "Artist", Source: "spotify"}
	if song.Key() != "spotify:42" {
		t.Errorf("unexpected key %s", song.Key())
	}
	if song.DisplayName() != "Artist - Title" {
		t.Errorf("unexpected display name %s", song.DisplayName())
	}

	song.Artist = ""
	if song.DisplayName() != "Title" {
		t.Errorf("unexpected display name %s", song.DisplayName())
	}
}
