package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/desertthunder/mixdeck/internal/formatter"
	"github.com/desertthunder/mixdeck/internal/models"
	"github.com/desertthunder/mixdeck/internal/shared"
	"github.com/urfave/cli/v3"
)

func (r *Runner) requireDatabase() error {
	if r.db == nil {
		return fmt.Errorf("%w: database not available, run 'mixdeck setup'", shared.ErrServiceUnavailable)
	}
	return nil
}

type historyEntry struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	SongID    string `json:"song_id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	Path      string `json:"path,omitempty"`
	Bytes     int64  `json:"bytes"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
}

// History lists recorded downloads, or clears them with --clear.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireDatabase(); err != nil {
		return err
	}

	if cmd.Bool("clear") {
		n, err := r.downloads.Clear()
		if err != nil {
			return err
		}
		return r.writePlain("✓ Removed %d download records\n", n)
	}

	records, err := r.downloads.List(map[string]any{
		"source": r.canonicalSource(cmd.String("source")),
		"status": models.DownloadStatus(cmd.String("status")),
		"limit":  cmd.Int("limit"),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		entries := make([]historyEntry, len(records))
		for i, rec := range records {
			entries[i] = historyEntry{
				ID:        rec.ID(),
				Source:    rec.Source(),
				SongID:    rec.SongID(),
				Title:     rec.Title(),
				Status:    string(rec.Status()),
				Path:      rec.OutputPath(),
				Bytes:     rec.Bytes(),
				Error:     rec.Error(),
				CreatedAt: rec.CreatedAt().Format(time.RFC3339),
			}
		}
		return r.writeJSON(entries, cmd.Bool("pretty"))
	}

	if len(records) == 0 {
		return r.writePlain("No downloads recorded.\n")
	}
	return r.writePlain("%s\n", formatter.HistoryTable(records))
}

// CacheStats prints the number of cached songs per source.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireDatabase(); err != nil {
		return err
	}

	counts, err := r.songs.Count()
	if err != nil {
		return err
	}
	if len(counts) == 0 {
		return r.writePlain("Cache is empty.\n")
	}

	names := make([]string, 0, len(counts))
	total := 0
	for name, n := range counts {
		names = append(names, name)
		total += n
	}
	sort.Strings(names)

	for _, name := range names {
		r.writePlain("%-10s %d\n", name, counts[name])
	}
	return r.writePlain("%-10s %d\n", "Total", total)
}

// CacheList prints cached songs.
func (r *Runner) CacheList(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireDatabase(); err != nil {
		return err
	}

	stored, err := r.songs.List(map[string]any{
		"source": r.canonicalSource(cmd.String("source")),
		"query":  cmd.String("query"),
		"limit":  cmd.Int("limit"),
	})
	if err != nil {
		return err
	}

	songs := make([]models.Song, len(stored))
	for i, s := range stored {
		songs[i] = s.Song()
	}

	if cmd.Bool("json") {
		return r.writeJSON(formatter.ToSongRecords(songs), cmd.Bool("pretty"))
	}
	if len(songs) == 0 {
		return r.writePlain("No cached songs.\n")
	}
	return r.writePlain("%s\n", formatter.SongsTable(songs))
}

// CacheClear removes cached songs of one source or all of them.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireDatabase(); err != nil {
		return err
	}

	n, err := r.songs.Purge(r.canonicalSource(cmd.String("source")))
	if err != nil {
		return err
	}
	return r.writePlain("✓ Removed %d cached songs\n", n)
}
