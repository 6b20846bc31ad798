package main

import (
	"context"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/mixdeck/internal/models"
	"github.com/desertthunder/mixdeck/internal/shared"
	"github.com/desertthunder/mixdeck/internal/tasks"
	"github.com/desertthunder/mixdeck/internal/ui"
	"github.com/urfave/cli/v3"
)

// Download resolves a song and saves it to the output directory.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: song id", shared.ErrMissingArgument)
	}
	source := cmd.String("source")

	song, err := r.songMetadata(ctx, source, id)
	if err != nil {
		return err
	}
	dl, err := r.downloadService(ctx, source)
	if err != nil {
		return err
	}

	opts := tasks.SaveOpts{OutputDir: r.outputDir(cmd.String("output")), Overwrite: cmd.Bool("overwrite")}
	run := func(ctx context.Context, progress models.ProgressFunc) tasks.SaveResult {
		return r.engine.Save(ctx, dl, *song, opts, progress)
	}

	var result tasks.SaveResult
	if cmd.Bool("plain") {
		result = run(ctx, r.plainProgress())
	} else {
		restore := r.redirectLogs()
		model := ui.NewDownloadModel(ctx, *song, run)
		_, err := tea.NewProgram(model, tea.WithContext(ctx)).Run()
		restore()
		if err != nil {
			return fmt.Errorf("error running download view: %w", err)
		}
		res := model.Result()
		if res == nil {
			return ctx.Err()
		}
		result = *res
	}

	switch {
	case result.Err != nil:
		return result.Err
	case result.Skipped:
		return r.writePlain("- Already downloaded: %s\n", result.Path)
	default:
		return r.writePlain("✓ Saved %s (%s)\n", result.Path, shared.FormatBytes(result.Bytes))
	}
}

// plainProgress prints a line per phase change and per 25% of a known total.
func (r *Runner) plainProgress() models.ProgressFunc {
	var mu sync.Mutex
	lastPhase := models.Phase(-1)
	lastQuarter := int64(-1)

	return func(p models.DownloadProgress) {
		mu.Lock()
		defer mu.Unlock()

		quarter := p.Percent() / 25
		if p.Phase == lastPhase && (p.Total <= 0 || quarter == lastQuarter) {
			return
		}
		lastPhase, lastQuarter = p.Phase, quarter

		if p.Phase == models.PhaseDownloading && p.Total > 0 {
			r.writePlain("  %-12s %3d%% (%s / %s)\n", p.Phase, p.Percent(), shared.FormatBytes(p.Downloaded), shared.FormatBytes(p.Total))
			return
		}
		r.writePlain("  %-12s %s\n", p.Phase, p.Status)
	}
}

// Batch downloads a playlist with the worker pool, printing one line per finished song.
func (r *Runner) Batch(ctx context.Context, cmd *cli.Command) error {
	playlistID := cmd.StringArg("playlist")
	if playlistID == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}
	source := cmd.String("source")

	pl, err := r.playlistService(ctx, source)
	if err != nil {
		return err
	}
	dl, err := r.downloadService(ctx, source)
	if err != nil {
		return err
	}

	opts := r.batchOpts(cmd)
	r.logger.Info("starting batch download", "playlist", playlistID, "workers", opts.NumWorkers)

	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			switch update.Phase {
			case tasks.LoadPlaylist:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.Summary:
				r.writePlain("   %s\n", update.Message)
			}
		}
	}()

	result, err := r.engine.Batch(ctx, progress, pl, dl, playlistID, opts)
	close(progress)
	<-done

	if result == nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Batch Complete!")
	r.writePlain("Playlist: %s\n", result.Playlist.Name)
	r.writePlain("Saved: %d  Skipped: %d  Failed: %d  (of %d)\n", result.Succeeded, result.Skipped, result.Failed, result.Total)
	r.writePlain("Output: %s\n", result.OutputDirectory)
	if result.ManifestPath != "" {
		r.writePlain("Manifest: %s\n", result.ManifestPath)
	}

	if result.Failed > 0 {
		r.writePlain("\nFailed to download %d songs:\n", result.Failed)
		for _, res := range result.Results {
			if res.Err != nil {
				r.writePlain("  - %s: %v\n", res.Song.DisplayName(), res.Err)
			}
		}
	}
	return err
}

// batchOpts merges command flags over the [download] config section.
func (r *Runner) batchOpts(cmd *cli.Command) tasks.BatchOpts {
	opts := tasks.BatchOpts{
		OutputDir:  cmd.String("output"),
		BaseDir:    r.config.Download.OutputDir,
		NumWorkers: r.config.Download.Workers,
		RateLimit:  r.config.Download.RateLimit,
		Limit:      cmd.Int("limit"),
		Overwrite:  cmd.Bool("overwrite"),
	}
	if n := cmd.Int("workers"); n > 0 {
		opts.NumWorkers = n
	}
	if rate := cmd.Float("rate"); rate > 0 {
		opts.RateLimit = rate
	}
	return opts
}
