package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/mixdeck/internal/formatter"
	"github.com/desertthunder/mixdeck/internal/models"
	"github.com/desertthunder/mixdeck/internal/shared"
	"github.com/desertthunder/mixdeck/internal/sources"
)

// SaveOpts configures [Engine.Save].
type SaveOpts struct {
	OutputDir string // Defaults to the working directory
	Overwrite bool   // Replace an existing file instead of skipping the song
}

// SaveResult is the outcome of saving one song.
type SaveResult struct {
	Song    models.Song
	Path    string
	Bytes   int64
	Skipped bool // The file already existed
	Err     error
}

// Save downloads song with dl and moves the file to opts.OutputDir as "Artist - Title.ext".
func (e *Engine) Save(ctx context.Context, dl sources.DownloadService, song models.Song, opts SaveOpts, progress models.ProgressFunc) SaveResult {
	result := SaveResult{Song: song}
	if dl == nil {
		result.Err = fmt.Errorf("%w: download service unavailable", shared.ErrServiceUnavailable)
		return result
	}

	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		result.Err = fmt.Errorf("failed to create output directory: %w", err)
		return result
	}

	base := formatter.SongBasename(song)
	if !opts.Overwrite {
		if existing, ok := findExisting(dir, base); ok {
			result.Path = existing
			result.Skipped = true
			if info, err := os.Stat(existing); err == nil {
				result.Bytes = info.Size()
			}
			e.logger.Debug("skipping existing file", "song", song.Key(), "path", existing)
			return result
		}
	}

	record := e.beginHistory(song)

	tmp, err := dl.DownloadAudio(ctx, song, progress)
	if err == nil {
		result.Path, result.Bytes, err = moveFile(tmp, filepath.Join(dir, formatter.SongFilename(song, filepath.Ext(tmp))))
	}
	result.Err = err

	e.finishHistory(record, result)
	return result
}

func (e *Engine) beginHistory(song models.Song) *models.DownloadRecord {
	if e.history == nil {
		return nil
	}
	streamURL := ""
	if song.SelectedStream != nil {
		streamURL = song.SelectedStream.URL
	}
	record, err := e.history.Begin(song, streamURL)
	if err != nil {
		e.logger.Warn("failed to record download", "song", song.Key(), "error", err)
		return nil
	}
	return record
}

func (e *Engine) finishHistory(record *models.DownloadRecord, result SaveResult) {
	if record == nil {
		return
	}
	if err := e.history.Finish(record, result.Path, result.Bytes, result.Err); err != nil {
		e.logger.Warn("failed to record download outcome", "song", result.Song.Key(), "error", err)
	}
}

// findExisting looks for a file named base with any extension.
func findExisting(dir, base string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			continue
		}
		if strings.TrimSuffix(name, filepath.Ext(name)) == base {
			return filepath.Join(dir, name), true
		}
	}
	return "", false
}

// moveFile renames src to dst, copying across filesystems. src is removed either way.
func moveFile(src, dst string) (string, int64, error) {
	if err := os.Rename(src, dst); err == nil {
		info, err := os.Stat(dst)
		if err != nil {
			return dst, 0, err
		}
		return dst, info.Size(), nil
	}

	defer os.Remove(src)

	in, err := os.Open(src)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open download: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create %s: %w", dst, err)
	}

	n, err := io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dst)
		return "", 0, fmt.Errorf("failed to copy download: %w", errors.Join(err, shared.ErrDownloadFailed))
	}
	return dst, n, nil
}
