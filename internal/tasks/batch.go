package tasks

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/desertthunder/mixdeck/internal/formatter"
	"github.com/desertthunder/mixdeck/internal/models"
	"github.com/desertthunder/mixdeck/internal/shared"
	"github.com/desertthunder/mixdeck/internal/sources"
	"golang.org/x/time/rate"
)

const (
	defaultWorkers   = 3
	maxWorkers       = 8
	defaultRateLimit = 2.0

	// ManifestName is the file written to the output directory after a batch.
	ManifestName = "mixdeck_manifest.json"
)

// BatchOpts contains configuration for playlist batch downloads.
type BatchOpts struct {
	OutputDir  string  // Destination directory (default: BaseDir joined with the playlist name)
	BaseDir    string  // Parent of the default destination; the working directory when empty
	NumWorkers int     // Concurrent downloads (default: 3, max: 8)
	RateLimit  float64 // Download starts per second (default: 2)
	Limit      int     // Maximum songs to download; zero downloads all
	Overwrite  bool
}

// BatchResult summarizes a batch download. Results follow playlist order and omit songs never started.
type BatchResult struct {
	Playlist        models.Playlist
	Total           int
	Succeeded       int
	Skipped         int
	Failed          int
	Results         []SaveResult
	OutputDirectory string
	ManifestPath    string
}

type batchJob struct {
	index int
	song  models.Song
}

// Batch downloads the songs of a playlist with a worker pool.
//
// Failed songs do not stop the batch. When ctx is cancelled, queued songs are dropped and the partial result is
// returned together with ctx.Err().
func (e *Engine) Batch(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	pl sources.PlaylistService,
	dl sources.DownloadService,
	playlistID string,
	opts BatchOpts,
) (*BatchResult, error) {
	if pl == nil || dl == nil {
		return nil, fmt.Errorf("%w: playlist and download services are required", shared.ErrServiceUnavailable)
	}

	if opts.NumWorkers <= 0 {
		opts.NumWorkers = defaultWorkers
	}
	if opts.NumWorkers > maxWorkers {
		opts.NumWorkers = maxWorkers
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}

	sendProgress(prog, ProgressUpdate{Phase: LoadPlaylist, Step: 1, Total: 2, Message: "Loading playlist..."})
	playlist, ok := pl.Load(ctx, playlistID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}

	songs := pl.GetSongs(ctx, playlistID)
	if opts.Limit > 0 && len(songs) > opts.Limit {
		songs = songs[:opts.Limit]
	}
	e.cacheSongs(songs)

	if opts.OutputDir == "" {
		opts.OutputDir = filepath.Join(opts.BaseDir, formatter.SafeFilename(playlist.Name))
	}

	total := len(songs)
	sendProgress(prog, ProgressUpdate{
		Phase:   LoadPlaylist,
		Step:    2,
		Total:   2,
		Message: fmt.Sprintf("Found playlist: %s (%d songs)", playlist.Name, total),
		Data:    playlist,
	})

	result := &BatchResult{Playlist: *playlist, Total: total, OutputDirectory: opts.OutputDir}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan batchJob)
	results := make(chan batchJob, total)
	slots := make([]*SaveResult, total)

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				res := e.Save(ctx, dl, job.song, SaveOpts{OutputDir: opts.OutputDir, Overwrite: opts.Overwrite},
					forwardProgress(prog, job.index+1, total))
				slots[job.index] = &res
				results <- job
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, song := range songs {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			select {
			case jobs <- batchJob{index: i, song: song}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for job := range results {
		completed++
		res := *slots[job.index]
		var msg string
		switch {
		case res.Err != nil:
			result.Failed++
			msg = fmt.Sprintf("[%d/%d] ✗ %s: %v", completed, total, res.Song.DisplayName(), res.Err)
		case res.Skipped:
			result.Skipped++
			msg = fmt.Sprintf("[%d/%d] - %s (exists)", completed, total, res.Song.DisplayName())
		default:
			result.Succeeded++
			msg = fmt.Sprintf("[%d/%d] ✓ %s (%s)", completed, total, res.Song.DisplayName(), shared.FormatBytes(res.Bytes))
		}
		sendProgress(prog, ProgressUpdate{Phase: Summary, Step: completed, Total: total, Message: msg, Data: res})
	}

	for _, slot := range slots {
		if slot != nil {
			result.Results = append(result.Results, *slot)
		}
	}

	if total > 0 {
		manifestPath := filepath.Join(opts.OutputDir, ManifestName)
		if err := formatter.WriteJSONFile(newManifest(result), manifestPath); err != nil {
			e.logger.Warn("failed to write manifest", "error", err)
		} else {
			result.ManifestPath = manifestPath
		}
	}

	return result, ctx.Err()
}

// forwardProgress adapts per-song download events to [ProgressUpdate] values.
func forwardProgress(prog chan<- ProgressUpdate, step, total int) models.ProgressFunc {
	return func(p models.DownloadProgress) {
		name := ""
		if p.Song != nil {
			name = p.Song.DisplayName()
		}
		sendProgress(prog, ProgressUpdate{
			Phase:   DownloadSong,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] %s: %s", step, total, name, p.Status),
			Data:    p,
		})
	}
}

type manifestEntry struct {
	Song    formatter.SongRecord `json:"song"`
	Path    string               `json:"path,omitempty"`
	Bytes   int64                `json:"bytes"`
	Skipped bool                 `json:"skipped,omitempty"`
	Error   string               `json:"error,omitempty"`
}

type manifest struct {
	Playlist  formatter.PlaylistRecord `json:"playlist"`
	Total     int                      `json:"total"`
	Succeeded int                      `json:"succeeded"`
	Skipped   int                      `json:"skipped"`
	Failed    int                      `json:"failed"`
	Songs     []manifestEntry          `json:"songs"`
}

func newManifest(r *BatchResult) manifest {
	m := manifest{
		Playlist:  formatter.ToPlaylistRecord(r.Playlist),
		Total:     r.Total,
		Succeeded: r.Succeeded,
		Skipped:   r.Skipped,
		Failed:    r.Failed,
		Songs:     make([]manifestEntry, 0, len(r.Results)),
	}
	for _, res := range r.Results {
		entry := manifestEntry{
			Song:    formatter.ToSongRecord(res.Song),
			Path:    res.Path,
			Bytes:   res.Bytes,
			Skipped: res.Skipped,
		}
		if res.Err != nil {
			entry.Error = res.Err.Error()
		}
		m.Songs = append(m.Songs, entry)
	}
	return m
}
