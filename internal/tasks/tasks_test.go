package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/mixdeck/internal/download"
	"github.com/desertthunder/mixdeck/internal/models"
	"github.com/desertthunder/mixdeck/internal/shared"
	th "github.com/desertthunder/mixdeck/internal/testing"
)

type fakePlaylists struct {
	playlists map[string]models.Playlist
	songs     map[string][]models.Song
}

func (f *fakePlaylists) Load(ctx context.Context, id string) (*models.Playlist, bool) {
	p, ok := f.playlists[id]
	if !ok {
		return nil, false
	}
	return &p, true
}

func (f *fakePlaylists) LoadUserPlaylists(ctx context.Context) []models.Playlist { return nil }
func (f *fakePlaylists) Save(ctx context.Context, p *models.Playlist) bool       { return false }
func (f *fakePlaylists) Delete(ctx context.Context, id string) bool              { return false }
func (f *fakePlaylists) AddSong(ctx context.Context, id string, s models.Song) bool {
	return false
}
func (f *fakePlaylists) RemoveSong(ctx context.Context, id, songID string) bool { return false }
func (f *fakePlaylists) Search(ctx context.Context, q string, n int) []models.Playlist {
	return nil
}
func (f *fakePlaylists) GetSongs(ctx context.Context, id string) []models.Song {
	return f.songs[id]
}

// fakeDownloads writes "<id>-audio" to a temp file. Songs whose ID starts with "bad" fail.
type fakeDownloads struct {
	dir     string
	calls   atomic.Int32
	running atomic.Int32
	peak    atomic.Int32
	block   chan struct{}
}

func (f *fakeDownloads) DownloadAudio(ctx context.Context, song models.Song, progress models.ProgressFunc) (string, error) {
	f.calls.Add(1)
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	progress.Emit(models.StartingProgress(&song))
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			progress.Emit(models.FailedProgress(&song, 0, ctx.Err()))
			return "", ctx.Err()
		}
	}

	if strings.HasPrefix(song.ID, "bad") {
		err := fmt.Errorf("%w: boom", shared.ErrDownloadFailed)
		progress.Emit(models.FailedProgress(&song, 0, err))
		return "", err
	}

	path := filepath.Join(f.dir, "mixdeck-"+song.ID+".m4a")
	if err := os.WriteFile(path, []byte(song.ID+"-audio"), 0644); err != nil {
		return "", err
	}
	progress.Emit(models.DownloadingProgress(&song, 5, 10))
	progress.Emit(models.CompletedProgress(&song, 10, 10))
	return path, nil
}

// guardedDownloads runs fakeDownloads behind a download guard the way the source backends do.
type guardedDownloads struct {
	*fakeDownloads
	guard *download.Guard
}

func (g *guardedDownloads) DownloadAudio(ctx context.Context, song models.Song, progress models.ProgressFunc) (string, error) {
	return g.guard.Do(ctx, download.Key(song, "m4a", "0"), song, progress, func(ctx context.Context, progress models.ProgressFunc) (string, error) {
		return g.fakeDownloads.DownloadAudio(ctx, song, progress)
	})
}

func (f *fakeDownloads) GetAudioStream(ctx context.Context, s models.AudioStreamInfo) (io.ReadCloser, error) {
	return nil, shared.ErrNotSupported
}
func (f *fakeDownloads) GetContentLength(ctx context.Context, url string) (int64, error) {
	return -1, nil
}
func (f *fakeDownloads) SupportsDirectStreaming() bool { return false }

type fakeCache struct {
	mu    sync.Mutex
	songs []models.Song
}

func (c *fakeCache) CacheSongs(songs []models.Song) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.songs = append(c.songs, songs...)
	return nil
}

type fakeHistory struct {
	mu       sync.Mutex
	begun    int
	statuses []models.DownloadStatus
}

func (h *fakeHistory) Begin(song models.Song, url string) (*models.DownloadRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.begun++
	return models.NewDownloadRecord(0, song, url), nil
}

func (h *fakeHistory) Finish(r *models.DownloadRecord, path string, bytes int64, err error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		r.Fail(err)
	} else {
		r.Complete(path, bytes)
	}
	h.statuses = append(h.statuses, r.Status())
	return nil
}

func song(id string) models.Song {
	return models.Song{ID: id, Title: "Title " + id, Artist: "Artist", Source: "Fake"}
}

func newPlaylists(ids ...string) *fakePlaylists {
	songs := make([]models.Song, len(ids))
	for i, id := range ids {
		songs[i] = song(id)
	}
	return &fakePlaylists{
		playlists: map[string]models.Playlist{"p1": {ID: "p1", Name: "Road/Trip", SongCount: len(ids), Source: "Fake"}},
		songs:     map[string][]models.Song{"p1": songs},
	}
}

func drain(ch chan ProgressUpdate) []ProgressUpdate {
	var updates []ProgressUpdate
	for {
		select {
		case u := <-ch:
			updates = append(updates, u)
		default:
			return updates
		}
	}
}

func TestSave(t *testing.T) {
	ctx := context.Background()

	t.Run("moves the download into the output dir", func(t *testing.T) {
		history := &fakeHistory{}
		engine := NewEngine(shared.DiscardLogger(), nil, history)
		dl := &fakeDownloads{dir: t.TempDir()}
		out := t.TempDir()

		var rec th.ProgressRecorder
		res := engine.Save(ctx, dl, song("a"), SaveOpts{OutputDir: out}, rec.Func())
		if res.Err != nil {
			t.Fatal(res.Err)
		}

		want := filepath.Join(out, "Artist - Title a.m4a")
		if res.Path != want || res.Bytes != int64(len("a-audio")) {
			t.Errorf("unexpected result %+v", res)
		}
		if th.MustReadFile(t, want) != "a-audio" {
			t.Error("unexpected file content")
		}
		th.AssertWellFormed(t, rec.Events())

		if history.begun != 1 || len(history.statuses) != 1 || history.statuses[0] != models.DownloadCompleted {
			t.Errorf("expected completed history record, got %v", history.statuses)
		}
	})

	t.Run("skips existing files", func(t *testing.T) {
		engine := NewEngine(nil, nil, nil)
		dl := &fakeDownloads{dir: t.TempDir()}
		out := t.TempDir()
		existing := filepath.Join(out, "Artist - Title a.opus")
		if err := os.WriteFile(existing, []byte("old"), 0644); err != nil {
			t.Fatal(err)
		}

		res := engine.Save(ctx, dl, song("a"), SaveOpts{OutputDir: out}, nil)
		if !res.Skipped || res.Path != existing || res.Bytes != 3 {
			t.Errorf("expected skip, got %+v", res)
		}
		if dl.calls.Load() != 0 {
			t.Error("download should not run for an existing file")
		}

		res = engine.Save(ctx, dl, song("a"), SaveOpts{OutputDir: out, Overwrite: true}, nil)
		if res.Skipped || res.Err != nil || dl.calls.Load() != 1 {
			t.Errorf("expected overwrite, got %+v", res)
		}
	})

	t.Run("records failures", func(t *testing.T) {
		history := &fakeHistory{}
		engine := NewEngine(nil, nil, history)
		res := engine.Save(ctx, &fakeDownloads{dir: t.TempDir()}, song("bad1"), SaveOpts{OutputDir: t.TempDir()}, nil)
		if !errors.Is(res.Err, shared.ErrDownloadFailed) {
			t.Errorf("expected ErrDownloadFailed, got %v", res.Err)
		}
		if len(history.statuses) != 1 || history.statuses[0] != models.DownloadFailed {
			t.Errorf("expected failed history record, got %v", history.statuses)
		}
	})

	t.Run("concurrent saves of one song", func(t *testing.T) {
		engine := NewEngine(nil, nil, nil)
		fake := &fakeDownloads{dir: t.TempDir(), block: make(chan struct{})}
		dl := &guardedDownloads{fakeDownloads: fake, guard: download.NewGuard(0, shared.DiscardLogger())}
		outs := []string{t.TempDir(), t.TempDir()}

		results := make([]SaveResult, len(outs))
		var wg sync.WaitGroup
		for i, out := range outs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i] = engine.Save(ctx, dl, song("a"), SaveOpts{OutputDir: out}, nil)
			}()
		}
		time.Sleep(20 * time.Millisecond)
		close(fake.block)
		wg.Wait()

		if fake.calls.Load() != 1 {
			t.Errorf("expected one download, got %d", fake.calls.Load())
		}
		for i, res := range results {
			if res.Err != nil {
				t.Errorf("save %d failed: %v", i, res.Err)
				continue
			}
			want := filepath.Join(outs[i], "Artist - Title a.m4a")
			if res.Path != want {
				t.Errorf("save %d: expected %s, got %s", i, want, res.Path)
			}
			if th.MustReadFile(t, want) != "a-audio" {
				t.Errorf("save %d: unexpected file content", i)
			}
		}
	})

	t.Run("nil service", func(t *testing.T) {
		res := NewEngine(nil, nil, nil).Save(ctx, nil, song("a"), SaveOpts{}, nil)
		if !errors.Is(res.Err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", res.Err)
		}
	})
}

func TestBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("downloads every song", func(t *testing.T) {
		cache := &fakeCache{}
		engine := NewEngine(shared.DiscardLogger(), cache, &fakeHistory{})
		dl := &fakeDownloads{dir: t.TempDir()}
		out := filepath.Join(t.TempDir(), "out")
		prog := make(chan ProgressUpdate, 256)

		res, err := engine.Batch(ctx, prog, newPlaylists("a", "bad1", "c", "d"), dl, "p1",
			BatchOpts{OutputDir: out, NumWorkers: 2, RateLimit: 1000})
		if err != nil {
			t.Fatal(err)
		}

		if res.Total != 4 || res.Succeeded != 3 || res.Failed != 1 || res.Skipped != 0 {
			t.Errorf("unexpected summary %+v", res)
		}
		if len(res.Results) != 4 || res.Results[1].Song.ID != "bad1" {
			t.Errorf("results should follow playlist order, got %d", len(res.Results))
		}
		if len(cache.songs) != 4 {
			t.Errorf("expected 4 cached songs, got %d", len(cache.songs))
		}
		if dl.peak.Load() > 2 {
			t.Errorf("expected at most 2 concurrent downloads, got %d", dl.peak.Load())
		}

		th.AssertFileExists(t, filepath.Join(out, "Artist - Title d.m4a"))
		manifest := th.MustReadFile(t, res.ManifestPath)
		if !strings.Contains(manifest, `"failed": 1`) || !strings.Contains(manifest, "boom") {
			t.Errorf("unexpected manifest:\n%s", manifest)
		}

		phases := map[Phase]int{}
		for _, u := range drain(prog) {
			phases[u.Phase]++
		}
		if phases[LoadPlaylist] != 2 || phases[Summary] != 4 || phases[DownloadSong] == 0 {
			t.Errorf("unexpected progress phases %v", phases)
		}
	})

	t.Run("defaults output dir to playlist name", func(t *testing.T) {
		t.Chdir(t.TempDir())
		engine := NewEngine(nil, nil, nil)
		res, err := engine.Batch(ctx, nil, newPlaylists("a"), &fakeDownloads{dir: t.TempDir()}, "p1", BatchOpts{RateLimit: 1000})
		if err != nil {
			t.Fatal(err)
		}
		if res.OutputDirectory != "Road_Trip" {
			t.Errorf("unexpected output directory %q", res.OutputDirectory)
		}
		th.AssertDirExists(t, "Road_Trip")
	})

	t.Run("default output dir under base dir", func(t *testing.T) {
		base := t.TempDir()
		engine := NewEngine(nil, nil, nil)
		res, err := engine.Batch(ctx, nil, newPlaylists("a"), &fakeDownloads{dir: t.TempDir()}, "p1", BatchOpts{BaseDir: base, RateLimit: 1000})
		if err != nil {
			t.Fatal(err)
		}
		if want := filepath.Join(base, "Road_Trip"); res.OutputDirectory != want {
			t.Errorf("expected %q, got %q", want, res.OutputDirectory)
		}
		th.AssertFileExists(t, filepath.Join(base, "Road_Trip", ManifestName))
	})

	t.Run("limit", func(t *testing.T) {
		engine := NewEngine(nil, nil, nil)
		dl := &fakeDownloads{dir: t.TempDir()}
		res, err := engine.Batch(ctx, nil, newPlaylists("a", "b", "c"), dl, "p1",
			BatchOpts{OutputDir: t.TempDir(), Limit: 2, RateLimit: 1000})
		if err != nil {
			t.Fatal(err)
		}
		if res.Total != 2 || dl.calls.Load() != 2 {
			t.Errorf("expected 2 downloads, got %d", dl.calls.Load())
		}
	})

	t.Run("missing playlist", func(t *testing.T) {
		engine := NewEngine(nil, nil, nil)
		_, err := engine.Batch(ctx, nil, newPlaylists(), &fakeDownloads{}, "nope", BatchOpts{})
		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("cancellation returns partial results", func(t *testing.T) {
		engine := NewEngine(nil, nil, nil)
		dl := &fakeDownloads{dir: t.TempDir(), block: make(chan struct{})}
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan struct{})
		var (
			res *BatchResult
			err error
		)
		go func() {
			res, err = engine.Batch(ctx, nil, newPlaylists("a", "b", "c", "d", "e"), dl, "p1",
				BatchOpts{OutputDir: t.TempDir(), NumWorkers: 1, RateLimit: 1000})
			close(done)
		}()

		for dl.calls.Load() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
		<-done

		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if res == nil || len(res.Results) >= 5 || res.Failed == 0 {
			t.Errorf("expected a partial result with the cancelled song, got %+v", res)
		}
	})
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(nil, &fakeCache{}, nil)

	res, err := engine.Export(ctx, nil, newPlaylists("a", "b"), "p1", ExportOpts{Format: "txt", OutputDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	content := th.MustReadFile(t, res.Files[0])
	if !strings.Contains(content, "Playlist: Road/Trip") || !strings.Contains(content, "2. Artist - Title b") {
		t.Errorf("unexpected export:\n%s", content)
	}

	if _, err := engine.Export(ctx, nil, newPlaylists(), "nope", ExportOpts{}); !errors.Is(err, shared.ErrPlaylistNotFound) {
		t.Errorf("expected ErrPlaylistNotFound, got %v", err)
	}
}

func TestSendProgressNeverBlocks(t *testing.T) {
	ch := make(chan ProgressUpdate)
	sendProgress(ch, ProgressUpdate{Message: "dropped"})
	sendProgress(nil, ProgressUpdate{Message: "ignored"})
}
