package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixdeck/internal/models"
	"github.com/desertthunder/mixdeck/internal/shared"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// DefaultBackoff is the wait between download attempts.
const DefaultBackoff = 2 * time.Second

// AttemptFunc performs one download attempt.
type AttemptFunc func(ctx context.Context, progress models.ProgressFunc) (string, error)

// Key identifies the output of downloading song as format at quality. Songs with a selected stream are keyed by
// that stream as well.
func Key(song models.Song, format, quality string) string {
	key := song.Key() + "|" + models.NormalizeExtension(format) + "|" + quality
	if song.SelectedStream != nil && song.SelectedStream.URL != "" {
		key += "|" + song.SelectedStream.URL
	}
	return key
}

// Guard allows at most one in-flight download per key and retries failed attempts.
//
// Callers that join an in-flight download receive their own copy of the output file. Only the leading caller
// sees intermediate progress; joined callers get a Starting event and the terminal event. Every event a caller
// sees references the same song.
type Guard struct {
	group      singleflight.Group
	MaxRetries int
	Backoff    time.Duration
	logger     *log.Logger

	mu      sync.Mutex
	waiting map[string][]*ticket
}

// ticket holds the file handed to one joined caller.
type ticket struct {
	path string
}

// NewGuard creates a guard that retries up to maxRetries times. Negative values disable retries.
func NewGuard(maxRetries int, logger *log.Logger) *Guard {
	return &Guard{
		MaxRetries: max(maxRetries, 0),
		Backoff:    DefaultBackoff,
		logger:     shared.WithLogger(logger),
		waiting:    make(map[string][]*ticket),
	}
}

// Do runs fn for key unless a download for key is already in flight.
func (g *Guard) Do(ctx context.Context, key string, song models.Song, progress models.ProgressFunc, fn AttemptFunc) (string, error) {
	sink := &attemptSink{out: progress, song: &song}
	sink.emit(models.StartingProgress(&song))

	for {
		path, led, err := g.join(ctx, key, sink, fn)
		if led {
			return path, err
		}
		// The leader was cancelled but this caller was not.
		if err != nil && isCancellation(err) && ctx.Err() == nil {
			continue
		}

		if err != nil {
			sink.flush(err)
			return "", err
		}

		// Joined after the leader handed out copies.
		if path == "" {
			continue
		}

		sink.succeed(path)
		return path, nil
	}
}

func (g *Guard) join(ctx context.Context, key string, sink *attemptSink, fn AttemptFunc) (string, bool, error) {
	var (
		mu        sync.Mutex
		led       bool
		abandoned bool
	)
	own := &ticket{}

	g.mu.Lock()
	g.waiting[key] = append(g.waiting[key], own)
	ch := g.group.DoChan(key, func() (any, error) {
		mu.Lock()
		if abandoned {
			mu.Unlock()
			return "", context.Canceled
		}
		led = true
		mu.Unlock()

		path, err := g.attempts(ctx, key, sink, fn)
		g.handOut(key, path, err, own)
		return path, err
	})
	g.mu.Unlock()

	select {
	case res := <-ch:
		mu.Lock()
		defer mu.Unlock()
		path, _ := res.Val.(string)
		if led {
			return path, true, res.Err
		}
		path = g.leave(key, own)
		if res.Err != nil && path != "" {
			removeQuietly(path)
			path = ""
		}
		return path, false, res.Err
	case <-ctx.Done():
		mu.Lock()
		if !led {
			abandoned = true
			mu.Unlock()
			if path := g.leave(key, own); path != "" {
				removeQuietly(path)
			}
			return "", false, ctx.Err()
		}
		mu.Unlock()
		// Leading: fn observes ctx and emits its own terminal event.
		res := <-ch
		path, _ := res.Val.(string)
		return path, true, res.Err
	}
}

// handOut gives every caller waiting on key its own copy of path. The leader keeps path itself.
func (g *Guard) handOut(key, path string, err error, leader *ticket) {
	g.mu.Lock()
	defer g.mu.Unlock()

	waiting := g.waiting[key]
	delete(g.waiting, key)
	if err != nil {
		return
	}
	for _, t := range waiting {
		if t == leader {
			continue
		}
		clone, cerr := cloneFile(path)
		if cerr != nil {
			g.logger.Warn("failed to copy shared download", "key", key, "error", cerr)
			continue
		}
		t.path = clone
	}
}

// leave removes t from the waiting list and returns the file handed to it, if any.
func (g *Guard) leave(key string, t *ticket) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if waiting := g.waiting[key]; len(waiting) > 0 {
		waiting = slices.DeleteFunc(waiting, func(w *ticket) bool { return w == t })
		if len(waiting) == 0 {
			delete(g.waiting, key)
		} else {
			g.waiting[key] = waiting
		}
	}
	return t.path
}

// cloneFile links path to a fresh name in the same directory, copying when links are unsupported.
func cloneFile(path string) (string, error) {
	dst := filepath.Join(filepath.Dir(path), "mixdeck-"+uuid.NewString()+filepath.Ext(path))
	if err := os.Link(path, dst); err == nil {
		return dst, nil
	}

	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer src.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		removeQuietly(dst)
		return "", fmt.Errorf("failed to copy %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		removeQuietly(dst)
		return "", fmt.Errorf("failed to copy %s: %w", path, err)
	}
	return dst, nil
}

func (g *Guard) attempts(ctx context.Context, key string, sink *attemptSink, fn AttemptFunc) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= g.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(g.Backoff):
			case <-ctx.Done():
				sink.flush(ctx.Err())
				return "", ctx.Err()
			}
			g.logger.Info("retrying download", "key", key, "attempt", attempt+1)
		}

		path, err := fn(ctx, sink.emit)
		if err == nil {
			sink.succeed(path)
			return path, nil
		}

		lastErr = err
		g.logger.Warn("download attempt failed", "key", key, "attempt", attempt+1, "error", err)

		if ctx.Err() != nil || !errors.Is(err, shared.ErrDownloadFailed) {
			break
		}
		if attempt < g.MaxRetries {
			sink.discard()
		}
	}

	sink.flush(lastErr)
	return "", lastErr
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// attemptSink merges the progress of several attempts into one well-formed sequence.
// Repeated Starting events and regressions are dropped and a Failed event is held until the guard knows it is final.
// Events are rewritten to reference song.
type attemptSink struct {
	mu       sync.Mutex
	out      models.ProgressFunc
	song     *models.Song
	started  bool
	last     int64
	failed   *models.DownloadProgress
	terminal bool
}

func (s *attemptSink) emit(p models.DownloadProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminal {
		return
	}
	p.Song = s.song

	switch p.Phase {
	case models.PhaseStarting:
		if s.started {
			return
		}
		s.started = true
	case models.PhaseDownloading:
		if p.Downloaded < s.last {
			return
		}
		s.last = p.Downloaded
	case models.PhaseFailed:
		s.failed = &p
		return
	case models.PhaseCompleted:
		s.terminal = true
	}
	s.out.Emit(p)
}

// succeed emits a Completed event sized from path unless one was already sent.
func (s *attemptSink) succeed(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminal {
		return
	}
	size := s.last
	if info, err := os.Stat(path); err == nil {
		size = max(size, info.Size())
	}
	s.terminal = true
	s.failed = nil
	s.out.Emit(models.CompletedProgress(s.song, size, size))
}

// discard drops a held failure before a retry.
func (s *attemptSink) discard() {
	s.mu.Lock()
	s.failed = nil
	s.mu.Unlock()
}

// flush emits the held failure, or a synthesized one for err.
func (s *attemptSink) flush(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminal {
		return
	}
	failed := s.failed
	if failed == nil {
		p := models.FailedProgress(s.song, s.last, err)
		failed = &p
	}
	s.terminal = true
	s.failed = nil
	s.out.Emit(*failed)
}
