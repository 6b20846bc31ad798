package download

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/mixdeck/internal/models"
	"github.com/desertthunder/mixdeck/internal/shared"
	tu "github.com/desertthunder/mixdeck/internal/testing"
)

func testRequest() Request {
	return Request{
		Song:    models.Song{ID: "abc", Title: "Song", Artist: "Artist", Source: "YouTube"},
		URL:     "https://www.youtube.com/watch?v=abc",
		Format:  "mp3",
		Quality: "192K",
	}
}

func TestExtractorArgs(t *testing.T) {
	e := NewExtractor("", nil, "--socket-timeout", "15")
	args := e.Args(testRequest(), "/tmp/out.mp3")
	want := []string{
		"--extract-audio", "--audio-format", "mp3", "--audio-quality", "192K", "--newline",
		"--progress-template", "download:%(progress.downloaded_bytes)s/%(progress.total_bytes)s",
		"--socket-timeout", "15",
		"--output", "/tmp/out.mp3", "https://www.youtube.com/watch?v=abc",
	}
	if strings.Join(args, " ") != strings.Join(want, " ") {
		t.Errorf("unexpected args\n got: %v\nwant: %v", args, want)
	}
	if e.Executable != DefaultTool {
		t.Errorf("expected default tool, got %s", e.Executable)
	}
}

func TestExtract(t *testing.T) {
	t.Run("success reports progress and returns file", func(t *testing.T) {
		script, argLog := tu.FakeExtractor(t, []string{
			"[youtube] abc: Downloading webpage",
			"download:256/NA",
			"download:512/1024",
			"garbage",
			"download:300/1024",
			"download:1024/1024",
		}, "audio-bytes")

		e := NewExtractor(script, shared.DiscardLogger())
		e.TempDir = t.TempDir()
		var rec tu.ProgressRecorder

		path, err := e.Extract(context.Background(), testRequest(), rec.Func())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		t.Cleanup(func() { os.Remove(path) })

		if filepath.Ext(path) != ".mp3" || !strings.HasPrefix(filepath.Base(path), "mixdeck-") {
			t.Errorf("unexpected output path %s", path)
		}
		if got := tu.MustReadFile(t, path); got != "audio-bytes" {
			t.Errorf("unexpected content %q", got)
		}

		events := rec.Events()
		tu.AssertWellFormed(t, events)
		if events[len(events)-1].Phase != models.PhaseCompleted {
			t.Errorf("expected Completed, got %s", events[len(events)-1].Phase)
		}
		if events[1].Total != 0 || events[1].Downloaded != 256 {
			t.Errorf("expected first progress 256/unknown, got %+v", events[1])
		}

		args := tu.MustReadFile(t, argLog)
		if !strings.Contains(args, "--extract-audio") || !strings.Contains(args, "192K") {
			t.Errorf("unexpected args:\n%s", args)
		}
	})

	t.Run("non-zero exit returns extraction error", func(t *testing.T) {
		script := tu.FailingExtractor(t, "ERROR: Video unavailable", 1)
		e := NewExtractor(script, shared.DiscardLogger())
		e.TempDir = t.TempDir()
		var rec tu.ProgressRecorder

		_, err := e.Extract(context.Background(), testRequest(), rec.Func())
		var extractErr *ExtractionError
		if !errors.As(err, &extractErr) {
			t.Fatalf("expected ExtractionError, got %v", err)
		}
		if extractErr.ExitCode != 1 || !strings.Contains(extractErr.Stderr, "Video unavailable") {
			t.Errorf("unexpected error %+v", extractErr)
		}
		if !errors.Is(err, shared.ErrDownloadFailed) {
			t.Error("expected error to wrap ErrDownloadFailed")
		}

		events := rec.Events()
		tu.AssertWellFormed(t, events)
		if events[len(events)-1].Phase != models.PhaseFailed {
			t.Errorf("expected Failed, got %s", events[len(events)-1].Phase)
		}
		assertEmptyDir(t, e.TempDir)
	})

	t.Run("missing output is a failure", func(t *testing.T) {
		script, _ := tu.FakeExtractor(t, []string{"download:1/2"}, "")
		e := NewExtractor(script, shared.DiscardLogger())
		e.TempDir = t.TempDir()

		_, err := e.Extract(context.Background(), testRequest(), nil)
		var extractErr *ExtractionError
		if !errors.As(err, &extractErr) || extractErr.ExitCode != 0 {
			t.Errorf("expected ExtractionError with exit code 0, got %v", err)
		}
	})

	t.Run("missing tool", func(t *testing.T) {
		e := NewExtractor(filepath.Join(t.TempDir(), "no-such-tool"), shared.DiscardLogger())
		var rec tu.ProgressRecorder

		_, err := e.Extract(context.Background(), testRequest(), rec.Func())
		var missing *ToolMissingError
		if !errors.As(err, &missing) {
			t.Fatalf("expected ToolMissingError, got %v", err)
		}
		if !errors.Is(err, shared.ErrToolMissing) {
			t.Error("expected error to wrap ErrToolMissing")
		}
		phases := rec.Phases()
		if len(phases) != 2 || phases[1] != models.PhaseFailed {
			t.Errorf("expected Starting then Failed, got %v", phases)
		}
	})

	t.Run("cancellation kills the process", func(t *testing.T) {
		script := tu.WriteScript(t, t.TempDir(), "yt-dlp", "echo 'download:1/100'\nexec sleep 30\n")
		e := NewExtractor(script, shared.DiscardLogger())
		e.TempDir = t.TempDir()

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := e.Extract(ctx, testRequest(), nil)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
		if time.Since(start) > 10*time.Second {
			t.Error("extraction did not stop on cancellation")
		}
	})
}

func TestOpenExtracted(t *testing.T) {
	script, _ := tu.FakeExtractor(t, nil, "streamed")
	e := NewExtractor(script, shared.DiscardLogger())
	e.TempDir = t.TempDir()

	rc, err := e.OpenExtracted(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := io.ReadAll(rc)
	if err != nil || string(data) != "streamed" {
		t.Errorf("unexpected read %q, %v", data, err)
	}
	if err := rc.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
	assertEmptyDir(t, e.TempDir)
}

func TestCheckTool(t *testing.T) {
	if err := CheckTool("definitely-not-a-real-tool-mixdeck"); !errors.Is(err, shared.ErrToolMissing) {
		t.Errorf("expected ErrToolMissing, got %v", err)
	}

	script := tu.WriteScript(t, t.TempDir(), "yt-dlp", "exit 0\n")
	if err := CheckTool(script); err != nil {
		t.Errorf("expected tool to be found, got %v", err)
	}

	err := CheckTools(script, "missing-one-mixdeck", "missing-two-mixdeck")
	if err == nil || !strings.Contains(err.Error(), "missing-two-mixdeck") {
		t.Errorf("expected both missing tools to be reported, got %v", err)
	}
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read %s: %v", dir, err)
	}
	if len(entries) != 0 {
		t.Errorf("expected %s to be empty, found %d entries", dir, len(entries))
	}
}
