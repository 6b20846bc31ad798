// package testing contains shared testing utilities: writer and transport doubles, fake extraction scripts and
// progress assertions
package testing

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"testing"

	"github.com/desertthunder/mixdeck/internal/models"
)

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

// AssertDirExists fails the test unless path is an existing directory.
func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Errorf("Directory does not exist: %s: %v", path, err)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

// WriteScript writes an executable shell script into dir and returns its path.
// Tests calling it are skipped on Windows.
func WriteScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("Failed to write script %s: %v", path, err)
	}
	return path
}

// FakeExtractor writes a yt-dlp stand-in that prints the given stdout lines and writes content to the --output path.
// Every invocation appends its arguments, one per line, to the returned log path.
func FakeExtractor(t *testing.T, lines []string, content string) (script, argLog string) {
	t.Helper()
	dir := t.TempDir()
	argLog = filepath.Join(dir, "args.log")

	body := "for a in \"$@\"; do echo \"$a\" >> '" + argLog + "'; done\n" +
		"out=\"\"\n" +
		"while [ $# -gt 0 ]; do\n" +
		"  if [ \"$1\" = \"--output\" ]; then out=\"$2\"; shift; fi\n" +
		"  shift\n" +
		"done\n"
	for _, line := range lines {
		body += "echo '" + line + "'\n"
	}
	if content != "" {
		body += "printf '%s' '" + content + "' > \"$out\"\n"
	}
	return WriteScript(t, dir, "yt-dlp", body), argLog
}

// FailingExtractor writes a yt-dlp stand-in that prints stderr and exits with code.
func FailingExtractor(t *testing.T, stderr string, code int) string {
	t.Helper()
	body := "echo '" + stderr + "' >&2\nexit " + strconv.Itoa(code) + "\n"
	return WriteScript(t, t.TempDir(), "yt-dlp", body)
}

// ProgressRecorder collects progress events. It is safe for concurrent use.
type ProgressRecorder struct {
	mu     sync.Mutex
	events []models.DownloadProgress
}

// Func returns a [models.ProgressFunc] that records into r.
func (r *ProgressRecorder) Func() models.ProgressFunc {
	return func(p models.DownloadProgress) {
		r.mu.Lock()
		r.events = append(r.events, p)
		r.mu.Unlock()
	}
}

// Events returns a copy of the recorded events.
func (r *ProgressRecorder) Events() []models.DownloadProgress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.DownloadProgress(nil), r.events...)
}

// Phases returns the phase of every recorded event.
func (r *ProgressRecorder) Phases() []models.Phase {
	events := r.Events()
	phases := make([]models.Phase, len(events))
	for i, e := range events {
		phases[i] = e.Phase
	}
	return phases
}

// AssertWellFormed checks that events start with Starting, end with exactly one terminal event and never go
// backwards.
func AssertWellFormed(t *testing.T, events []models.DownloadProgress) {
	t.Helper()
	if len(events) < 2 {
		t.Fatalf("expected at least start and terminal events, got %d", len(events))
	}
	if events[0].Phase != models.PhaseStarting {
		t.Errorf("first event should be Starting, got %s", events[0].Phase)
	}
	var last int64
	for i, e := range events {
		if e.Phase.Terminal() != (i == len(events)-1) {
			t.Errorf("event %d (%s): terminal events must only appear last", i, e.Phase)
		}
		if e.Phase == models.PhaseStarting && i > 0 {
			t.Errorf("event %d: repeated Starting", i)
		}
		if e.Phase == models.PhaseDownloading {
			if e.Downloaded < last {
				t.Errorf("event %d: downloaded went from %d to %d", i, last, e.Downloaded)
			}
			last = e.Downloaded
		}
	}
}
