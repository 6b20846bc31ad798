package download

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/mixdeck/internal/models"
	"github.com/desertthunder/mixdeck/internal/shared"
	tu "github.com/desertthunder/mixdeck/internal/testing"
)

func newAudioServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/audio":
			if r.Header.Get("X-Test") != "yes" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.Header().Set("Content-Length", "2048")
			if r.Method == http.MethodGet {
				io.WriteString(w, body)
			}
		case "/chunked":
			w.(http.Flusher).Flush()
			io.WriteString(w, body)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetcher(t *testing.T) {
	body := strings.Repeat("a", 2048)
	srv := newAudioServer(t, body)
	headers := map[string]string{"X-Test": "yes"}

	t.Run("open returns the body", func(t *testing.T) {
		f := NewFetcher(srv.Client(), headers, shared.DiscardLogger())
		rc, err := f.Open(context.Background(), srv.URL+"/audio")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer rc.Close()
		data, _ := io.ReadAll(rc)
		if string(data) != body {
			t.Errorf("unexpected body length %d", len(data))
		}
	})

	t.Run("open fails on non-2xx", func(t *testing.T) {
		f := NewFetcher(srv.Client(), nil, shared.DiscardLogger())
		if _, err := f.Open(context.Background(), srv.URL+"/audio"); !errors.Is(err, shared.ErrDownloadFailed) {
			t.Errorf("expected ErrDownloadFailed, got %v", err)
		}
	})

	t.Run("content length", func(t *testing.T) {
		f := NewFetcher(srv.Client(), headers, shared.DiscardLogger())
		n, err := f.ContentLength(context.Background(), srv.URL+"/audio")
		if err != nil || n != 2048 {
			t.Errorf("expected 2048, got %d, %v", n, err)
		}

		n, err = f.ContentLength(context.Background(), srv.URL+"/chunked")
		if err != nil || n != -1 {
			t.Errorf("expected -1 for unknown length, got %d, %v", n, err)
		}
	})

	t.Run("download writes temp file with progress", func(t *testing.T) {
		f := NewFetcher(srv.Client(), headers, shared.DiscardLogger())
		f.TempDir = t.TempDir()
		var rec tu.ProgressRecorder
		song := models.Song{ID: "1", Title: "Song"}
		stream := models.NewAudioStreamInfo(srv.URL+"/audio", "webm", 160)

		path, err := f.Download(context.Background(), song, stream, rec.Func())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if filepath.Ext(path) != ".webm" {
			t.Errorf("expected .webm output, got %s", path)
		}
		if tu.MustReadFile(t, path) != body {
			t.Error("unexpected file content")
		}

		events := rec.Events()
		tu.AssertWellFormed(t, events)
		last := events[len(events)-1]
		if last.Phase != models.PhaseCompleted || last.Downloaded != 2048 || last.Total != 2048 {
			t.Errorf("unexpected terminal event %+v", last)
		}
	})

	t.Run("missing stream reports failure", func(t *testing.T) {
		f := NewFetcher(srv.Client(), nil, shared.DiscardLogger())
		f.TempDir = t.TempDir()
		var rec tu.ProgressRecorder

		_, err := f.Download(context.Background(), models.Song{ID: "1"}, models.NewAudioStreamInfo(srv.URL+"/missing", "m4a", 0), rec.Func())
		if !errors.Is(err, shared.ErrDownloadFailed) {
			t.Errorf("expected ErrDownloadFailed, got %v", err)
		}
		phases := rec.Phases()
		if len(phases) != 2 || phases[1] != models.PhaseFailed {
			t.Errorf("expected Starting then Failed, got %v", phases)
		}
		entries, _ := os.ReadDir(f.TempDir)
		if len(entries) != 0 {
			t.Errorf("expected no files, got %d", len(entries))
		}
	})

	t.Run("body read error removes partial file", func(t *testing.T) {
		client := &http.Client{Transport: tu.NewMockRoundTripper(&http.Response{
			StatusCode:    http.StatusOK,
			Status:        "200 OK",
			ContentLength: 10,
			Body:          &tu.FCloser{},
			Header:        http.Header{},
		}, nil)}
		f := NewFetcher(client, nil, shared.DiscardLogger())
		f.TempDir = t.TempDir()

		_, err := f.Download(context.Background(), models.Song{ID: "1"}, models.NewAudioStreamInfo("https://example.com/a.m4a", "m4a", 0), nil)
		if !errors.Is(err, shared.ErrDownloadFailed) {
			t.Errorf("expected ErrDownloadFailed, got %v", err)
		}
		entries, _ := os.ReadDir(f.TempDir)
		if len(entries) != 0 {
			t.Errorf("expected partial file to be removed, got %d entries", len(entries))
		}
	})
}
