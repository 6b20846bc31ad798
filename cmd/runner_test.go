package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/mixdeck/internal/formatter"
	"github.com/desertthunder/mixdeck/internal/models"
	"github.com/desertthunder/mixdeck/internal/settings"
	"github.com/desertthunder/mixdeck/internal/shared"
	"github.com/desertthunder/mixdeck/internal/sources"
	"github.com/desertthunder/mixdeck/internal/sources/spotify"
	tu "github.com/desertthunder/mixdeck/internal/testing"
)

type fakeCatalog struct {
	songs     []models.Song
	playlists map[string][]models.Song
	metaErr   error
}

func (c *fakeCatalog) Search(ctx context.Context, query string, maxResults int) []models.Song {
	var out []models.Song
	for _, s := range c.songs {
		if strings.Contains(strings.ToLower(s.Title), strings.ToLower(query)) {
			out = append(out, s)
		}
	}
	return out
}

func (c *fakeCatalog) SearchByArtist(ctx context.Context, artist string, maxResults int) []models.Song {
	var out []models.Song
	for _, s := range c.songs {
		if s.Artist == artist {
			out = append(out, s)
		}
	}
	return out
}

func (c *fakeCatalog) SearchByPlaylist(ctx context.Context, playlistID string, maxResults int) []models.Song {
	return c.playlists[playlistID]
}

func (c *fakeCatalog) SearchPlaylists(ctx context.Context, query string, maxResults int) []models.Playlist {
	return nil
}

func (c *fakeCatalog) LastError() error { return nil }

func (c *fakeCatalog) GetSongMetadata(ctx context.Context, id string) (*models.Song, error) {
	if c.metaErr != nil {
		return nil, c.metaErr
	}
	for _, s := range c.songs {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, shared.ErrSongNotFound
}

func (c *fakeCatalog) GetAudioStreams(ctx context.Context, id string) ([]models.AudioStreamInfo, error) {
	song, err := c.GetSongMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(song.Streams) == 0 {
		return nil, shared.ErrNoStreams
	}
	return song.Streams, nil
}

func (c *fakeCatalog) GetBestAudioStream(ctx context.Context, id string) (*models.AudioStreamInfo, error) {
	streams, err := c.GetAudioStreams(ctx, id)
	if err != nil {
		return nil, err
	}
	best := streams[0]
	for _, s := range streams[1:] {
		if s.Bitrate > best.Bitrate {
			best = s
		}
	}
	return &best, nil
}

type fakePlaylists struct{ catalog *fakeCatalog }

func (p *fakePlaylists) Load(ctx context.Context, id string) (*models.Playlist, bool) {
	songs, ok := p.catalog.playlists[id]
	if !ok {
		return nil, false
	}
	return &models.Playlist{ID: id, Name: "Road Trip", SongCount: len(songs), Source: youtubeName}, true
}

func (p *fakePlaylists) LoadUserPlaylists(ctx context.Context) []models.Playlist {
	return []models.Playlist{{ID: "pl1", Name: "Road Trip", SongCount: 2, Source: youtubeName}}
}

func (p *fakePlaylists) Save(ctx context.Context, playlist *models.Playlist) bool {
	playlist.ID = "new"
	return true
}

func (p *fakePlaylists) Delete(ctx context.Context, id string) bool { return false }
func (p *fakePlaylists) AddSong(ctx context.Context, playlistID string, song models.Song) bool {
	return true
}
func (p *fakePlaylists) RemoveSong(ctx context.Context, playlistID, songID string) bool { return true }
func (p *fakePlaylists) Search(ctx context.Context, query string, maxResults int) []models.Playlist {
	return nil
}
func (p *fakePlaylists) GetSongs(ctx context.Context, playlistID string) []models.Song {
	return p.catalog.playlists[playlistID]
}

type fakeDownloads struct{ dir string }

func (f *fakeDownloads) DownloadAudio(ctx context.Context, song models.Song, progress models.ProgressFunc) (string, error) {
	progress.Emit(models.StartingProgress(&song))
	if strings.HasPrefix(song.ID, "bad") {
		err := errors.New("boom")
		progress.Emit(models.FailedProgress(&song, 0, err))
		return "", err
	}
	path := filepath.Join(f.dir, song.ID+".m4a")
	if err := os.WriteFile(path, []byte("audio"), 0644); err != nil {
		return "", err
	}
	progress.Emit(models.CompletedProgress(&song, 5, 5))
	return path, nil
}

func (f *fakeDownloads) GetAudioStream(ctx context.Context, s models.AudioStreamInfo) (io.ReadCloser, error) {
	return nil, shared.ErrNotSupported
}
func (f *fakeDownloads) GetContentLength(ctx context.Context, url string) (int64, error) {
	return -1, nil
}
func (f *fakeDownloads) SupportsDirectStreaming() bool { return false }

const youtubeName = "YouTube"

// harness builds a fresh runner for every command, since Shutdown disposes the sources and closes the database.
type harness struct {
	t       *testing.T
	dir     string
	config  *shared.Config
	catalog *fakeCatalog
	out     bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	config := shared.DefaultConfig()
	config.Database.Path = filepath.Join(dir, "data", "mixdeck.db")
	config.Download.OutputDir = filepath.Join(dir, "music")

	return &harness{
		t:      t,
		dir:    dir,
		config: config,
		catalog: &fakeCatalog{
			songs: []models.Song{
				{
					ID: "yt1", Title: "Love Song", Artist: "Artist A", Source: youtubeName,
					Streams: []models.AudioStreamInfo{
						models.NewAudioStreamInfo("https://cdn.example.com/low", "m4a", 48),
						models.NewAudioStreamInfo("https://cdn.example.com/high", "m4a", 128),
					},
				},
				{ID: "bad2", Title: "Other Tune", Artist: "Artist B", Source: youtubeName},
			},
			playlists: map[string][]models.Song{},
		},
	}
}

func (h *harness) registry() *sources.Registry {
	h.catalog.playlists["pl1"] = h.catalog.songs
	registry := sources.NewRegistry(shared.DiscardLogger())

	downloads := filepath.Join(h.dir, "tmp")
	if err := os.MkdirAll(downloads, 0755); err != nil {
		h.t.Fatalf("failed to create temp dir: %v", err)
	}
	yt := sources.NewBase(youtubeName, func(ctx context.Context) (sources.Services, error) {
		return sources.Services{
			Search:    h.catalog,
			Metadata:  h.catalog,
			Download:  &fakeDownloads{dir: downloads},
			Playlists: &fakePlaylists{catalog: h.catalog},
		}, nil
	}, shared.DiscardLogger())
	sp := sources.NewBase("Spotify", func(ctx context.Context) (sources.Services, error) {
		return sources.Services{}, shared.ErrMissingCredentials
	}, shared.DiscardLogger())

	for _, p := range []sources.Provider{yt, sp} {
		if err := registry.Register(p); err != nil {
			h.t.Fatalf("failed to register %s: %v", p.Name(), err)
		}
	}
	return registry
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	h.out.Reset()
	r := NewRunner(RunnerOpts{
		Config:   h.config,
		AppDir:   h.dir,
		Registry: h.registry(),
		Logger:   shared.DiscardLogger(),
		Output:   &h.out,
	})
	argv := append([]string{"mixdeck", "--config", filepath.Join(h.dir, "missing.toml")}, args...)
	err := newApp(r).Run(context.Background(), argv)
	return h.out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	if err != nil {
		h.t.Fatalf("mixdeck %s: unexpected error: %v\noutput:\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			registry := sources.NewRegistry(logger)

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				Registry:   registry,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.registry != registry {
				t.Error("expected registry to be set")
			}
			if runner.logOutput != nil {
				t.Error("expected no switchable log output for an injected logger")
			}
		})

		t.Run("with defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config")
			}
			if runner.logger == nil || runner.logOutput == nil {
				t.Error("expected default logger with switchable output")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to stdout")
			}
			if runner.httpClient != http.DefaultClient {
				t.Error("expected default HTTP client")
			}
			if runner.engine == nil {
				t.Error("expected task engine without a database")
			}
			if runner.settings == nil {
				t.Error("expected settings map")
			}
		})

		t.Run("with database", func(t *testing.T) {
			db, err := shared.NewDatabase(shared.MemoryDatabase)
			if err != nil {
				t.Fatalf("failed to open database: %v", err)
			}
			defer db.Close()

			runner := NewRunner(RunnerOpts{DB: db, Logger: shared.DiscardLogger()})
			if runner.songs == nil || runner.downloads == nil || runner.cache == nil {
				t.Error("expected repositories to be wired")
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Logger: shared.DiscardLogger()})
		names := map[string]bool{}
		for _, c := range runner.register() {
			names[c.Name] = true
		}
		for _, want := range []string{"setup", "doctor", "sources", "search", "info", "streams", "download", "batch", "playlists", "settings", "spotify", "history", "cache", "tui"} {
			if !names[want] {
				t.Errorf("expected %q command to be registered", want)
			}
		}
	})

	t.Run("write errors", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Logger: shared.DiscardLogger(), Output: &tu.FWriter{}})
		if err := runner.writeJSON(map[string]string{"a": "b"}, false); err == nil {
			t.Error("expected error from failing writer")
		}
		if err := runner.writePlain("hello\n"); err == nil {
			t.Error("expected error from failing writer")
		}
	})

	t.Run("redirectLogs", func(t *testing.T) {
		dir := t.TempDir()
		runner := NewRunner(RunnerOpts{AppDir: dir})

		restore := runner.redirectLogs()
		runner.logger.Error("hidden from the terminal")
		restore()

		data, err := os.ReadFile(filepath.Join(dir, logFileName))
		if err != nil {
			t.Fatalf("expected log file: %v", err)
		}
		if !strings.Contains(string(data), "hidden from the terminal") {
			t.Errorf("expected log line in file, got %q", data)
		}
	})
}

func TestSourcesCommands(t *testing.T) {
	t.Run("sources reports states", func(t *testing.T) {
		h := newHarness(t)
		out := h.mustRun("sources", "--json")

		var statuses []sourceStatus
		if err := json.Unmarshal([]byte(out), &statuses); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out)
		}
		if len(statuses) != 2 {
			t.Fatalf("expected 2 sources, got %d", len(statuses))
		}
		byName := map[string]sourceStatus{}
		for _, s := range statuses {
			byName[s.Name] = s
		}
		if yt := byName[youtubeName]; yt.State != "ready" || !yt.Available || len(yt.Capabilities) != 4 {
			t.Errorf("unexpected YouTube status: %+v", yt)
		}
		if sp := byName["Spotify"]; !strings.HasPrefix(sp.State, "degraded") || sp.Available {
			t.Errorf("unexpected Spotify status: %+v", sp)
		}
	})

	t.Run("search", func(t *testing.T) {
		h := newHarness(t)
		out := h.mustRun("search", "--json", "love")

		var records []formatter.SongRecord
		if err := json.Unmarshal([]byte(out), &records); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out)
		}
		if len(records) != 1 || records[0].ID != "yt1" {
			t.Errorf("unexpected results: %+v", records)
		}
	})

	t.Run("search without query", func(t *testing.T) {
		h := newHarness(t)
		if _, err := h.run("search"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("search degraded source", func(t *testing.T) {
		h := newHarness(t)
		if _, err := h.run("search", "--source", "spotify", "love"); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("info falls back to the cache", func(t *testing.T) {
		h := newHarness(t)
		h.mustRun("search", "love")

		h.catalog.metaErr = shared.ErrAPIRequest
		out := h.mustRun("info", "yt1")
		if !strings.Contains(out, "Love Song") || !strings.Contains(out, "Artist A") {
			t.Errorf("expected cached metadata, got:\n%s", out)
		}

		if _, err := h.run("info", "unknown"); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest for uncached song, got %v", err)
		}
	})

	t.Run("streams marks the best stream", func(t *testing.T) {
		h := newHarness(t)
		out := h.mustRun("streams", "--json", "yt1")

		var got streamsOutput
		if err := json.Unmarshal([]byte(out), &got); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out)
		}
		if len(got.Streams) != 2 {
			t.Errorf("expected 2 streams, got %d", len(got.Streams))
		}
		if got.Best == nil || got.Best.URL != "https://cdn.example.com/high" {
			t.Errorf("unexpected best stream: %+v", got.Best)
		}
	})
}

func TestDownloadCommands(t *testing.T) {
	t.Run("download then skip", func(t *testing.T) {
		h := newHarness(t)
		out := h.mustRun("download", "--plain", "yt1")
		if !strings.Contains(out, "✓ Saved") {
			t.Errorf("expected saved message, got:\n%s", out)
		}

		tu.AssertFileExists(t, filepath.Join(h.config.Download.OutputDir, "Artist A - Love Song.m4a"))

		out = h.mustRun("download", "--plain", "yt1")
		if !strings.Contains(out, "Already downloaded") {
			t.Errorf("expected skip message, got:\n%s", out)
		}
	})

	t.Run("download failure is recorded", func(t *testing.T) {
		h := newHarness(t)
		if _, err := h.run("download", "--plain", "bad2"); err == nil {
			t.Fatal("expected download error")
		}

		out := h.mustRun("history", "--json")
		var entries []historyEntry
		if err := json.Unmarshal([]byte(out), &entries); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out)
		}
		if len(entries) != 1 {
			t.Fatalf("expected 1 history entry, got %d", len(entries))
		}
		if entries[0].Status != string(models.DownloadFailed) || entries[0].Error == "" {
			t.Errorf("unexpected entry: %+v", entries[0])
		}
	})

	t.Run("batch", func(t *testing.T) {
		h := newHarness(t)
		outDir := filepath.Join(h.dir, "batch")
		out := h.mustRun("batch", "--output", outDir, "--workers", "2", "--rate", "100", "pl1")

		if !strings.Contains(out, "Saved: 1  Skipped: 0  Failed: 1  (of 2)") {
			t.Errorf("unexpected summary:\n%s", out)
		}
		if !strings.Contains(out, "Artist B - Other Tune: boom") {
			t.Errorf("expected failure line:\n%s", out)
		}
		tu.AssertFileExists(t, filepath.Join(outDir, "Artist A - Love Song.m4a"))
	})

	t.Run("batch unknown playlist", func(t *testing.T) {
		h := newHarness(t)
		if _, err := h.run("batch", "missing"); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})
}

func TestCacheCommands(t *testing.T) {
	h := newHarness(t)
	h.mustRun("search", "--artist", "Artist A")

	out := h.mustRun("cache", "stats")
	if !strings.Contains(out, youtubeName) || !strings.Contains(out, "Total") {
		t.Errorf("unexpected stats:\n%s", out)
	}

	out = h.mustRun("cache", "list", "--json")
	var records []formatter.SongRecord
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(records) != 1 || records[0].Title != "Love Song" {
		t.Errorf("unexpected cached songs: %+v", records)
	}

	out = h.mustRun("cache", "clear", "--source", "youtube")
	if !strings.Contains(out, "Removed 1 cached songs") {
		t.Errorf("unexpected clear output:\n%s", out)
	}
	if out := h.mustRun("cache", "stats"); !strings.Contains(out, "Cache is empty") {
		t.Errorf("expected empty cache:\n%s", out)
	}
}

func TestPlaylistCommands(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("playlists", "list")
	if !strings.Contains(out, "Road Trip") {
		t.Errorf("expected playlist in list:\n%s", out)
	}

	if _, err := h.run("playlists", "delete", "pl1"); !errors.Is(err, shared.ErrNotSupported) {
		t.Errorf("expected ErrNotSupported, got %v", err)
	}
	if _, err := h.run("playlists", "show", "nope"); !errors.Is(err, shared.ErrPlaylistNotFound) {
		t.Errorf("expected ErrPlaylistNotFound, got %v", err)
	}
}

// settingsRunner registers the real providers against a temporary app directory.
func settingsRunner(t *testing.T, dir string, out io.Writer) *Runner {
	t.Helper()
	config := shared.DefaultConfig()
	config.Database.Path = shared.MemoryDatabase
	return NewRunner(RunnerOpts{Config: config, AppDir: dir, Logger: shared.DiscardLogger(), Output: out})
}

func runSettings(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	r := settingsRunner(t, dir, out)
	argv := append([]string{"mixdeck", "--config", filepath.Join(dir, "missing.toml")}, args...)
	err := newApp(r).Run(context.Background(), argv)
	return out.String(), err
}

func TestSettingsCommands(t *testing.T) {
	t.Run("set, show and reset", func(t *testing.T) {
		dir := t.TempDir()

		if _, err := runSettings(t, dir, "settings", "set", "spotify", "client_secret", "s3cret"); err != nil {
			t.Fatalf("set failed: %v", err)
		}

		out, err := runSettings(t, dir, "settings", "show", "--json", "Spotify")
		if err != nil {
			t.Fatalf("show failed: %v", err)
		}
		var entries []settingEntry
		if err := json.Unmarshal([]byte(out), &entries); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out)
		}
		found := false
		for _, e := range entries {
			if e.Key == "client_secret" {
				found = true
				if e.Value != "********" {
					t.Errorf("expected masked secret, got %q", e.Value)
				}
			}
		}
		if !found {
			t.Error("expected client_secret entry")
		}

		if _, err := runSettings(t, dir, "settings", "reset", "spotify"); err != nil {
			t.Fatalf("reset failed: %v", err)
		}
		data, err := os.ReadFile(filepath.Join(dir, settings.SourcesDir, spotify.BackendName+".json"))
		if err != nil {
			t.Fatalf("expected settings file: %v", err)
		}
		if strings.Contains(string(data), "s3cret") {
			t.Errorf("expected secret to be reset:\n%s", data)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		if _, err := runSettings(t, t.TempDir(), "settings", "set", "youtube", "nope", "1"); !errors.Is(err, shared.ErrUnknownSetting) {
			t.Errorf("expected ErrUnknownSetting, got %v", err)
		}
	})

	t.Run("invalid value", func(t *testing.T) {
		if _, err := runSettings(t, t.TempDir(), "settings", "set", "spotify", "quality", "999"); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("unknown source", func(t *testing.T) {
		if _, err := runSettings(t, t.TempDir(), "settings", "show", "tidal"); !errors.Is(err, shared.ErrUnknownSource) {
			t.Errorf("expected ErrUnknownSource, got %v", err)
		}
	})
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestSpotifyAuth(t *testing.T) {
	t.Run("stores refresh token", func(t *testing.T) {
		tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil || r.Form.Get("code") != "good" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				io.WriteString(w, `{"error":"invalid_grant"}`)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"access_token":"at","token_type":"Bearer","refresh_token":"rt","expires_in":3600}`)
		}))
		defer tokens.Close()

		dir := t.TempDir()
		out := &bytes.Buffer{}
		r := settingsRunner(t, dir, out)
		r.openURL = func(authURL string) error {
			u, err := url.Parse(authURL)
			if err != nil {
				return err
			}
			q := u.Query()
			go func() {
				resp, err := http.Get(q.Get("redirect_uri") + "?code=good&state=" + url.QueryEscape(q.Get("state")))
				if err == nil {
					resp.Body.Close()
				}
			}()
			return nil
		}
		r.registerSources()
		r.spotify.Endpoints = spotify.Endpoints{
			AuthURL:  "https://accounts.example.com/authorize",
			TokenURL: tokens.URL,
			APIURL:   "https://api.example.com/v1",
		}
		r.spotify.Settings().Update(func(s *spotify.Settings) {
			s.ClientID = "id"
			s.ClientSecret = "secret"
			s.RedirectURI = "http://" + freeAddr(t) + "/callback"
		})

		argv := []string{"mixdeck", "--config", filepath.Join(dir, "missing.toml"), "spotify", "auth", "--timeout", "10s"}
		if err := newApp(r).Run(context.Background(), argv); err != nil {
			t.Fatalf("auth failed: %v\noutput:\n%s", err, out)
		}
		if !strings.Contains(out.String(), "✓ Spotify authorization saved") {
			t.Errorf("unexpected output:\n%s", out)
		}

		data, err := os.ReadFile(r.spotify.Settings().Path())
		if err != nil {
			t.Fatalf("expected settings file: %v", err)
		}
		var saved spotify.Settings
		if err := json.Unmarshal(data, &saved); err != nil {
			t.Fatalf("invalid settings file: %v", err)
		}
		if saved.RefreshToken != "rt" {
			t.Errorf("expected refresh token rt, got %q", saved.RefreshToken)
		}
	})

	t.Run("requires credentials", func(t *testing.T) {
		if _, err := runSettings(t, t.TempDir(), "spotify", "auth"); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}
