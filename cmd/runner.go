package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixdeck/internal/models"
	"github.com/desertthunder/mixdeck/internal/repositories"
	"github.com/desertthunder/mixdeck/internal/settings"
	"github.com/desertthunder/mixdeck/internal/shared"
	"github.com/desertthunder/mixdeck/internal/sources"
	"github.com/desertthunder/mixdeck/internal/sources/spotify"
	"github.com/desertthunder/mixdeck/internal/sources/youtube"
	"github.com/desertthunder/mixdeck/internal/tasks"
	"github.com/urfave/cli/v3"
)

const (
	defaultSource = youtube.BackendName
	logFileName   = "mixdeck.log"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	appDir     string
	registry   *sources.Registry
	settings   map[string]settings.Store
	youtube    *youtube.Provider
	spotify    *spotify.Provider
	db         *sql.DB
	songs      *repositories.SongRepository
	downloads  *repositories.DownloadRepository
	cache      *repositories.SongCacheAdapter
	engine     *tasks.Engine
	httpClient *http.Client
	logger     *log.Logger
	logOutput  *shared.SwitchWriter // nil when the logger was injected
	output     io.Writer
	openURL    func(string) error
}

// RunnerOpts contains configuration options for creating a Runner.
//
// A Runner built with a Registry skips [Runner.Bootstrap]'s provider construction, which is how tests inject fakes.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	AppDir     string
	Registry   *sources.Registry
	Settings   map[string]settings.Store
	DB         *sql.DB
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	OpenURL    func(string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	var logOutput *shared.SwitchWriter
	if opts.Logger == nil {
		logOutput = shared.NewSwitchWriter(os.Stderr)
		opts.Logger = shared.NewLogger(logOutput)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.OpenURL == nil {
		opts.OpenURL = shared.OpenBrowser
	}
	if opts.Settings == nil {
		opts.Settings = map[string]settings.Store{}
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		appDir:     opts.AppDir,
		registry:   opts.Registry,
		settings:   opts.Settings,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		logOutput:  logOutput,
		output:     opts.Output,
		openURL:    opts.OpenURL,
	}
	r.attachDatabase(opts.DB)
	return r
}

// attachDatabase wires the repositories and rebuilds the task engine around them. A nil db disables caching.
func (r *Runner) attachDatabase(db *sql.DB) {
	r.db = db
	if db == nil {
		r.engine = tasks.NewEngine(r.logger, nil, nil)
		return
	}
	r.songs = repositories.NewSongRepository(db)
	r.downloads = repositories.NewDownloadRepository(db)
	r.cache = repositories.NewSongCacheAdapter(r.songs)
	r.engine = tasks.NewEngine(r.logger, r.cache, repositories.NewHistoryAdapter(r.downloads))
}

// cacheSongs stores songs when the database is available. Failures are logged only.
func (r *Runner) cacheSongs(songs ...models.Song) {
	if r.cache == nil || len(songs) == 0 {
		return
	}
	if err := r.cache.CacheSongs(songs); err != nil {
		r.logger.Warn("failed to cache songs", "error", err)
	}
}

// Bootstrap loads the config named by --config, opens the database and registers the sources.
//
// It runs before every command. Commands that only touch local files still work when the database cannot be opened.
func (r *Runner) Bootstrap(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}
	if r.configPath != "" {
		if _, err := os.Stat(r.configPath); err == nil {
			config, err := shared.LoadConfig(r.configPath)
			if err != nil {
				return ctx, err
			}
			r.config = config
		}
	}
	if dir := cmd.String("data-dir"); dir != "" {
		r.config.App.DataDir = dir
	}

	level := r.config.App.LogLevel
	if cmd.Bool("verbose") {
		level = "debug"
	}
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(level))

	if r.appDir == "" {
		dir, err := settings.Dir(r.config.App.DataDir, r.config.App.Name)
		if err != nil {
			return ctx, err
		}
		r.appDir = dir
	}

	if r.db == nil {
		if db, err := r.openDatabase(); err != nil {
			r.logger.Warn("database unavailable, caching disabled", "error", err)
		} else {
			r.attachDatabase(db)
		}
	}

	if r.registry == nil {
		r.registerSources()
	}
	return ctx, nil
}

func (r *Runner) openDatabase() (*sql.DB, error) {
	path := r.config.Database.Path
	if path != shared.MemoryDatabase {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, err
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func (r *Runner) registerSources() {
	opts := sources.Options{
		MaxRetries: r.config.Download.MaxRetries,
		HTTPClient: r.httpClient,
	}

	yt := youtube.New(r.appDir, opts, r.logger)
	sp := spotify.New(r.appDir, opts, r.logger)

	r.registry = sources.NewRegistry(r.logger)
	for _, p := range []sources.Provider{yt, sp} {
		if err := r.registry.Register(p); err != nil {
			r.logger.Warn("failed to register source", "source", p.Name(), "error", err)
		}
	}
	r.youtube, r.spotify = yt, sp
	r.settings[strings.ToLower(yt.Name())] = yt.Settings()
	r.settings[strings.ToLower(sp.Name())] = sp.Settings()
}

// Shutdown disposes the sources and closes the database.
func (r *Runner) Shutdown(ctx context.Context, cmd *cli.Command) error {
	var errs []error
	if r.registry != nil {
		errs = append(errs, r.registry.Close())
	}
	if r.db != nil {
		errs = append(errs, r.db.Close())
	}
	return errors.Join(errs...)
}

// redirectLogs sends log output to a file in the app directory while an interactive view owns the terminal.
// The returned function restores the previous output.
func (r *Runner) redirectLogs() func() {
	if r.logOutput == nil {
		return func() {}
	}

	var target io.Writer = io.Discard
	var file *os.File
	if err := os.MkdirAll(r.appDir, 0755); err == nil {
		if f, err := os.OpenFile(filepath.Join(r.appDir, logFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644); err == nil {
			target, file = f, f
		}
	}

	prev := r.logOutput.Swap(target)
	return func() {
		r.logOutput.Swap(prev)
		if file != nil {
			file.Close()
		}
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, doctorCommand, sourcesCommand, searchCommand, infoCommand, streamsCommand, downloadCommand,
		batchCommand, playlistsCommand, settingsCommand, spotifyCommand, historyCommand, cacheCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// provider returns the named source after initializing it.
func (r *Runner) provider(ctx context.Context, name string) (sources.Provider, error) {
	if r.registry == nil {
		return nil, fmt.Errorf("%w: no sources registered", shared.ErrServiceUnavailable)
	}
	if name == "" {
		name = defaultSource
	}
	p, err := r.registry.Get(name)
	if err != nil {
		return nil, err
	}
	if err := p.Initialize(ctx); err != nil {
		return nil, err
	}
	if degraded, ok := p.State().(sources.Degraded); ok {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrServiceUnavailable, p.Name(), degraded.Reason)
	}
	return p, nil
}

func (r *Runner) searchService(ctx context.Context, name string) (sources.SearchService, error) {
	p, err := r.provider(ctx, name)
	if err != nil {
		return nil, err
	}
	return p.Search()
}

func (r *Runner) metadataService(ctx context.Context, name string) (sources.MetadataService, error) {
	p, err := r.provider(ctx, name)
	if err != nil {
		return nil, err
	}
	return p.Metadata()
}

func (r *Runner) downloadService(ctx context.Context, name string) (sources.DownloadService, error) {
	p, err := r.provider(ctx, name)
	if err != nil {
		return nil, err
	}
	return p.Download()
}

func (r *Runner) playlistService(ctx context.Context, name string) (sources.PlaylistService, error) {
	p, err := r.provider(ctx, name)
	if err != nil {
		return nil, err
	}
	return p.Playlists()
}

// canonicalSource maps a user-typed source name to the registered spelling stored with songs.
func (r *Runner) canonicalSource(name string) string {
	if r.registry == nil || name == "" {
		return name
	}
	if p, err := r.registry.Get(name); err == nil {
		return p.Name()
	}
	return name
}

// settingsStore looks up a source's settings document by name.
func (r *Runner) settingsStore(name string) (settings.Store, error) {
	store, ok := r.settings[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrUnknownSource, name)
	}
	return store, nil
}

func (r *Runner) outputDir(flag string) string {
	if flag != "" {
		return flag
	}
	return r.config.Download.OutputDir
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(append(output, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	return r.writePlain("\n"+format+"\n", args...)
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
