package spotify

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixdeck/internal/download"
	"github.com/desertthunder/mixdeck/internal/settings"
	"github.com/desertthunder/mixdeck/internal/sources"
)

// Provider is the Spotify source.
type Provider struct {
	*sources.Base
	// Endpoints may be replaced before Initialize.
	Endpoints Endpoints

	settings *settings.Document[Settings]
	opts     sources.Options
	logger   *log.Logger
}

// New creates an uninitialized provider whose settings live under appDir.
func New(appDir string, opts sources.Options, logger *log.Logger) *Provider {
	p := &Provider{
		Endpoints: DefaultEndpoints(),
		settings:  settings.New(appDir, DefaultSettings, logger),
		opts:      opts,
	}
	p.Base = sources.NewBase(BackendName, p.setup, logger)
	p.logger = p.Base.Logger()
	return p
}

// Settings returns the provider's settings document.
func (p *Provider) Settings() *settings.Document[Settings] { return p.settings }

func (p *Provider) setup(ctx context.Context) (sources.Services, error) {
	_ = p.settings.Load()
	cfg := p.settings.Get()
	if !cfg.Enabled() {
		return sources.Services{}, sources.ErrDisabled
	}

	client, err := NewClient(cfg, p.Endpoints, p.opts.HTTPClient, p.logger)
	if err != nil {
		return sources.Services{}, err
	}
	if err := client.Verify(ctx); err != nil {
		return sources.Services{}, err
	}
	if !client.UserAuthenticated() {
		p.logger.Info("using client credentials; user playlists are unavailable")
	}

	extractor := download.NewExtractor(cfg.Executable, p.logger)
	extractor.TempDir = p.opts.TempDir

	fetcher := download.NewFetcher(p.opts.HTTPClient, nil, p.logger)
	fetcher.TempDir = p.opts.TempDir

	metadata := &metadataService{client: client, quality: cfg.Quality, format: cfg.AudioFormat}
	return sources.Services{
		Search:   &searchService{client: client, logger: p.logger},
		Metadata: metadata,
		Download: &downloadService{
			metadata:  metadata,
			extractor: extractor,
			fetcher:   fetcher,
			guard:     download.NewGuard(p.opts.MaxRetries, p.logger),
			quality:   cfg.Quality,
			format:    cfg.AudioFormat,
		},
		Playlists: &playlistService{client: client, logger: p.logger},
	}, nil
}

var _ sources.Provider = (*Provider)(nil)
