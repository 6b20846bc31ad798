package youtube

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixdeck/internal/download"
	"github.com/desertthunder/mixdeck/internal/settings"
	"github.com/desertthunder/mixdeck/internal/shared"
	"github.com/desertthunder/mixdeck/internal/sources"
)

// Provider is the YouTube source.
type Provider struct {
	*sources.Base
	settings *settings.Document[Settings]
	opts     sources.Options
	logger   *log.Logger
}

// New creates an uninitialized provider whose settings live under appDir.
func New(appDir string, opts sources.Options, logger *log.Logger) *Provider {
	p := &Provider{
		settings: settings.New(appDir, DefaultSettings, logger),
		opts:     opts,
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

	args, headers, err := networkArgs(cfg)
	if err != nil {
		return sources.Services{}, err
	}

	client := NewClient(cfg.Executable, p.logger, args...)
	version, err := client.Version(ctx)
	if err != nil {
		return sources.Services{}, err
	}
	p.logger.Debug("found yt-dlp", "version", version)

	extractor := download.NewExtractor(cfg.Executable, p.logger, args...)
	extractor.TempDir = p.opts.TempDir

	fetcher := download.NewFetcher(p.opts.HTTPClient, headers, p.logger)
	fetcher.TempDir = p.opts.TempDir

	metadata := &metadataService{client: client, quality: cfg.Quality}
	return sources.Services{
		Search:   &searchService{client: client, maxResults: cfg.MaxResults, logger: p.logger},
		Metadata: metadata,
		Download: &downloadService{
			metadata:  metadata,
			fetcher:   fetcher,
			extractor: extractor,
			guard:     download.NewGuard(p.opts.MaxRetries, p.logger),
			format:    cfg.AudioFormat,
			quality:   cfg.Quality,
			logger:    p.logger,
		},
		Playlists: &playlistService{client: client, maxResults: cfg.MaxResults, logger: p.logger},
	}, nil
}

// networkArgs converts the socket timeout and captured headers into yt-dlp arguments and HTTP headers.
func networkArgs(cfg Settings) ([]string, map[string]string, error) {
	var args []string
	if cfg.SocketTimeout > 0 {
		args = append(args, "--socket-timeout", strconv.Itoa(cfg.SocketTimeout))
	}
	if cfg.HeadersFile == "" {
		return args, nil, nil
	}

	captured, err := shared.ParseCurlFile(cfg.HeadersFile)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: headers_file: %v", shared.ErrInvalidConfig, err)
	}
	return append(args, captured.ToHeaderArgs()...), captured.HTTPHeaders(), nil
}

var _ sources.Provider = (*Provider)(nil)
