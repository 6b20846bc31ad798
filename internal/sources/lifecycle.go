package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixdeck/internal/shared"
)

// SetupFunc loads settings, authenticates and builds the capability services of a backend.
type SetupFunc func(ctx context.Context) (Services, error)

// Base implements the [Provider] lifecycle around a backend [SetupFunc].
type Base struct {
	name   string
	setup  SetupFunc
	logger *log.Logger

	initMu sync.Mutex // serializes Initialize and Close
	mu     sync.RWMutex
	state  State
}

// NewBase creates an uninitialized provider.
func NewBase(name string, setup SetupFunc, logger *log.Logger) *Base {
	return &Base{
		name:   name,
		setup:  setup,
		logger: shared.WithLogger(logger, "source", name),
		state:  Uninitialized{},
	}
}

func (b *Base) Name() string { return b.name }

// Logger returns the provider's logger.
func (b *Base) Logger() *log.Logger { return b.logger }

func (b *Base) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

func (b *Base) setState(s State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

func (b *Base) IsAvailable() bool {
	_, ok := b.State().(Ready)
	return ok
}

// Initialize runs setup exactly once. Concurrent callers wait for the first to finish.
//
// Setup failures move the provider to [Degraded] and are logged, not returned. If ctx is cancelled before setup
// completes the provider returns to [Uninitialized] and ctx.Err() is returned so the caller can retry.
func (b *Base) Initialize(ctx context.Context) error {
	b.initMu.Lock()
	defer b.initMu.Unlock()

	switch b.State().(type) {
	case Ready, Degraded:
		return nil
	case Disposed:
		return fmt.Errorf("%w: %s", shared.ErrDisposed, b.name)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	b.setState(Initializing{})
	b.logger.Debug("initializing")

	services, err := b.setup(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			closeServices(services)
			b.setState(Uninitialized{})
			b.logger.Warn("initialization cancelled", "error", ctxErr)
			return ctxErr
		}

		b.setState(Degraded{Reason: err})
		b.logger.Error("initialization failed", "error", err)
		return nil
	}

	b.setState(Ready{Services: services})
	b.logger.Info("ready")
	return nil
}

// Close releases services that implement [io.Closer] and disposes the provider. Repeated calls are no-ops.
func (b *Base) Close() error {
	b.initMu.Lock()
	defer b.initMu.Unlock()

	current := b.State()
	if _, ok := current.(Disposed); ok {
		return nil
	}

	var err error
	if ready, ok := current.(Ready); ok {
		err = closeServices(ready.Services)
	}

	b.setState(Disposed{})
	b.logger.Debug("disposed")
	return err
}

func (b *Base) services(c Capability) (Services, error) {
	current := b.State()
	ready, ok := current.(Ready)
	if !ok {
		return Services{}, &UninitializedServiceError{Provider: b.name, Capability: c, State: current}
	}
	return ready.Services, nil
}

func (b *Base) Search() (SearchService, error) {
	s, err := b.services(CapabilitySearch)
	if err != nil {
		return nil, err
	}
	if s.Search == nil {
		return nil, fmt.Errorf("%w: %s has no %s", shared.ErrNotSupported, b.name, CapabilitySearch)
	}
	return s.Search, nil
}

func (b *Base) Metadata() (MetadataService, error) {
	s, err := b.services(CapabilityMetadata)
	if err != nil {
		return nil, err
	}
	if s.Metadata == nil {
		return nil, fmt.Errorf("%w: %s has no %s", shared.ErrNotSupported, b.name, CapabilityMetadata)
	}
	return s.Metadata, nil
}

func (b *Base) Download() (DownloadService, error) {
	s, err := b.services(CapabilityDownload)
	if err != nil {
		return nil, err
	}
	if s.Download == nil {
		return nil, fmt.Errorf("%w: %s has no %s", shared.ErrNotSupported, b.name, CapabilityDownload)
	}
	return s.Download, nil
}

func (b *Base) Playlists() (PlaylistService, error) {
	s, err := b.services(CapabilityPlaylists)
	if err != nil {
		return nil, err
	}
	if s.Playlists == nil {
		return nil, fmt.Errorf("%w: %s has no %s", shared.ErrNotSupported, b.name, CapabilityPlaylists)
	}
	return s.Playlists, nil
}

// closeServices closes each distinct service implementing io.Closer once.
func closeServices(s Services) error {
	seen := make(map[io.Closer]bool)
	var errs []error
	for _, svc := range []any{s.Search, s.Metadata, s.Download, s.Playlists} {
		c, ok := svc.(io.Closer)
		if !ok || seen[c] {
			continue
		}
		seen[c] = true
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Provider = (*Base)(nil)
