package sources

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixdeck/internal/models"
	"github.com/desertthunder/mixdeck/internal/shared"
	"golang.org/x/sync/errgroup"
)

// Registry maps provider names to providers. Names are matched case-insensitively.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	logger    *log.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *log.Logger) *Registry {
	return &Registry{providers: make(map[string]Provider), logger: shared.WithLogger(logger)}
}

func key(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// Register adds a provider. Registering a name twice is an error.
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(p.Name())
	if _, exists := r.providers[k]; exists {
		return fmt.Errorf("%w: source %s already registered", shared.ErrInvalidArgument, p.Name())
	}
	r.providers[k] = p
	return nil
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[key(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrUnknownSource, name)
	}
	return p, nil
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	providers := r.All()
	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name()
	}
	return names
}

// All returns every provider sorted by name.
func (r *Registry) All() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return key(all[i].Name()) < key(all[j].Name()) })
	return all
}

// InitializeAll initializes every provider concurrently.
// Setup failures only degrade the failing provider; the returned error is the first cancellation.
func (r *Registry) InitializeAll(ctx context.Context) error {
	var g errgroup.Group
	for _, p := range r.All() {
		g.Go(func() error { return p.Initialize(ctx) })
	}
	return g.Wait()
}

// Available returns the providers that are Ready.
func (r *Registry) Available() []Provider {
	var available []Provider
	for _, p := range r.All() {
		if p.IsAvailable() {
			available = append(available, p)
		}
	}
	return available
}

// Search queries every available provider concurrently and concatenates the results in provider order.
// A provider that fails contributes no songs.
func (r *Registry) Search(ctx context.Context, query string, maxResults int) []models.Song {
	providers := r.Available()
	results := make([][]models.Song, len(providers))

	var g errgroup.Group
	for i, p := range providers {
		g.Go(func() error {
			svc, err := p.Search()
			if err != nil {
				r.logger.Warn("search unavailable", "source", p.Name(), "error", err)
				return nil
			}
			results[i] = svc.Search(ctx, query, maxResults)
			if err := svc.LastError(); err != nil && len(results[i]) == 0 {
				r.logger.Warn("search failed", "source", p.Name(), "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	var songs []models.Song
	for _, batch := range results {
		songs = append(songs, batch...)
	}
	return songs
}

// Close disposes every provider.
func (r *Registry) Close() error {
	var errs []error
	for _, p := range r.All() {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}
