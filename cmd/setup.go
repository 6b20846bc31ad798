package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/desertthunder/mixdeck/internal/download"
	"github.com/desertthunder/mixdeck/internal/shared"
	"github.com/desertthunder/mixdeck/internal/sources"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file, runs the database migrations and writes default settings for every source.
//
// Existing files are left untouched, so setup is safe to run again.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	if r.configPath != "" {
		if _, err := os.Stat(r.configPath); errors.Is(err, fs.ErrNotExist) {
			if err := shared.CreateConfigFile(r.configPath); err != nil {
				return err
			}
			r.logger.Info("config file created", "path", r.configPath)
			r.writePlain("✓ Created %s\n", r.configPath)
		}
	}

	if r.db == nil {
		db, err := r.openDatabase()
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		r.attachDatabase(db)
	}

	statuses, err := shared.Migrations(r.db)
	if err != nil {
		return err
	}
	for _, m := range statuses {
		mark := "✗"
		if m.Applied {
			mark = "✓"
		}
		r.writePlain("%s migration %03d %s\n", mark, m.Version, m.Name)
	}

	names := make([]string, 0, len(r.settings))
	for name := range r.settings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		store := r.settings[name]
		if _, err := os.Stat(store.Path()); err == nil {
			continue
		}
		if err := store.Save(); err != nil {
			return fmt.Errorf("failed to write %s settings: %w", name, err)
		}
		r.writePlain("✓ Wrote default settings %s\n", store.Path())
	}

	r.logger.Info("setup complete", "database", r.config.Database.Path, "data_dir", r.appDir)
	return r.writePlain("✓ Setup complete\n")
}

// Doctor checks the external tools and reports why sources are unavailable.
func (r *Runner) Doctor(ctx context.Context, cmd *cli.Command) error {
	var tools []string
	if r.youtube != nil {
		tools = append(tools, r.youtube.Settings().Get().Executable)
	}
	if r.spotify != nil {
		tools = append(tools, r.spotify.Settings().Get().Executable)
	}
	if len(tools) == 0 {
		tools = append(tools, download.DefaultTool)
	}

	problems := 0
	seen := map[string]bool{}
	for _, tool := range tools {
		if seen[tool] {
			continue
		}
		seen[tool] = true
		if err := download.CheckTool(tool); err != nil {
			problems++
			r.writePlain("✗ %v\n", err)
			continue
		}
		r.writePlain("✓ %s found\n", tool)
	}

	if r.db == nil {
		problems++
		r.writePlain("✗ database unavailable, run 'mixdeck setup'\n")
	} else {
		r.writePlain("✓ database %s\n", r.config.Database.Path)
	}

	if r.registry != nil {
		if err := r.registry.InitializeAll(ctx); err != nil {
			return err
		}
		for _, p := range r.registry.All() {
			if degraded, ok := p.State().(sources.Degraded); ok {
				if errors.Is(degraded.Reason, sources.ErrDisabled) {
					r.writePlain("- %s: disabled\n", p.Name())
					continue
				}
				problems++
				r.writePlain("✗ %s: %v\n", p.Name(), degraded.Reason)
				continue
			}
			r.writePlain("✓ %s: %s\n", p.Name(), p.State())
		}
	}

	if problems > 0 {
		return fmt.Errorf("%w: %d problem(s) found", shared.ErrServiceUnavailable, problems)
	}
	return r.writePlain("All checks passed.\n")
}
