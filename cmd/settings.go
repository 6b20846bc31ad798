package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/mixdeck/internal/formatter"
	"github.com/desertthunder/mixdeck/internal/shared"
	"github.com/urfave/cli/v3"
)

type settingEntry struct {
	Key      string `json:"key"`
	Category string `json:"category"`
	Label    string `json:"label"`
	Value    string `json:"value"`
}

// SettingsShow prints a source's settings with secrets masked.
func (r *Runner) SettingsShow(ctx context.Context, cmd *cli.Command) error {
	store, err := r.settingsStore(cmd.StringArg("source"))
	if err != nil {
		return err
	}
	if err := store.Load(); err != nil {
		r.logger.Warn("using current settings", "error", err)
	}

	entries, err := store.Entries()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		out := make([]settingEntry, len(entries))
		for i, e := range entries {
			out[i] = settingEntry{Key: e.Name, Category: e.Category, Label: e.Label, Value: e.Display()}
		}
		return r.writeJSON(out, cmd.Bool("pretty"))
	}

	r.writePlain("%s\n", formatter.SettingsTable(entries))
	return r.writePlain("File: %s\n", store.Path())
}

// SettingsSet changes one setting and saves the document.
func (r *Runner) SettingsSet(ctx context.Context, cmd *cli.Command) error {
	key, value := cmd.StringArg("key"), cmd.StringArg("value")
	if key == "" {
		return fmt.Errorf("%w: setting key", shared.ErrMissingArgument)
	}

	store, err := r.settingsStore(cmd.StringArg("source"))
	if err != nil {
		return err
	}
	if err := store.Load(); err != nil {
		r.logger.Warn("using current settings", "error", err)
	}
	if err := store.Set(key, value); err != nil {
		return err
	}
	if err := store.Save(); err != nil {
		return err
	}

	r.logger.Info("setting updated", "key", key, "path", store.Path())
	return r.writePlain("✓ %s updated\n", key)
}

// SettingsReset restores defaults for a source.
func (r *Runner) SettingsReset(ctx context.Context, cmd *cli.Command) error {
	source := cmd.StringArg("source")
	store, err := r.settingsStore(source)
	if err != nil {
		return err
	}
	if err := store.ResetToDefaults(); err != nil {
		return err
	}
	return r.writePlain("✓ %s settings reset to defaults\n", source)
}
