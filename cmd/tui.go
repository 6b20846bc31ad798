package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/mixdeck/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive playlist browser for one source.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	source := cmd.String("source")
	pl, err := r.playlistService(ctx, source)
	if err != nil {
		return err
	}
	dl, err := r.downloadService(ctx, source)
	if err != nil {
		return err
	}

	// Log lines would tear the alt-screen rendering.
	restore := r.redirectLogs()
	defer restore()

	opts := r.batchOpts(cmd)
	model := ui.NewModel(ctx, r.canonicalSource(source), pl, dl, r.engine, opts)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
