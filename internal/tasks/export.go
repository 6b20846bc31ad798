package tasks

import (
	"context"
	"fmt"
	"net/http"

	"github.com/desertthunder/mixdeck/internal/formatter"
	"github.com/desertthunder/mixdeck/internal/models"
	"github.com/desertthunder/mixdeck/internal/shared"
	"github.com/desertthunder/mixdeck/internal/sources"
)

// ExportOpts configures [Engine.Export].
type ExportOpts struct {
	Format     string
	OutputDir  string
	HTTPClient *http.Client
}

// Export enumerates a playlist and writes it with [formatter.WriteExport].
func (e *Engine) Export(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	pl sources.PlaylistService,
	playlistID string,
	opts ExportOpts,
) (*formatter.ExportResult, error) {
	if pl == nil {
		return nil, fmt.Errorf("%w: playlist service is required", shared.ErrServiceUnavailable)
	}

	sendProgress(prog, ProgressUpdate{Phase: LoadPlaylist, Step: 1, Total: 2, Message: "Loading playlist..."})
	playlist, ok := pl.Load(ctx, playlistID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}

	export := &models.PlaylistExport{Playlist: *playlist, Songs: pl.GetSongs(ctx, playlistID)}
	e.cacheSongs(export.Songs)
	sendProgress(prog, ProgressUpdate{
		Phase:   LoadPlaylist,
		Step:    2,
		Total:   2,
		Message: fmt.Sprintf("Found playlist: %s (%d songs)", playlist.Name, len(export.Songs)),
		Data:    export,
	})

	sendProgress(prog, ProgressUpdate{Phase: ExportPlaylist, Step: 1, Total: 1, Message: fmt.Sprintf("Exporting %s as %s...", playlist.Name, opts.Format)})
	res, err := formatter.WriteExport(ctx, export, formatter.ExportOpts{
		Format:     opts.Format,
		OutputDir:  opts.OutputDir,
		HTTPClient: opts.HTTPClient,
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
