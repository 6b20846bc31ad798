package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/mixdeck/internal/formatter"
	"github.com/desertthunder/mixdeck/internal/models"
	"github.com/desertthunder/mixdeck/internal/shared"
	"github.com/desertthunder/mixdeck/internal/tasks"
	"github.com/urfave/cli/v3"
)

// PlaylistsList lists the playlists of the authenticated user.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	pl, err := r.playlistService(ctx, cmd.String("source"))
	if err != nil {
		return err
	}

	playlists := pl.LoadUserPlaylists(ctx)
	r.logger.Debug("fetched playlists", "count", len(playlists))

	if cmd.Bool("json") {
		return r.writeJSON(formatter.ToPlaylistRecords(playlists), cmd.Bool("pretty"))
	}
	if len(playlists) == 0 {
		return r.writePlain("No playlists found.\n")
	}
	return r.writePlain("%s\n", formatter.PlaylistsTable(playlists))
}

// PlaylistsShow prints a playlist with its songs.
func (r *Runner) PlaylistsShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	pl, err := r.playlistService(ctx, cmd.String("source"))
	if err != nil {
		return err
	}

	playlist, ok := pl.Load(ctx, id)
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}
	songs := pl.GetSongs(ctx, id)
	r.cacheSongs(songs...)

	if cmd.Bool("json") {
		return r.writeJSON(formatter.ExportRecord{
			Playlist: formatter.ToPlaylistRecord(*playlist),
			Songs:    formatter.ToSongRecords(songs),
		}, cmd.Bool("pretty"))
	}

	r.writePlainHeader(playlist.Name)
	if playlist.Description != "" {
		r.writePlain("%s\n", playlist.Description)
	}
	r.writePlain("%s • %d songs • %s\n\n", playlist.Source, len(songs), shared.VisibilityString(playlist.Public))
	return r.writePlain("%s\n", formatter.SongsTable(songs))
}

// PlaylistsSearch finds public playlists.
func (r *Runner) PlaylistsSearch(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	if query == "" {
		return fmt.Errorf("%w: query", shared.ErrMissingArgument)
	}

	pl, err := r.playlistService(ctx, cmd.String("source"))
	if err != nil {
		return err
	}

	playlists := pl.Search(ctx, query, cmd.Int("limit"))
	if cmd.Bool("json") {
		return r.writeJSON(formatter.ToPlaylistRecords(playlists), cmd.Bool("pretty"))
	}
	if len(playlists) == 0 {
		return r.writePlain("No playlists found.\n")
	}
	return r.writePlain("%s\n", formatter.PlaylistsTable(playlists))
}

// PlaylistsCreate creates a playlist and prints its ID.
func (r *Runner) PlaylistsCreate(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	pl, err := r.playlistService(ctx, cmd.String("source"))
	if err != nil {
		return err
	}

	playlist := &models.Playlist{Name: name, Description: cmd.String("description"), Public: cmd.Bool("public")}
	if !pl.Save(ctx, playlist) {
		return fmt.Errorf("failed to create playlist %q", name)
	}
	return r.writePlain("✓ Created playlist %s (%s)\n", playlist.Name, playlist.ID)
}

// PlaylistsAdd adds a song to a playlist.
func (r *Runner) PlaylistsAdd(ctx context.Context, cmd *cli.Command) error {
	id, songID := cmd.StringArg("id"), cmd.StringArg("song")
	if id == "" || songID == "" {
		return fmt.Errorf("%w: playlist id and song id", shared.ErrMissingArgument)
	}

	pl, err := r.playlistService(ctx, cmd.String("source"))
	if err != nil {
		return err
	}

	if !pl.AddSong(ctx, id, models.Song{ID: songID}) {
		return fmt.Errorf("failed to add %s to playlist %s", songID, id)
	}
	return r.writePlain("✓ Added %s to %s\n", songID, id)
}

// PlaylistsRemove removes a song from a playlist.
func (r *Runner) PlaylistsRemove(ctx context.Context, cmd *cli.Command) error {
	id, songID := cmd.StringArg("id"), cmd.StringArg("song")
	if id == "" || songID == "" {
		return fmt.Errorf("%w: playlist id and song id", shared.ErrMissingArgument)
	}

	pl, err := r.playlistService(ctx, cmd.String("source"))
	if err != nil {
		return err
	}

	if !pl.RemoveSong(ctx, id, songID) {
		return fmt.Errorf("failed to remove %s from playlist %s", songID, id)
	}
	return r.writePlain("✓ Removed %s from %s\n", songID, id)
}

// PlaylistsDelete deletes a playlist where the source allows it.
func (r *Runner) PlaylistsDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	pl, err := r.playlistService(ctx, cmd.String("source"))
	if err != nil {
		return err
	}

	if !pl.Delete(ctx, id) {
		return fmt.Errorf("%w: could not delete playlist %s", shared.ErrNotSupported, id)
	}
	return r.writePlain("✓ Deleted playlist %s\n", id)
}

// PlaylistsExport writes a playlist to files in the chosen format.
func (r *Runner) PlaylistsExport(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	pl, err := r.playlistService(ctx, cmd.String("source"))
	if err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.writePlain("→ %s\n", update.Message)
		}
	}()

	result, err := r.engine.Export(ctx, progress, pl, id, tasks.ExportOpts{
		Format:     cmd.String("format"),
		OutputDir:  r.outputDir(cmd.String("output")),
		HTTPClient: r.httpClient,
	})
	close(progress)
	<-done
	if err != nil {
		return err
	}

	r.writePlain("✓ Exported as %s:\n", result.Format)
	for _, f := range result.Files {
		r.writePlain("  %s\n", f)
	}
	return nil
}
