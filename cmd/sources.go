package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/mixdeck/internal/formatter"
	"github.com/desertthunder/mixdeck/internal/models"
	"github.com/desertthunder/mixdeck/internal/shared"
	"github.com/desertthunder/mixdeck/internal/sources"
	"github.com/urfave/cli/v3"
)

type sourceStatus struct {
	Name         string   `json:"name"`
	State        string   `json:"state"`
	Available    bool     `json:"available"`
	Capabilities []string `json:"capabilities"`
}

// capabilities lists the services a Ready provider exposes.
func capabilities(p sources.Provider) []string {
	ready, ok := p.State().(sources.Ready)
	if !ok {
		return nil
	}
	var caps []string
	svc := ready.Services
	if svc.Search != nil {
		caps = append(caps, string(sources.CapabilitySearch))
	}
	if svc.Metadata != nil {
		caps = append(caps, string(sources.CapabilityMetadata))
	}
	if svc.Download != nil {
		caps = append(caps, string(sources.CapabilityDownload))
	}
	if svc.Playlists != nil {
		caps = append(caps, string(sources.CapabilityPlaylists))
	}
	return caps
}

// Sources initializes every source and reports its state.
func (r *Runner) Sources(ctx context.Context, cmd *cli.Command) error {
	if r.registry == nil {
		return fmt.Errorf("%w: no sources registered", shared.ErrServiceUnavailable)
	}
	if err := r.registry.InitializeAll(ctx); err != nil {
		return err
	}

	var statuses []sourceStatus
	var rows []formatter.SourceRow
	for _, p := range r.registry.All() {
		caps := capabilities(p)
		statuses = append(statuses, sourceStatus{Name: p.Name(), State: p.State().String(), Available: p.IsAvailable(), Capabilities: caps})
		rows = append(rows, formatter.SourceRow{Name: p.Name(), State: p.State().String(), Capabilities: caps})
	}

	if cmd.Bool("json") {
		return r.writeJSON(statuses, cmd.Bool("pretty"))
	}
	return r.writePlain("%s\n", formatter.SourcesTable(rows))
}

// Search finds songs on one source, or on every available source with --all.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	artist := cmd.String("artist")
	playlistID := cmd.String("playlist")
	limit := cmd.Int("limit")

	if query == "" && artist == "" && playlistID == "" {
		return fmt.Errorf("%w: a query, --artist or --playlist is required", shared.ErrMissingArgument)
	}

	var songs []models.Song
	if cmd.Bool("all") {
		if query == "" {
			return fmt.Errorf("%w: --all needs a free-text query", shared.ErrInvalidArgument)
		}
		if err := r.registry.InitializeAll(ctx); err != nil {
			return err
		}
		songs = r.registry.Search(ctx, query, limit)
	} else {
		svc, err := r.searchService(ctx, cmd.String("source"))
		if err != nil {
			return err
		}

		switch {
		case artist != "":
			songs = svc.SearchByArtist(ctx, artist, limit)
		case playlistID != "":
			songs = svc.SearchByPlaylist(ctx, playlistID, limit)
		default:
			songs = svc.Search(ctx, query, limit)
		}
		if len(songs) == 0 {
			if err := svc.LastError(); err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
		}
	}

	r.logger.Debug("search complete", "query", query, "results", len(songs))
	r.cacheSongs(songs...)

	if cmd.Bool("json") {
		return r.writeJSON(formatter.ToSongRecords(songs), cmd.Bool("pretty"))
	}
	if len(songs) == 0 {
		return r.writePlain("No songs found.\n")
	}
	return r.writePlain("%s\n", formatter.SongsTable(songs))
}

// Info prints song metadata. When the source is unreachable, the cached copy is shown instead.
func (r *Runner) Info(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: song id", shared.ErrMissingArgument)
	}
	source := cmd.String("source")

	song, err := r.songMetadata(ctx, source, id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(formatter.ToSongRecord(*song), cmd.Bool("pretty"))
	}

	r.writePlainHeader(song.Title)
	r.writePlain("Artist:   %s\n", song.Artist)
	if song.Album != "" {
		r.writePlain("Album:    %s\n", song.Album)
	}
	r.writePlain("Duration: %s\n", shared.FormatDuration(song.Duration))
	r.writePlain("Source:   %s (%s)\n", song.Source, song.ID)
	if song.SourceURL != "" {
		r.writePlain("URL:      %s\n", song.SourceURL)
	}
	if song.Description != "" {
		r.writePlainln("%s", formatter.Truncate(song.Description, 400))
	}
	return nil
}

// songMetadata resolves a song through the metadata service, falling back to the cache.
func (r *Runner) songMetadata(ctx context.Context, source, id string) (*models.Song, error) {
	svc, err := r.metadataService(ctx, source)
	if err == nil {
		song, err := svc.GetSongMetadata(ctx, id)
		if err == nil {
			r.cacheSongs(*song)
			return song, nil
		}
		r.logger.Debug("metadata lookup failed", "id", id, "error", err)
		if cached, ok := r.cachedSong(source, id); ok {
			r.logger.Warn("showing cached metadata", "error", err)
			return cached, nil
		}
		return nil, err
	}

	if cached, ok := r.cachedSong(source, id); ok {
		r.logger.Warn("source unavailable, showing cached metadata", "error", err)
		return cached, nil
	}
	return nil, err
}

func (r *Runner) cachedSong(source, id string) (*models.Song, bool) {
	if r.cache == nil {
		return nil, false
	}
	if source == "" {
		source = defaultSource
	}
	song, ok := r.cache.Lookup(r.canonicalSource(source), id)
	if !ok {
		return nil, false
	}
	return &song, true
}

type streamsOutput struct {
	SongID  string                   `json:"song_id"`
	Best    *models.AudioStreamInfo  `json:"best,omitempty"`
	Streams []models.AudioStreamInfo `json:"streams"`
}

// Streams lists stream candidates and marks the one the source's policy selects.
func (r *Runner) Streams(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: song id", shared.ErrMissingArgument)
	}

	svc, err := r.metadataService(ctx, cmd.String("source"))
	if err != nil {
		return err
	}

	streams, err := svc.GetAudioStreams(ctx, id)
	if err != nil {
		return err
	}
	best, err := svc.GetBestAudioStream(ctx, id)
	if err != nil {
		r.logger.Warn("no stream selected", "id", id, "error", err)
	}

	bestIndex := -1
	if best != nil {
		for i, s := range streams {
			if s.URL == best.URL {
				bestIndex = i
				break
			}
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(streamsOutput{
			SongID:  id,
			Best:    best,
			Streams: streams,
		}, cmd.Bool("pretty"))
	}
	if len(streams) == 0 {
		return r.writePlain("No streams found.\n")
	}
	r.writePlain("%s\n", formatter.StreamsTable(streams, bestIndex))
	if bestIndex >= 0 {
		r.writePlain("* selected stream\n")
	}
	return nil
}
