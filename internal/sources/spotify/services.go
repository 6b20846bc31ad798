package spotify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixdeck/internal/download"
	"github.com/desertthunder/mixdeck/internal/models"
	"github.com/desertthunder/mixdeck/internal/shared"
	"github.com/desertthunder/mixdeck/internal/sources"
)

type searchService struct {
	sources.ErrorRecorder
	client *Client
	logger *log.Logger
}

func (s *searchService) failed(op string, err error) {
	s.Record(err)
	s.logger.Warn("search failed", "op", op, "error", err)
}

func (s *searchService) Search(ctx context.Context, query string, maxResults int) []models.Song {
	tracks, err := s.client.SearchTracks(ctx, query, maxResults)
	if err != nil {
		s.failed("search", err)
		return []models.Song{}
	}
	s.Record(nil)
	return toSongs(tracks)
}

func (s *searchService) SearchByArtist(ctx context.Context, artist string, maxResults int) []models.Song {
	tracks, err := s.client.SearchTracks(ctx, fmt.Sprintf("artist:%q", artist), maxResults)
	if err != nil {
		s.failed("search_by_artist", err)
		return []models.Song{}
	}
	s.Record(nil)
	return toSongs(tracks)
}

func (s *searchService) SearchByPlaylist(ctx context.Context, playlistID string, maxResults int) []models.Song {
	tracks, err := s.client.PlaylistTracks(ctx, playlistID, maxResults)
	if err != nil {
		s.failed("search_by_playlist", err)
		return []models.Song{}
	}
	s.Record(nil)
	return toSongs(tracks)
}

func (s *searchService) SearchPlaylists(ctx context.Context, query string, maxResults int) []models.Playlist {
	playlists, err := s.client.SearchPlaylists(ctx, query, maxResults)
	if err != nil {
		s.failed("search_playlists", err)
		return []models.Playlist{}
	}
	s.Record(nil)
	return toPlaylists(playlists)
}

type metadataService struct {
	client  *Client
	quality Quality
	format  string
}

func (m *metadataService) GetSongMetadata(ctx context.Context, id string) (*models.Song, error) {
	track, err := m.client.Track(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s: %v", shared.ErrSongNotFound, id, err)
		}
		return nil, err
	}
	song := toSong(*track)
	song.Streams = []models.AudioStreamInfo{syntheticStream(track.ID, m.quality, m.format)}
	return &song, nil
}

func (m *metadataService) GetAudioStreams(ctx context.Context, id string) ([]models.AudioStreamInfo, error) {
	song, err := m.GetSongMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	return song.Streams, nil
}

func (m *metadataService) GetBestAudioStream(ctx context.Context, id string) (*models.AudioStreamInfo, error) {
	streams, err := m.GetAudioStreams(ctx, id)
	if err != nil {
		return nil, err
	}
	best := models.BestStream(streams)
	if best == nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrNoStreams, id)
	}
	return best, nil
}

type downloadService struct {
	metadata  *metadataService
	extractor *download.Extractor
	fetcher   *download.Fetcher
	guard     *download.Guard
	quality   Quality
	format    string
}

func (d *downloadService) request(song models.Song) download.Request {
	return download.Request{
		Song:    song,
		URL:     searchQuery(song),
		Format:  d.format,
		Quality: d.quality.AudioQuality(),
	}
}

// DownloadAudio searches for the song with the extraction tool and extracts the first match.
func (d *downloadService) DownloadAudio(ctx context.Context, song models.Song, progress models.ProgressFunc) (string, error) {
	key := download.Key(song, d.format, d.quality.AudioQuality())
	return d.guard.Do(ctx, key, song, progress, func(ctx context.Context, progress models.ProgressFunc) (string, error) {
		return d.extractor.Extract(ctx, d.request(song), progress)
	})
}

// GetAudioStream extracts the track to a temp file and streams it. The file is removed on Close.
func (d *downloadService) GetAudioStream(ctx context.Context, stream models.AudioStreamInfo) (io.ReadCloser, error) {
	id, ok := TrackID(stream.URL)
	if !ok {
		return nil, fmt.Errorf("%w: not a spotify track uri: %s", shared.ErrInvalidInput, stream.URL)
	}
	song, err := d.metadata.GetSongMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	return d.extractor.OpenExtracted(ctx, d.request(*song))
}

func (d *downloadService) GetContentLength(ctx context.Context, url string) (int64, error) {
	stream := models.AudioStreamInfo{URL: url}
	if !stream.IsFetchable() {
		return -1, fmt.Errorf("%w: content length of %s", shared.ErrNotSupported, url)
	}
	return d.fetcher.ContentLength(ctx, url)
}

func (d *downloadService) SupportsDirectStreaming() bool { return false }

type playlistService struct {
	client *Client
	logger *log.Logger

	mu     sync.Mutex
	userID string
}

func (p *playlistService) Load(ctx context.Context, id string) (*models.Playlist, bool) {
	playlist, err := p.client.Playlist(ctx, id)
	if err != nil {
		p.logger.Warn("failed to load playlist", "id", id, "error", err)
		return nil, false
	}
	out := toPlaylist(*playlist)
	return &out, true
}

func (p *playlistService) LoadUserPlaylists(ctx context.Context) []models.Playlist {
	if !p.client.UserAuthenticated() {
		p.logger.Warn("user playlists need a refresh token; run `mixdeck spotify auth`")
		return []models.Playlist{}
	}
	playlists, err := p.client.UserPlaylists(ctx)
	if err != nil {
		p.logger.Warn("failed to load user playlists", "error", err)
		return []models.Playlist{}
	}
	return toPlaylists(playlists)
}

// Save creates the playlist when it has no ID and renames it otherwise. A created playlist's ID is written back.
func (p *playlistService) Save(ctx context.Context, playlist *models.Playlist) bool {
	if playlist == nil || playlist.Name == "" {
		p.logger.Warn("cannot save playlist without a name")
		return false
	}

	if playlist.ID != "" {
		if err := p.client.UpdatePlaylist(ctx, playlist.ID, playlist.Name, playlist.Description, playlist.Public); err != nil {
			p.logger.Warn("failed to update playlist", "id", playlist.ID, "error", err)
			return false
		}
		return true
	}

	userID, err := p.currentUser(ctx)
	if err != nil {
		p.logger.Warn("failed to resolve current user", "error", err)
		return false
	}
	created, err := p.client.CreatePlaylist(ctx, userID, playlist.Name, playlist.Description, playlist.Public)
	if err != nil {
		p.logger.Warn("failed to create playlist", "name", playlist.Name, "error", err)
		return false
	}
	playlist.ID = created.ID
	playlist.Source = BackendName
	return true
}

func (p *playlistService) currentUser(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.userID != "" {
		return p.userID, nil
	}
	user, err := p.client.Me(ctx)
	if err != nil {
		return "", err
	}
	p.userID = user.ID
	return p.userID, nil
}

// Delete is not offered by the Web API; unfollowing is the closest operation and is not performed.
func (p *playlistService) Delete(ctx context.Context, id string) bool {
	sources.Unsupported(p.logger, "delete_playlist")
	return false
}

func (p *playlistService) AddSong(ctx context.Context, playlistID string, song models.Song) bool {
	if err := p.client.AddTracks(ctx, playlistID, []string{TrackURI(song.ID)}); err != nil {
		p.logger.Warn("failed to add song", "playlist", playlistID, "song", song.ID, "error", err)
		return false
	}
	return true
}

func (p *playlistService) RemoveSong(ctx context.Context, playlistID, songID string) bool {
	if err := p.client.RemoveTracks(ctx, playlistID, []string{TrackURI(songID)}); err != nil {
		p.logger.Warn("failed to remove song", "playlist", playlistID, "song", songID, "error", err)
		return false
	}
	return true
}

func (p *playlistService) Search(ctx context.Context, query string, maxResults int) []models.Playlist {
	playlists, err := p.client.SearchPlaylists(ctx, query, maxResults)
	if err != nil {
		p.logger.Warn("playlist search failed", "query", query, "error", err)
		return []models.Playlist{}
	}
	return toPlaylists(playlists)
}

func (p *playlistService) GetSongs(ctx context.Context, playlistID string) []models.Song {
	tracks, err := p.client.PlaylistTracks(ctx, playlistID, 0)
	if err != nil {
		p.logger.Warn("failed to load playlist songs", "id", playlistID, "error", err)
		return []models.Song{}
	}
	return toSongs(tracks)
}

var (
	_ sources.SearchService   = (*searchService)(nil)
	_ sources.MetadataService = (*metadataService)(nil)
	_ sources.DownloadService = (*downloadService)(nil)
	_ sources.PlaylistService = (*playlistService)(nil)
)
