package youtube

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixdeck/internal/download"
	"github.com/desertthunder/mixdeck/internal/models"
	"github.com/desertthunder/mixdeck/internal/shared"
	"github.com/desertthunder/mixdeck/internal/sources"
)

type searchService struct {
	sources.ErrorRecorder
	client     *Client
	maxResults int
	logger     *log.Logger
}

func (s *searchService) limit(n int) int {
	if n <= 0 {
		return s.maxResults
	}
	return n
}

func (s *searchService) failed(op string, err error) {
	s.Record(err)
	s.logger.Warn("search failed", "op", op, "error", err)
}

func (s *searchService) Search(ctx context.Context, query string, maxResults int) []models.Song {
	entries, err := s.client.Search(ctx, query, s.limit(maxResults))
	if err != nil {
		s.failed("search", err)
		return []models.Song{}
	}
	s.Record(nil)
	return toSongs(entries, s.limit(maxResults))
}

func (s *searchService) SearchByArtist(ctx context.Context, artist string, maxResults int) []models.Song {
	entries, err := s.client.Search(ctx, artist, s.limit(maxResults))
	if err != nil {
		s.failed("search_by_artist", err)
		return []models.Song{}
	}
	s.Record(nil)
	return toSongs(entries, s.limit(maxResults))
}

func (s *searchService) SearchByPlaylist(ctx context.Context, playlistID string, maxResults int) []models.Song {
	p, err := s.client.Playlist(ctx, playlistID, s.limit(maxResults))
	if err != nil {
		s.failed("search_by_playlist", err)
		return []models.Song{}
	}
	s.Record(nil)
	songs := toSongs(p.Entries, s.limit(maxResults))
	for i := range songs {
		songs[i].PlaylistName = p.Title
	}
	return songs
}

func (s *searchService) SearchPlaylists(ctx context.Context, query string, maxResults int) []models.Playlist {
	entries, err := s.client.SearchPlaylists(ctx, query, s.limit(maxResults))
	if err != nil {
		s.failed("search_playlists", err)
		return []models.Playlist{}
	}
	s.Record(nil)
	playlists := make([]models.Playlist, 0, len(entries))
	for _, e := range entries {
		playlists = append(playlists, toPlaylist(e, 0))
	}
	return playlists
}

type metadataService struct {
	client  *Client
	quality Quality
}

func (m *metadataService) GetSongMetadata(ctx context.Context, id string) (*models.Song, error) {
	v, err := m.client.Video(ctx, id)
	if err != nil {
		return nil, err
	}
	song := toSong(v.entry)
	song.Streams = audioStreams(v)
	return &song, nil
}

func (m *metadataService) GetAudioStreams(ctx context.Context, id string) ([]models.AudioStreamInfo, error) {
	v, err := m.client.Video(ctx, id)
	if err != nil {
		return nil, err
	}
	return audioStreams(v), nil
}

func (m *metadataService) GetBestAudioStream(ctx context.Context, id string) (*models.AudioStreamInfo, error) {
	streams, err := m.GetAudioStreams(ctx, id)
	if err != nil {
		return nil, err
	}
	best := selectStream(streams, m.quality)
	if best == nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrNoStreams, id)
	}
	return best, nil
}

type downloadService struct {
	metadata  *metadataService
	fetcher   *download.Fetcher
	extractor *download.Extractor
	guard     *download.Guard
	format    AudioFormat
	quality   Quality
	logger    *log.Logger
}

// DownloadAudio fetches the selected stream directly. Without a selected stream the best one within the quality
// cap is chosen, looking the song up when it carries no streams. Songs without a fetchable stream are extracted.
func (d *downloadService) DownloadAudio(ctx context.Context, song models.Song, progress models.ProgressFunc) (string, error) {
	key := download.Key(song, string(d.format), d.quality.AudioQuality())
	return d.guard.Do(ctx, key, song, progress, func(ctx context.Context, progress models.ProgressFunc) (string, error) {
		stream, err := d.resolve(ctx, song)
		if err != nil {
			return "", err
		}

		if stream != nil && stream.IsFetchable() {
			return d.fetcher.Download(ctx, song, *stream, progress)
		}

		d.logger.Info("no direct stream, extracting", "song", song.ID)
		return d.extractor.Extract(ctx, download.Request{
			Song:    song,
			URL:     WatchURL(song.ID),
			Format:  string(d.format),
			Quality: d.quality.AudioQuality(),
		}, progress)
	})
}

func (d *downloadService) resolve(ctx context.Context, song models.Song) (*models.AudioStreamInfo, error) {
	if song.SelectedStream != nil {
		return song.SelectedStream, nil
	}
	if len(song.Streams) > 0 {
		return selectStream(song.Streams, d.quality), nil
	}

	streams, err := d.metadata.GetAudioStreams(ctx, song.ID)
	if err != nil {
		return nil, err
	}
	return selectStream(streams, d.quality), nil
}

func (d *downloadService) GetAudioStream(ctx context.Context, stream models.AudioStreamInfo) (io.ReadCloser, error) {
	if stream.IsFetchable() {
		return d.fetcher.Open(ctx, stream.URL)
	}
	return d.extractor.OpenExtracted(ctx, download.Request{
		URL:     stream.URL,
		Format:  stream.Extension,
		Quality: d.quality.AudioQuality(),
	})
}

func (d *downloadService) GetContentLength(ctx context.Context, url string) (int64, error) {
	return d.fetcher.ContentLength(ctx, url)
}

func (d *downloadService) SupportsDirectStreaming() bool { return true }

type playlistService struct {
	client     *Client
	maxResults int
	logger     *log.Logger
}

func (p *playlistService) Load(ctx context.Context, id string) (*models.Playlist, bool) {
	info, err := p.client.Playlist(ctx, id, 1)
	if err != nil {
		p.logger.Warn("failed to load playlist", "id", id, "error", err)
		return nil, false
	}
	playlist := toPlaylist(info.entry, info.PlaylistCount)
	return &playlist, true
}

func (p *playlistService) LoadUserPlaylists(ctx context.Context) []models.Playlist {
	sources.Unsupported(p.logger, "load_user_playlists")
	return []models.Playlist{}
}

func (p *playlistService) Save(ctx context.Context, playlist *models.Playlist) bool {
	sources.Unsupported(p.logger, "save_playlist")
	return false
}

func (p *playlistService) Delete(ctx context.Context, id string) bool {
	sources.Unsupported(p.logger, "delete_playlist")
	return false
}

func (p *playlistService) AddSong(ctx context.Context, playlistID string, song models.Song) bool {
	sources.Unsupported(p.logger, "add_song")
	return false
}

func (p *playlistService) RemoveSong(ctx context.Context, playlistID, songID string) bool {
	sources.Unsupported(p.logger, "remove_song")
	return false
}

func (p *playlistService) Search(ctx context.Context, query string, maxResults int) []models.Playlist {
	if maxResults <= 0 {
		maxResults = p.maxResults
	}
	entries, err := p.client.SearchPlaylists(ctx, query, maxResults)
	if err != nil {
		p.logger.Warn("playlist search failed", "query", query, "error", err)
		return []models.Playlist{}
	}
	playlists := make([]models.Playlist, 0, len(entries))
	for _, e := range entries {
		playlists = append(playlists, toPlaylist(e, 0))
	}
	return playlists
}

func (p *playlistService) GetSongs(ctx context.Context, playlistID string) []models.Song {
	info, err := p.client.Playlist(ctx, playlistID, 0)
	if err != nil {
		p.logger.Warn("failed to load playlist songs", "id", playlistID, "error", err)
		return []models.Song{}
	}
	songs := toSongs(info.Entries, 0)
	for i := range songs {
		songs[i].PlaylistName = info.Title
	}
	return songs
}

var (
	_ sources.SearchService   = (*searchService)(nil)
	_ sources.MetadataService = (*metadataService)(nil)
	_ sources.DownloadService = (*downloadService)(nil)
	_ sources.PlaylistService = (*playlistService)(nil)
)
