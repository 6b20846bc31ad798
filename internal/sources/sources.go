package sources

import (
	"context"
	"io"
	"net/http"

	"github.com/desertthunder/mixdeck/internal/models"
)

// Capability names a service family exposed by a provider.
type Capability string

const (
	CapabilitySearch    Capability = "SearchService"
	CapabilityMetadata  Capability = "MetadataService"
	CapabilityDownload  Capability = "DownloadService"
	CapabilityPlaylists Capability = "PlaylistService"
)

// SearchService finds songs and playlists.
//
// Backend failures never surface as errors: the result is empty and the failure is available from LastError.
type SearchService interface {
	Search(ctx context.Context, query string, maxResults int) []models.Song
	SearchByArtist(ctx context.Context, artist string, maxResults int) []models.Song
	SearchByPlaylist(ctx context.Context, playlistID string, maxResults int) []models.Song
	SearchPlaylists(ctx context.Context, query string, maxResults int) []models.Playlist
	LastError() error
}

// MetadataService resolves song details and stream candidates. Unlike search, it fails loudly.
type MetadataService interface {
	GetSongMetadata(ctx context.Context, id string) (*models.Song, error)
	GetAudioStreams(ctx context.Context, id string) ([]models.AudioStreamInfo, error)
	// GetBestAudioStream applies the backend's selection policy.
	GetBestAudioStream(ctx context.Context, id string) (*models.AudioStreamInfo, error)
}

// DownloadService downloads songs to local files or opens them for streaming.
type DownloadService interface {
	// DownloadAudio writes the song to a new temporary file and returns its path.
	DownloadAudio(ctx context.Context, song models.Song, progress models.ProgressFunc) (string, error)
	GetAudioStream(ctx context.Context, stream models.AudioStreamInfo) (io.ReadCloser, error)
	// GetContentLength returns -1 when the size is unknown.
	GetContentLength(ctx context.Context, url string) (int64, error)
	SupportsDirectStreaming() bool
}

// PlaylistService manages playlists. Operations a backend cannot perform return false or an empty result.
type PlaylistService interface {
	Load(ctx context.Context, id string) (*models.Playlist, bool)
	LoadUserPlaylists(ctx context.Context) []models.Playlist
	Save(ctx context.Context, playlist *models.Playlist) bool
	Delete(ctx context.Context, id string) bool
	AddSong(ctx context.Context, playlistID string, song models.Song) bool
	RemoveSong(ctx context.Context, playlistID, songID string) bool
	Search(ctx context.Context, query string, maxResults int) []models.Playlist
	GetSongs(ctx context.Context, playlistID string) []models.Song
}

// Services is the set of capability services built by a successful setup.
type Services struct {
	Search    SearchService
	Metadata  MetadataService
	Download  DownloadService
	Playlists PlaylistService
}

// Provider is a music backend.
type Provider interface {
	Name() string
	// Initialize runs setup once. Ordinary failures leave the provider Degraded and return nil; only cancellation
	// is returned.
	Initialize(ctx context.Context) error
	State() State
	IsAvailable() bool
	Search() (SearchService, error)
	Metadata() (MetadataService, error)
	Download() (DownloadService, error)
	Playlists() (PlaylistService, error)
	Close() error
}

// Options configure the download behavior shared by every provider.
type Options struct {
	MaxRetries int
	TempDir    string       // os.TempDir() when empty
	HTTPClient *http.Client // Used for direct streaming; a default client when nil
}
