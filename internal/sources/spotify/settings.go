package spotify

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/desertthunder/mixdeck/internal/settings"
)

// BackendName names the source and its settings file.
const BackendName = "Spotify"

// Quality is a Spotify streaming tier in kbps.
type Quality string

const (
	QualityLow    Quality = "96"
	QualityNormal Quality = "160"
	QualityHigh   Quality = "320"
)

var qualities = []string{string(QualityLow), string(QualityNormal), string(QualityHigh)}

// Bitrate returns the tier in kbps.
func (q Quality) Bitrate() int {
	n, err := strconv.Atoi(string(q))
	if err != nil {
		return 0
	}
	return n
}

// AudioQuality is the --audio-quality argument for extraction.
func (q Quality) AudioQuality() string {
	if q.Bitrate() == 0 {
		return "0"
	}
	return string(q) + "K"
}

var audioFormats = []string{"mp3", "m4a", "opus"}

// Settings is persisted as Spotify.json.
type Settings struct {
	settings.Common
	ClientID          string  `json:"client_id"`
	ClientSecret      string  `json:"client_secret"`
	RedirectURI       string  `json:"redirect_uri"`
	RefreshToken      string  `json:"refresh_token"`
	Market            string  `json:"market"`
	Quality           Quality `json:"quality"`
	AudioFormat       string  `json:"audio_format"`
	Executable        string  `json:"executable"`
	RequestsPerSecond float64 `json:"requests_per_second"`
}

// DefaultRedirectURI matches the local callback server.
const DefaultRedirectURI = "http://127.0.0.1:8888/callback"

// DefaultSettings returns the settings of a fresh install.
func DefaultSettings() Settings {
	return Settings{
		Common:            settings.Common{IsEnabled: true},
		RedirectURI:       DefaultRedirectURI,
		Market:            "US",
		Quality:           QualityHigh,
		AudioFormat:       "mp3",
		Executable:        "yt-dlp",
		RequestsPerSecond: 5,
	}
}

func (Settings) Backend() string { return BackendName }

func (Settings) Schema() settings.Schema {
	return settings.Schema{
		settings.EnabledField(),
		{Name: "client_id", Category: "Authentication", Label: "Client ID", Kind: settings.KindString, Default: ""},
		{Name: "client_secret", Category: "Authentication", Label: "Client secret", Kind: settings.KindSecret, Default: ""},
		{Name: "redirect_uri", Category: "Authentication", Label: "Redirect URI", Kind: settings.KindString, Default: DefaultRedirectURI},
		{Name: "refresh_token", Category: "Authentication", Label: "Refresh token", Kind: settings.KindSecret, Default: ""},
		{Name: "market", Category: "Catalog", Label: "Market", Kind: settings.KindString, Default: "US"},
		{Name: "quality", Category: "Audio", Label: "Quality (kbps)", Kind: settings.KindEnum, Default: string(QualityHigh), Options: qualities},
		{Name: "audio_format", Category: "Audio", Label: "Audio format", Kind: settings.KindEnum, Default: "mp3", Options: audioFormats},
		{Name: "executable", Category: "Extraction", Label: "yt-dlp executable", Kind: settings.KindString, Default: "yt-dlp"},
		{Name: "requests_per_second", Category: "Network", Label: "API requests per second", Kind: settings.KindFloat, Default: 5.0},
	}
}

func (s Settings) Validate() error {
	if !slices.Contains(qualities, string(s.Quality)) {
		return fmt.Errorf("unknown quality %q", s.Quality)
	}
	if !slices.Contains(audioFormats, s.AudioFormat) {
		return fmt.Errorf("unknown audio_format %q", s.AudioFormat)
	}
	if s.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}
	return nil
}

// HasCredentials reports whether the client ID and secret are set.
func (s Settings) HasCredentials() bool {
	return s.ClientID != "" && s.ClientSecret != ""
}
