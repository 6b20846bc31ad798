package youtube

import (
	"fmt"
	"slices"

	"github.com/desertthunder/mixdeck/internal/settings"
)

// BackendName names the source and its settings file.
const BackendName = "YouTube"

// AudioFormat is the extension requested when extracting audio.
type AudioFormat string

const (
	FormatM4A  AudioFormat = "m4a"
	FormatMP3  AudioFormat = "mp3"
	FormatOpus AudioFormat = "opus"
	FormatWebM AudioFormat = "webm"
)

var audioFormats = []string{string(FormatM4A), string(FormatMP3), string(FormatOpus), string(FormatWebM)}

// Quality caps the bitrate of selected streams.
type Quality string

const (
	QualityBest   Quality = "best"
	QualityHigh   Quality = "high"
	QualityMedium Quality = "medium"
	QualityLow    Quality = "low"
)

var qualities = []string{string(QualityBest), string(QualityHigh), string(QualityMedium), string(QualityLow)}

// Cap returns the highest acceptable bitrate in kbps, or 0 for no limit.
func (q Quality) Cap() int {
	switch q {
	case QualityHigh:
		return 192
	case QualityMedium:
		return 128
	case QualityLow:
		return 64
	default:
		return 0
	}
}

// AudioQuality is the --audio-quality argument for extraction.
func (q Quality) AudioQuality() string {
	if c := q.Cap(); c > 0 {
		return fmt.Sprintf("%dK", c)
	}
	return "0"
}

// Settings is persisted as YouTube.json.
type Settings struct {
	settings.Common
	Executable    string      `json:"executable"`
	AudioFormat   AudioFormat `json:"audio_format"`
	Quality       Quality     `json:"quality"`
	MaxResults    int         `json:"max_results"`
	HeadersFile   string      `json:"headers_file"`   // cURL capture whose headers are sent with every request
	SocketTimeout int         `json:"socket_timeout"` // Seconds
}

// DefaultSettings returns the settings of a fresh install.
func DefaultSettings() Settings {
	return Settings{
		Common:        settings.Common{IsEnabled: true},
		Executable:    "yt-dlp",
		AudioFormat:   FormatM4A,
		Quality:       QualityBest,
		MaxResults:    20,
		SocketTimeout: 15,
	}
}

func (Settings) Backend() string { return BackendName }

func (Settings) Schema() settings.Schema {
	return settings.Schema{
		settings.EnabledField(),
		{Name: "executable", Category: "Extraction", Label: "yt-dlp executable", Kind: settings.KindString, Default: "yt-dlp"},
		{Name: "audio_format", Category: "Audio", Label: "Audio format", Kind: settings.KindEnum, Default: string(FormatM4A), Options: audioFormats},
		{Name: "quality", Category: "Audio", Label: "Quality", Kind: settings.KindEnum, Default: string(QualityBest), Options: qualities},
		{Name: "max_results", Category: "Search", Label: "Max search results", Kind: settings.KindInt, Default: 20},
		{Name: "headers_file", Category: "Network", Label: "cURL headers file", Kind: settings.KindString, Default: ""},
		{Name: "socket_timeout", Category: "Network", Label: "Socket timeout (s)", Kind: settings.KindInt, Default: 15},
	}
}

func (s Settings) Validate() error {
	if !slices.Contains(audioFormats, string(s.AudioFormat)) {
		return fmt.Errorf("unknown audio_format %q", s.AudioFormat)
	}
	if !slices.Contains(qualities, string(s.Quality)) {
		return fmt.Errorf("unknown quality %q", s.Quality)
	}
	if s.MaxResults < 1 {
		return fmt.Errorf("max_results must be positive")
	}
	if s.SocketTimeout < 0 {
		return fmt.Errorf("socket_timeout must not be negative")
	}
	return nil
}
