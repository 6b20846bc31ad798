package models

import (
	"strings"
)

// Codec and container used when an extension is not in [codecTable].
const (
	DefaultCodec     = "aac"
	DefaultContainer = "mp4"
	DefaultExtension = "m4a"
)

type codecInfo struct {
	codec     string
	container string
}

var codecTable = map[string]codecInfo{
	"m4a":  {codec: "aac", container: "mp4"},
	"mp4":  {codec: "aac", container: "mp4"},
	"aac":  {codec: "aac", container: "adts"},
	"mp3":  {codec: "mp3", container: "mp3"},
	"ogg":  {codec: "vorbis", container: "ogg"},
	"oga":  {codec: "vorbis", container: "ogg"},
	"opus": {codec: "opus", container: "ogg"},
	"webm": {codec: "opus", container: "webm"},
	"flac": {codec: "flac", container: "flac"},
	"wav":  {codec: "pcm", container: "wav"},
}

// AudioStreamInfo describes one candidate audio stream of a [Song].
//
// URL is not necessarily fetchable over HTTP: sources may use pseudo-URIs such as "spotify:track:<id>".
type AudioStreamInfo struct {
	URL       string `json:"url"`
	Bitrate   int    `json:"bitrate_kbps"` // Zero when unknown
	Extension string `json:"ext"`
	Codec     string `json:"codec"`
	Container string `json:"container"`
}

// NewAudioStreamInfo builds an [AudioStreamInfo] and derives codec and container from the extension.
//
// Unknown extensions degrade to [DefaultCodec] in [DefaultContainer].
func NewAudioStreamInfo(url, ext string, bitrate int) AudioStreamInfo {
	ext = NormalizeExtension(ext)
	codec, container := CodecFor(ext)
	return AudioStreamInfo{
		URL:       url,
		Bitrate:   bitrate,
		Extension: ext,
		Codec:     codec,
		Container: container,
	}
}

// NormalizeExtension lowercases ext and strips a leading dot. Empty input yields [DefaultExtension].
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext == "" {
		return DefaultExtension
	}
	return ext
}

// CodecFor returns the codec and container for an extension.
func CodecFor(ext string) (codec, container string) {
	if info, ok := codecTable[NormalizeExtension(ext)]; ok {
		return info.codec, info.container
	}
	return DefaultCodec, DefaultContainer
}

// IsFetchable reports whether the stream URL can be fetched over HTTP.
func (a AudioStreamInfo) IsFetchable() bool {
	u := strings.ToLower(a.URL)
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

// BestStream returns the stream with the highest bitrate. Ties go to the earliest stream in the list.
// Returns nil for an empty list.
func BestStream(streams []AudioStreamInfo) *AudioStreamInfo {
	if len(streams) == 0 {
		return nil
	}

	best := 0
	for i := 1; i < len(streams); i++ {
		if streams[i].Bitrate > streams[best].Bitrate {
			best = i
		}
	}

	chosen := streams[best]
	return &chosen
}
