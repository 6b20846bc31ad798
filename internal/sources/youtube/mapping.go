package youtube

import (
	"math"
	"time"

	"github.com/desertthunder/mixdeck/internal/models"
)

func (e entry) artist() string {
	switch {
	case e.Artist != "":
		return e.Artist
	case e.Uploader != "":
		return e.Uploader
	default:
		return e.Channel
	}
}

func (e entry) thumbnail() string {
	if e.Thumbnail != "" {
		return e.Thumbnail
	}
	best := ""
	width := -1
	for _, t := range e.Thumbnails {
		if t.Width > width {
			best, width = t.URL, t.Width
		}
	}
	return best
}

func toSong(e entry) models.Song {
	title := e.Title
	if e.Track != "" {
		title = e.Track
	}
	return models.Song{
		ID:           e.ID,
		Title:        title,
		Artist:       e.artist(),
		Album:        e.Album,
		Duration:     time.Duration(e.Duration * float64(time.Second)),
		ThumbnailURL: e.thumbnail(),
		SourceURL:    WatchURL(e.ID),
		Description:  e.Description,
		Source:       BackendName,
	}
}

func toSongs(entries []entry, limit int) []models.Song {
	songs := make([]models.Song, 0, len(entries))
	for _, e := range entries {
		if limit > 0 && len(songs) == limit {
			break
		}
		songs = append(songs, toSong(e))
	}
	return songs
}

func toPlaylist(e entry, count int) models.Playlist {
	if count == 0 {
		count = e.PlaylistCount
	}
	return models.Playlist{
		ID:           e.ID,
		Name:         e.Title,
		Description:  e.Description,
		ThumbnailURL: e.thumbnail(),
		SongCount:    count,
		Source:       BackendName,
		Public:       true,
	}
}

// audioStreams lists formats that carry audio and have a direct HTTP URL, in yt-dlp's order.
func audioStreams(v *video) []models.AudioStreamInfo {
	var streams []models.AudioStreamInfo
	for _, f := range v.Formats {
		if f.ACodec == "" || f.ACodec == "none" {
			continue
		}
		s := models.NewAudioStreamInfo(f.URL, f.Ext, int(math.Round(f.ABR)))
		if !s.IsFetchable() {
			continue
		}
		s.Codec = normalizeCodec(f.ACodec, s.Codec)
		streams = append(streams, s)
	}
	return streams
}

// normalizeCodec maps yt-dlp codec strings such as "mp4a.40.2" to plain codec names.
func normalizeCodec(acodec, fallback string) string {
	switch {
	case len(acodec) >= 4 && acodec[:4] == "mp4a":
		return "aac"
	case acodec == "opus", acodec == "vorbis", acodec == "mp3", acodec == "flac":
		return acodec
	default:
		return fallback
	}
}

// selectStream picks the best stream within the quality cap. When every stream exceeds the cap the lowest bitrate
// stream is used.
func selectStream(streams []models.AudioStreamInfo, q Quality) *models.AudioStreamInfo {
	limit := q.Cap()
	if limit == 0 {
		return models.BestStream(streams)
	}

	var within []models.AudioStreamInfo
	for _, s := range streams {
		if s.Bitrate <= limit {
			within = append(within, s)
		}
	}
	if len(within) > 0 {
		return models.BestStream(within)
	}

	if len(streams) == 0 {
		return nil
	}
	lowest := streams[0]
	for _, s := range streams[1:] {
		if s.Bitrate < lowest.Bitrate {
			lowest = s
		}
	}
	return &lowest
}
