package spotify

import (
	"strings"
	"time"

	"github.com/desertthunder/mixdeck/internal/models"
)

const (
	trackURIPrefix = "spotify:track:"
	openTrackURL   = "https://open.spotify.com/track/"
)

// TrackURI returns the pseudo-URI of a track.
func TrackURI(id string) string { return trackURIPrefix + id }

// TrackID extracts the track ID from a pseudo-URI.
func TrackID(uri string) (string, bool) {
	id, ok := strings.CutPrefix(uri, trackURIPrefix)
	return id, ok && id != ""
}

func artistNames(artists []Artist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

func largestImage(images []Image) string {
	best, width := "", -1
	for _, img := range images {
		if img.Width > width {
			best, width = img.URL, img.Width
		}
	}
	return best
}

func toSong(t Track) models.Song {
	source := t.ExternalURLs.Spotify
	if source == "" {
		source = openTrackURL + t.ID
	}
	return models.Song{
		ID:           t.ID,
		Title:        t.Name,
		Artist:       artistNames(t.Artists),
		Album:        t.Album.Name,
		Duration:     time.Duration(t.DurationMS) * time.Millisecond,
		ThumbnailURL: largestImage(t.Album.Images),
		SourceURL:    source,
		Source:       BackendName,
	}
}

func toSongs(tracks []Track) []models.Song {
	songs := make([]models.Song, 0, len(tracks))
	for _, t := range tracks {
		songs = append(songs, toSong(t))
	}
	return songs
}

func toPlaylist(p Playlist) models.Playlist {
	return models.Playlist{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		ThumbnailURL: largestImage(p.Images),
		SongCount:    p.Tracks.Total,
		Source:       BackendName,
		Public:       p.Public,
	}
}

func toPlaylists(playlists []Playlist) []models.Playlist {
	out := make([]models.Playlist, 0, len(playlists))
	for _, p := range playlists {
		out = append(out, toPlaylist(p))
	}
	return out
}

// syntheticStream is the single stream of a track: its pseudo-URI at the configured tier.
func syntheticStream(id string, q Quality, format string) models.AudioStreamInfo {
	return models.NewAudioStreamInfo(TrackURI(id), format, q.Bitrate())
}

// searchQuery is the extraction search expression for a song.
func searchQuery(song models.Song) string {
	query := song.Title
	if song.Artist != "" {
		query = song.Artist + " - " + song.Title
	}
	return "ytsearch1:" + query
}
