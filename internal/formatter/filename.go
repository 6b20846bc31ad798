package formatter

import (
	"strings"
	"unicode"

	"github.com/desertthunder/mixdeck/internal/models"
)

const maxFilenameLength = 180

// SafeFilename replaces path separators and characters that are invalid on common filesystems.
// Leading and trailing dots and spaces are trimmed; an empty result becomes "untitled".
func SafeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('_')
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}

	out := strings.Trim(b.String(), ". ")
	if r := []rune(out); len(r) > maxFilenameLength {
		out = strings.TrimSpace(string(r[:maxFilenameLength]))
	}
	if out == "" {
		return "untitled"
	}
	return out
}

// SongBasename is the output file name of a downloaded song without extension: "Artist - Title".
func SongBasename(song models.Song) string {
	name := song.DisplayName()
	if name == "" {
		name = song.ID
	}
	return SafeFilename(name)
}

// SongFilename is [SongBasename] with ext appended.
func SongFilename(song models.Song, ext string) string {
	return SongBasename(song) + "." + models.NormalizeExtension(ext)
}
