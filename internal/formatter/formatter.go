// package formatter renders songs, playlists and streams for the CLI and exports playlists to files
// (CSV, Markdown, JSON, plain text)
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/desertthunder/mixdeck/internal/models"
	"github.com/desertthunder/mixdeck/internal/shared"
)

// Export formats accepted by [WriteExport].
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
)

// Formats lists the export formats in the order shown in help text.
var Formats = []string{FormatJSON, FormatCSV, FormatMarkdown, FormatText}

// SongRecord is the serialized form of a [models.Song].
type SongRecord struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	Title     string `json:"title"`
	Artist    string `json:"artist,omitempty"`
	Album     string `json:"album,omitempty"`
	Duration  int    `json:"duration_seconds"`
	SourceURL string `json:"url,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// PlaylistRecord is the serialized form of a [models.Playlist].
type PlaylistRecord struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	SongCount   int    `json:"song_count"`
	Public      bool   `json:"public"`
	Thumbnail   string `json:"thumbnail,omitempty"`
}

// ExportRecord is the JSON export of a playlist.
type ExportRecord struct {
	Playlist PlaylistRecord `json:"playlist"`
	Songs    []SongRecord   `json:"songs"`
}

func ToSongRecord(s models.Song) SongRecord {
	return SongRecord{
		ID:        s.ID,
		Source:    s.Source,
		Title:     s.Title,
		Artist:    s.Artist,
		Album:     s.Album,
		Duration:  int(s.Duration / time.Second),
		SourceURL: s.SourceURL,
		Thumbnail: s.ThumbnailURL,
	}
}

func ToSongRecords(songs []models.Song) []SongRecord {
	records := make([]SongRecord, len(songs))
	for i, s := range songs {
		records[i] = ToSongRecord(s)
	}
	return records
}

func ToPlaylistRecord(p models.Playlist) PlaylistRecord {
	return PlaylistRecord{
		ID:          p.ID,
		Source:      p.Source,
		Name:        p.Name,
		Description: p.Description,
		SongCount:   p.SongCount,
		Public:      p.Public,
		Thumbnail:   p.ThumbnailURL,
	}
}

func ToPlaylistRecords(playlists []models.Playlist) []PlaylistRecord {
	records := make([]PlaylistRecord, len(playlists))
	for i, p := range playlists {
		records[i] = ToPlaylistRecord(p)
	}
	return records
}

// ExportToCSV converts a PlaylistExport to CSV format with columns: ID, Title, Artist, Album, Duration, Source, URL
func ExportToCSV(export *models.PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artist", "Album", "Duration", "Source", "URL"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, song := range export.Songs {
		record := []string{
			song.ID,
			song.Title,
			song.Artist,
			song.Album,
			strconv.Itoa(int(song.Duration / time.Second)),
			song.Source,
			song.SourceURL,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a PlaylistExport to Markdown format with optional cover image
func ExportToMarkdown(export *models.PlaylistExport, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", export.Playlist.Name)

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}

	if export.Playlist.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", export.Playlist.Description)
	}

	fmt.Fprintf(&buf, "**Source**: %s\n", export.Playlist.Source)
	fmt.Fprintf(&buf, "**Songs**: %d\n", len(export.Songs))
	fmt.Fprintf(&buf, "**Visibility**: %s\n\n", shared.VisibilityString(export.Playlist.Public))

	buf.WriteString("## Songs\n\n")
	for i, song := range export.Songs {
		albumPart := ""
		if song.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", song.Album)
		}
		fmt.Fprintf(&buf, "%d. %s%s [%s]\n", i+1, song.DisplayName(), albumPart, shared.FormatDuration(song.Duration))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a PlaylistExport to plain text format
func ExportToText(export *models.PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", export.Playlist.Name)
	if export.Playlist.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", export.Playlist.Description)
	}
	fmt.Fprintf(&buf, "Songs: %d\n\n", len(export.Songs))

	for i, song := range export.Songs {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, song.DisplayName())
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts a PlaylistExport to indented JSON
func ExportToJSON(export *models.PlaylistExport) ([]byte, error) {
	return shared.MarshalJSON(ExportRecord{
		Playlist: ToPlaylistRecord(export.Playlist),
		Songs:    ToSongRecords(export.Songs),
	}, true)
}

// ToMetadataJSON generates a JSON representation of playlist metadata (without songs)
func ToMetadataJSON(playlist models.Playlist) ([]byte, error) {
	return shared.MarshalJSON(ToPlaylistRecord(playlist), true)
}

// DownloadImage downloads an image from the given URL and returns the raw bytes.
// A nil client uses a default client with a 30 second timeout.
func DownloadImage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// WriteJSONFile writes v as indented JSON to path.
func WriteJSONFile(v any, path string) error {
	data, err := shared.MarshalJSON(v, true)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ExportResult lists the files created by [WriteExport].
type ExportResult struct {
	Format     string
	Files      []string
	CoverImage string
}

// ExportOpts configures [WriteExport].
type ExportOpts struct {
	Format     string       // One of [Formats]; defaults to JSON
	OutputDir  string       // Directory receiving the files; created when missing
	HTTPClient *http.Client // Used for the Markdown cover image
}

// WriteExport writes a playlist export to opts.OutputDir. Files are named after the playlist ID:
//
//   - json: {id}.json
//   - csv: {id}_songs.csv and {id}_metadata.json
//   - markdown: {id}/README.md and, when the playlist has a thumbnail, {id}/cover.jpg
//   - txt: {id}_songs.txt
func WriteExport(ctx context.Context, export *models.PlaylistExport, opts ExportOpts) (*ExportResult, error) {
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	if opts.Format == "" {
		opts.Format = FormatJSON
	}
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	base := filepath.Join(opts.OutputDir, SafeFilename(export.Playlist.ID))
	result := &ExportResult{Format: opts.Format}

	switch opts.Format {
	case FormatCSV:
		csvData, err := ExportToCSV(export)
		if err != nil {
			return nil, fmt.Errorf("failed to generate CSV: %w", err)
		}
		songsFile := base + "_songs.csv"
		if err := os.WriteFile(songsFile, csvData, 0644); err != nil {
			return nil, fmt.Errorf("failed to write CSV file: %w", err)
		}

		metadataJSON, err := ToMetadataJSON(export.Playlist)
		if err != nil {
			return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
		}
		metadataFile := base + "_metadata.json"
		if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
			return nil, fmt.Errorf("failed to write metadata file: %w", err)
		}
		result.Files = []string{songsFile, metadataFile}

	case FormatMarkdown:
		if err := os.MkdirAll(base, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}

		var coverFilename string
		if url := export.Playlist.ThumbnailURL; url != "" {
			// A missing cover is not fatal.
			if imageData, err := DownloadImage(ctx, opts.HTTPClient, url); err == nil {
				coverPath := filepath.Join(base, "cover.jpg")
				if err := os.WriteFile(coverPath, imageData, 0644); err == nil {
					coverFilename = "cover.jpg"
					result.CoverImage = coverPath
					result.Files = append(result.Files, coverPath)
				}
			}
		}

		mdData, err := ExportToMarkdown(export, coverFilename)
		if err != nil {
			return nil, fmt.Errorf("failed to generate Markdown: %w", err)
		}
		mdFile := filepath.Join(base, "README.md")
		if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
			return nil, fmt.Errorf("failed to write Markdown file: %w", err)
		}
		result.Files = append(result.Files, mdFile)

	case FormatText:
		textData, err := ExportToText(export)
		if err != nil {
			return nil, fmt.Errorf("failed to generate text: %w", err)
		}
		textFile := base + "_songs.txt"
		if err := os.WriteFile(textFile, textData, 0644); err != nil {
			return nil, fmt.Errorf("failed to write text file: %w", err)
		}
		result.Files = []string{textFile}

	case FormatJSON:
		jsonData, err := ExportToJSON(export)
		if err != nil {
			return nil, fmt.Errorf("failed to generate JSON: %w", err)
		}
		jsonFile := base + ".json"
		if err := os.WriteFile(jsonFile, jsonData, 0644); err != nil {
			return nil, fmt.Errorf("failed to write JSON file: %w", err)
		}
		result.Files = []string{jsonFile}

	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, opts.Format)
	}

	return result, nil
}
