package formatter

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/mixdeck/internal/models"
	"github.com/desertthunder/mixdeck/internal/settings"
	"github.com/desertthunder/mixdeck/internal/shared"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

// maxCellWidth truncates long titles so tables fit a terminal.
const maxCellWidth = 48

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

// Truncate shortens s to n runes, ending with an ellipsis when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

// SongsTable renders songs with their position, which CLI commands accept as a selector.
func SongsTable(songs []models.Song) string {
	t := newTable("#", "Title", "Artist", "Album", "Duration", "ID")
	for i, s := range songs {
		t.Row(
			strconv.Itoa(i+1),
			Truncate(s.Title, maxCellWidth),
			Truncate(s.Artist, maxCellWidth/2),
			Truncate(s.Album, maxCellWidth/2),
			shared.FormatDuration(s.Duration),
			s.ID,
		)
	}
	return t.String()
}

func PlaylistsTable(playlists []models.Playlist) string {
	t := newTable("#", "Name", "Songs", "Visibility", "ID")
	for i, p := range playlists {
		t.Row(
			strconv.Itoa(i+1),
			Truncate(p.Name, maxCellWidth),
			strconv.Itoa(p.SongCount),
			shared.VisibilityString(p.Public),
			p.ID,
		)
	}
	return t.String()
}

// StreamsTable marks the stream at index best with an asterisk. Pass -1 to mark none.
func StreamsTable(streams []models.AudioStreamInfo, best int) string {
	t := newTable("", "Bitrate", "Ext", "Codec", "Container", "URL")
	for i, s := range streams {
		marker := ""
		if i == best {
			marker = "*"
		}
		bitrate := "?"
		if s.Bitrate > 0 {
			bitrate = fmt.Sprintf("%d kbps", s.Bitrate)
		}
		t.Row(marker, bitrate, s.Extension, s.Codec, s.Container, Truncate(s.URL, maxCellWidth))
	}
	return t.String()
}

// HistoryTable renders download records, newest first as stored.
func HistoryTable(records []*models.DownloadRecord) string {
	t := newTable("When", "Source", "Song", "Status", "Size", "Path / Error")
	for _, r := range records {
		detail := r.OutputPath()
		if r.Status() == models.DownloadFailed {
			detail = r.Error()
		}
		size := ""
		if r.Bytes() > 0 {
			size = shared.FormatBytes(r.Bytes())
		}
		t.Row(
			r.CreatedAt().Format("2006-01-02 15:04"),
			r.Source(),
			Truncate(r.Title(), maxCellWidth),
			string(r.Status()),
			size,
			Truncate(detail, maxCellWidth),
		)
	}
	return t.String()
}

// SourceRow is one line of [SourcesTable].
type SourceRow struct {
	Name         string
	State        string
	Capabilities []string
}

func SourcesTable(rows []SourceRow) string {
	t := newTable("Source", "State", "Capabilities")
	for _, r := range rows {
		caps := "-"
		if len(r.Capabilities) > 0 {
			caps = fmt.Sprint(r.Capabilities)
		}
		t.Row(r.Name, r.State, caps)
	}
	return t.String()
}

// SettingsTable renders settings entries with secrets masked.
func SettingsTable(entries []settings.Entry) string {
	t := newTable("Category", "Key", "Value")
	for _, e := range entries {
		t.Row(e.Category, e.Name, Truncate(e.Display(), maxCellWidth))
	}
	return t.String()
}
