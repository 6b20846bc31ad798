package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/mixdeck/internal/formatter"
	"github.com/desertthunder/mixdeck/internal/models"
	"github.com/desertthunder/mixdeck/internal/shared"
	"github.com/desertthunder/mixdeck/internal/sources"
	"github.com/desertthunder/mixdeck/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	SongListView
	ConfirmView
	BatchView
	ResultView
)

// Model is the playlist browser: pick a playlist, preview its songs and download them all.
type Model struct {
	ctx          context.Context
	cancel       context.CancelFunc
	view         ViewState
	source       string
	playlists    sources.PlaylistService
	downloads    sources.DownloadService
	engine       *tasks.Engine
	opts         tasks.BatchOpts
	width        int
	height       int
	playlistList list.Model
	songList     list.Model
	selected     *models.PlaylistExport
	progressChan chan tasks.ProgressUpdate
	resultChan   chan batchComplete
	progress     tasks.ProgressUpdate
	current      map[int]models.DownloadProgress // In-flight songs by step
	completed    int
	bar          progress.Model
	result       *tasks.BatchResult
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model for one source.
func NewModel(ctx context.Context, source string, pl sources.PlaylistService, dl sources.DownloadService, engine *tasks.Engine, opts tasks.BatchOpts) *Model {
	ctx, cancel := context.WithCancel(ctx)
	return &Model{
		ctx:          ctx,
		cancel:       cancel,
		view:         PlaylistListView,
		playlistList: newList(fmt.Sprintf("%s Playlists", source)),
		songList:     newList("Songs"),
		source:       source,
		playlists:    pl,
		downloads:    dl,
		engine:       engine,
		opts:         opts,
		bar:          progress.New(progress.WithDefaultGradient(), progress.WithWidth(50)),
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

// Init initializes the TUI by fetching the user's playlists.
func (m *Model) Init() tea.Cmd {
	return m.fetchPlaylists()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeLists()
		m.bar.Width = min(max(msg.Width-10, 10), 80)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case SongListView:
			return m.handleSongListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case BatchView:
			if key.Matches(msg, m.keys.quit) {
				m.cancel()
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsFetched:
		data := msg.data.(playlistsFetched)
		if data.err != nil {
			m.err = data.err
			return m, tea.Quit
		}
		items := make([]list.Item, len(data.playlists))
		for i, pl := range data.playlists {
			items[i] = playlistItem{playlist: pl}
		}
		cmd := m.playlistList.SetItems(items)
		m.resizeLists()
		return m, cmd

	case MsgSongsFetched:
		data := msg.data.(songsFetched)
		if data.err != nil {
			m.err = data.err
			m.view = PlaylistListView
			return m, nil
		}
		m.err = nil
		m.selected = data.export
		items := make([]list.Item, len(data.export.Songs))
		for i, song := range data.export.Songs {
			items[i] = songItem{song: song}
		}
		m.songList.ResetSelected()
		cmd := m.songList.SetItems(items)
		m.songList.Title = fmt.Sprintf("Songs in '%s'", data.export.Playlist.Name)
		m.resizeLists()
		m.view = SongListView
		return m, cmd

	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		m.progress = update
		switch update.Phase {
		case tasks.DownloadSong:
			if p, ok := update.Data.(models.DownloadProgress); ok {
				if p.Phase.Terminal() {
					delete(m.current, update.Step)
				} else {
					m.current[update.Step] = p
				}
			}
		case tasks.Summary:
			m.completed = update.Step
		}
		return m, m.waitForProgress()

	case MsgBatchComplete:
		data := msg.data.(batchComplete)
		m.result = data.result
		m.err = data.err
		m.view = ResultView
		m.progressChan = nil
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case PlaylistListView:
		return m.renderPlaylistList()
	case SongListView:
		return m.renderSongList()
	case ConfirmView:
		return m.renderConfirm()
	case BatchView:
		return m.renderBatch()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		m.cancel()
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if pl, ok := m.playlistList.SelectedItem().(playlistItem); ok {
			return m, m.fetchSongs(pl.playlist.ID)
		}
	}

	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

func (m *Model) handleSongListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		m.cancel()
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = PlaylistListView
		return m, nil
	case key.Matches(msg, m.keys.enter):
		m.view = ConfirmView
		return m, nil
	}

	var cmd tea.Cmd
	m.songList, cmd = m.songList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit), key.Matches(msg, m.keys.no):
		m.view = SongListView
		return m, nil
	case key.Matches(msg, m.keys.yes):
		m.view = BatchView
		return m, m.startBatch()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		m.cancel()
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = PlaylistListView
		m.selected = nil
		m.result = nil
		m.err = nil
		return m, nil
	}
	return m, nil
}

// resizeLists fits both lists to the last known window size.
func (m *Model) resizeLists() {
	w, h := max(m.width-4, 0), max(m.height-8, 0)
	m.playlistList.SetSize(w, h)
	m.songList.SetSize(w, h)
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case PlaylistListView:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case SongListView:
		m.songList, cmd = m.songList.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchPlaylists() tea.Cmd {
	ctx, pl := m.ctx, m.playlists
	return func() tea.Msg {
		if pl == nil {
			return playlistsFetchedMsg(nil, fmt.Errorf("%w: playlists", shared.ErrNotSupported))
		}
		return playlistsFetchedMsg(pl.LoadUserPlaylists(ctx), nil)
	}
}

func (m *Model) fetchSongs(playlistID string) tea.Cmd {
	ctx, pl := m.ctx, m.playlists
	return func() tea.Msg {
		playlist, ok := pl.Load(ctx, playlistID)
		if !ok {
			return songsFetchedMsg(nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID))
		}
		return songsFetchedMsg(&models.PlaylistExport{Playlist: *playlist, Songs: pl.GetSongs(ctx, playlistID)}, nil)
	}
}

func (m *Model) startBatch() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 64)
	m.resultChan = make(chan batchComplete, 1)
	m.current = make(map[int]models.DownloadProgress)
	m.completed = 0

	prog, done := m.progressChan, m.resultChan
	id := m.selected.Playlist.ID
	go func() {
		result, err := m.engine.Batch(m.ctx, prog, m.playlists, m.downloads, id, m.opts)
		done <- batchComplete{result, err}
		close(prog)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	prog, done := m.progressChan, m.resultChan
	return func() tea.Msg {
		update, ok := <-prog
		if !ok {
			res := <-done
			return batchCompleteMsg(res.result, res.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderPlaylistList() string {
	return fmt.Sprintf("%s\n\n%s", m.playlistList.View(), m.help.ShortHelpView(m.keys.bindings(PlaylistListView)))
}

func (m *Model) renderSongList() string {
	return fmt.Sprintf("%s\n\n%s", m.songList.View(), m.help.ShortHelpView(m.keys.bindings(SongListView)))
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Download '%s'?", m.selected.Playlist.Name))
	dir := m.opts.OutputDir
	if dir == "" {
		dir = filepath.Join(m.opts.BaseDir, formatter.SafeFilename(m.selected.Playlist.Name))
	}
	info := fmt.Sprintf("\nPlaylist: %s\nSongs: %d\nOutput: %s\n", m.selected.Playlist.Name, len(m.selected.Songs), dir)

	return fmt.Sprintf("%s\n%s\n%s", title, info, m.help.ShortHelpView(m.keys.bindings(ConfirmView)))
}

func (m *Model) renderBatch() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Downloading Playlist"))
	b.WriteString("\n")

	total := m.progress.Total
	if total > 0 {
		b.WriteString(m.bar.ViewAs(float64(m.completed) / float64(total)))
		fmt.Fprintf(&b, "  %d/%d\n\n", m.completed, total)
	}

	for step := 1; step <= total; step++ {
		p, ok := m.current[step]
		if !ok {
			continue
		}
		name := ""
		if p.Song != nil {
			name = p.Song.DisplayName()
		}
		fmt.Fprintf(&b, "  %s %s\n", phaseStyle(p.Phase).Render(fmt.Sprintf("%-12s", p.Status)), name)
	}

	if m.progress.Phase == tasks.Summary || m.progress.Phase == tasks.LoadPlaylist {
		fmt.Fprintf(&b, "\n%s\n", styles.help.Render(m.progress.Message))
	}
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView(m.keys.bindings(BatchView)))
	return b.String()
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView(m.keys.bindings(ResultView))

	if m.result == nil {
		msg := "No result available"
		if m.err != nil {
			msg = fmt.Sprintf("Download failed: %v", m.err)
		}
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(msg), helpView)
	}

	title := styles.ok.Render("✓ Download Complete!")
	if m.err != nil {
		title = styles.warn.Render(fmt.Sprintf("Download interrupted: %v", m.err))
	}
	info := fmt.Sprintf(
		"\nPlaylist: %s\nSaved: %d  Skipped: %d  Failed: %d  (of %d)\nOutput: %s",
		m.result.Playlist.Name,
		m.result.Succeeded,
		m.result.Skipped,
		m.result.Failed,
		m.result.Total,
		m.result.OutputDirectory,
	)

	var failed string
	if m.result.Failed > 0 {
		failed = fmt.Sprintf("\n\n%s", styles.warn.Render(fmt.Sprintf("Failed to download %d songs:", m.result.Failed)))
		for _, res := range m.result.Results {
			if res.Err != nil {
				failed += fmt.Sprintf("\n  • %s: %v", res.Song.DisplayName(), res.Err)
			}
		}
	}

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, failed, helpView)
}
