package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/mixdeck/internal/models"
	"github.com/desertthunder/mixdeck/internal/shared"
	"github.com/desertthunder/mixdeck/internal/tasks"
)

// DownloadFunc performs one download, reporting progress through the given function.
type DownloadFunc func(ctx context.Context, progress models.ProgressFunc) tasks.SaveResult

// DownloadModel shows the progress of a single download: a spinner until bytes arrive, then a progress bar.
type DownloadModel struct {
	ctx     context.Context
	cancel  context.CancelFunc
	song    models.Song
	run     DownloadFunc
	events  chan models.DownloadProgress
	done    chan tasks.SaveResult
	spinner spinner.Model
	bar     progress.Model
	last    models.DownloadProgress
	result  *tasks.SaveResult
	help    help.Model
	keys    keyMap
}

// NewDownloadModel creates a view that runs run when started. Quitting cancels the download.
func NewDownloadModel(ctx context.Context, song models.Song, run DownloadFunc) *DownloadModel {
	ctx, cancel := context.WithCancel(ctx)
	return &DownloadModel{
		ctx:     ctx,
		cancel:  cancel,
		song:    song,
		run:     run,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.title.UnsetMarginBottom())),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		last:    models.StartingProgress(&song),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Result returns the outcome once the download finished, nil before.
func (m *DownloadModel) Result() *tasks.SaveResult { return m.result }

func (m *DownloadModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start())
}

func (m *DownloadModel) start() tea.Cmd {
	m.events = make(chan models.DownloadProgress, 16)
	m.done = make(chan tasks.SaveResult, 1)

	go func() {
		res := m.run(m.ctx, func(p models.DownloadProgress) {
			select {
			case m.events <- p:
			case <-m.ctx.Done():
			}
		})
		m.done <- res
		close(m.events)
	}()

	return m.waitForEvent()
}

func (m *DownloadModel) waitForEvent() tea.Cmd {
	events, done := m.events, m.done
	return func() tea.Msg {
		p, ok := <-events
		if !ok {
			return downloadCompleteMsg(<-done)
		}
		return downloadProgressMsg(p)
	}
}

func (m *DownloadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) {
			m.cancel()
			if m.result != nil {
				return m, tea.Quit
			}
			// Wait for the download goroutine to report the cancellation.
			return m, nil
		}
		if m.result != nil && key.Matches(msg, m.keys.enter) {
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-10, 10), 60)

	case spinner.TickMsg:
		if m.result != nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		switch msg.kind {
		case MsgDownloadProgress:
			m.last = msg.data.(models.DownloadProgress)
			return m, m.waitForEvent()
		case MsgDownloadComplete:
			res := msg.data.(tasks.SaveResult)
			m.result = &res
			m.cancel()
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *DownloadModel) View() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Downloading " + m.song.DisplayName()))
	b.WriteString("\n")

	if m.result != nil {
		b.WriteString(renderSaveResult(*m.result))
		b.WriteString("\n")
		return b.String()
	}

	switch {
	case m.last.Phase == models.PhaseDownloading && m.last.Total > 0:
		b.WriteString(m.bar.ViewAs(float64(m.last.Downloaded) / float64(m.last.Total)))
		fmt.Fprintf(&b, "\n%s / %s", shared.FormatBytes(m.last.Downloaded), shared.FormatBytes(m.last.Total))
	case m.last.Phase == models.PhaseDownloading:
		fmt.Fprintf(&b, "%s %s", m.spinner.View(), shared.FormatBytes(m.last.Downloaded))
	default:
		fmt.Fprintf(&b, "%s %s", m.spinner.View(), phaseStyle(m.last.Phase).Render(m.last.Status))
	}

	b.WriteString("\n\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.quit}))
	return b.String()
}

func renderSaveResult(res tasks.SaveResult) string {
	switch {
	case res.Err != nil:
		return styles.err.Render(fmt.Sprintf("✗ %v", res.Err))
	case res.Skipped:
		return styles.warn.Render(fmt.Sprintf("- Already downloaded: %s", res.Path))
	default:
		return styles.ok.Render(fmt.Sprintf("✓ Saved %s (%s)", res.Path, shared.FormatBytes(res.Bytes)))
	}
}
