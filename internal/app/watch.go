package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/postale/postale/internal/sync"
	"github.com/postale/postale/internal/theme"
)

// syncResultMsg is a tea.Msg carrying one poller result.
type syncResultMsg sync.SyncResult

// statusSource is the part of the poller the watch view reads.
type statusSource interface {
	Results() <-chan sync.SyncResult
	Statuses() []sync.SyncStatus
	Trigger()
}

// watchModel shows live sync status for fetch --watch.
type watchModel struct {
	poller  statusSource
	spinner spinner.Model
	last    map[string]sync.SyncResult
}

func newWatchModel(p statusSource) watchModel {
	return watchModel{
		poller:  p,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(lipgloss.NewStyle().Foreground(theme.ColorYellow))),
		last:    make(map[string]sync.SyncResult),
	}
}

// waitForResult returns a tea.Cmd that waits for the next poller result.
func waitForResult(p statusSource) tea.Cmd {
	return func() tea.Msg {
		res, ok := <-p.Results()
		if !ok {
			return nil
		}
		return syncResultMsg(res)
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForResult(m.poller))
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			m.poller.Trigger()
		}
		return m, nil
	case syncResultMsg:
		m.last[msg.Address] = sync.SyncResult(msg)
		return m, waitForResult(m.poller)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(theme.HeaderStyle.Render("Fetching mail"))
	b.WriteString("\n\n")

	statuses := m.poller.Statuses()
	if len(statuses) == 0 {
		b.WriteString(m.spinner.View() + " starting\n")
	}
	for _, st := range statuses {
		marker := theme.SyncStateStyle(st.State.String()).Render("●")
		if st.State == sync.SyncRunning {
			marker = m.spinner.View()
		}

		detail := ""
		if res, ok := m.last[st.Address]; ok {
			if res.Error != nil {
				detail = theme.ErrorStyle.Render(res.Error.Error())
			} else {
				detail = fmt.Sprintf("%d new", res.Saved)
			}
		}
		if !st.LastSync.IsZero() {
			detail += theme.HelpStyle.Render("  last sync " + st.LastSync.Format("15:04:05"))
		}
		fmt.Fprintf(&b, "%s %s  %s\n", marker, st.Address, detail)
	}

	b.WriteString("\n")
	b.WriteString(theme.HelpStyle.Render("r refresh • q quit"))
	b.WriteString("\n")
	return b.String()
}

// runWatchView runs the live view until the user quits or ctx ends.
func (a *App) runWatchView(ctx context.Context, p statusSource) error {
	prog := tea.NewProgram(newWatchModel(p), tea.WithContext(ctx), tea.WithOutput(a.out))
	if _, err := prog.Run(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("running watch view: %w", err)
	}
	return nil
}
