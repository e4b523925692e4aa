// Package ui renders scan, selection and deletion progress in the terminal.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fenilsonani/reclaim/internal/progress"
	"github.com/fenilsonani/reclaim/internal/session"
	"github.com/fenilsonani/reclaim/internal/ui/styles"
	"github.com/fenilsonani/reclaim/pkg/utils"
)

// pollInterval backs up the subscription, which may drop updates
const pollInterval = 250 * time.Millisecond

// ScanController is the part of the engine a scan view drives
type ScanController interface {
	Progress(h session.Handle) (session.Progress, error)
	Cancel(h session.Handle) error
}

type scanUpdateMsg struct {
	update *progress.ScanProgress
}

type pollMsg struct{}

// ScanModel shows a spinner and live counters for one scan session
type ScanModel struct {
	ctrl    ScanController
	handle  session.Handle
	title   string
	updates <-chan interface{}

	spinner   spinner.Model
	progress  session.Progress
	err       error
	cancelled bool
	width     int
	height    int
}

// NewScanModel creates a scan view. updates is an engine subscription and
// may be nil, in which case the view only polls.
func NewScanModel(ctrl ScanController, h session.Handle, title string, updates <-chan interface{}) ScanModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.SelectedStyle

	return ScanModel{
		ctrl:     ctrl,
		handle:   h,
		title:    title,
		updates:  updates,
		spinner:  s,
		progress: session.Progress{State: session.StateScanning, Phase: progress.PhaseScanning},
	}
}

// State returns the last observed session state
func (m ScanModel) State() session.State {
	return m.progress.State
}

// Cancelled reports whether the user interrupted the scan
func (m ScanModel) Cancelled() bool {
	return m.cancelled
}

// Err returns the error from the last progress lookup
func (m ScanModel) Err() error {
	return m.err
}

func (m ScanModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForScanUpdate(m.updates), poll())
}

func waitForScanUpdate(ch <-chan interface{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		for v := range ch {
			if u, ok := v.(*progress.ScanProgress); ok {
				return scanUpdateMsg{update: u}
			}
		}
		return nil
	}
}

func poll() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg {
		return pollMsg{}
	})
}

func (m ScanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.cancelled = true
			if err := m.ctrl.Cancel(m.handle); err != nil {
				m.err = err
			}
			m.progress.State = session.StateCancelled
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case scanUpdateMsg:
		if msg.update.Session == string(m.handle) {
			m.progress.Phase = msg.update.Phase
			m.progress.ItemsFound = msg.update.ItemsFound
			m.progress.BytesFound = msg.update.BytesFound
		}
		return m, waitForScanUpdate(m.updates)

	case pollMsg:
		p, err := m.ctrl.Progress(m.handle)
		if err != nil {
			m.err = err
			return m, tea.Quit
		}
		m.progress = p
		if p.State != session.StateScanning {
			return m, tea.Quit
		}
		return m, poll()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m ScanModel) View() string {
	var b strings.Builder

	b.WriteString(sizeWarning(m.width, m.height))
	b.WriteString(styles.TitleStyle.Render(m.title))
	b.WriteString("\n\n")

	switch m.progress.State {
	case session.StateScanning:
		b.WriteString(fmt.Sprintf("%s %s...\n\n", m.spinner.View(), phaseLabel(m.progress.Phase)))
	case session.StateCompleted:
		b.WriteString(styles.SuccessStyle.Render("✓ Scan complete"))
		b.WriteString("\n\n")
	case session.StateCancelled:
		b.WriteString(styles.WarningStyle.Render("Scan cancelled"))
		b.WriteString("\n\n")
	case session.StateFailed:
		b.WriteString(styles.ErrorStyle.Render("Scan failed"))
		b.WriteString("\n\n")
	}

	b.WriteString(fmt.Sprintf("Items found: %s\n", styles.BoldStyle.Render(fmt.Sprintf("%d", m.progress.ItemsFound))))
	b.WriteString(fmt.Sprintf("Reclaimable: %s\n", styles.FileSizeStyle.Render(utils.FormatBytes(m.progress.BytesFound))))
	if m.progress.Elapsed > 0 {
		b.WriteString(styles.DimStyle.Render(fmt.Sprintf("Elapsed: %s", progress.FormatDuration(m.progress.Elapsed))))
		b.WriteString("\n")
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(styles.ErrorStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(styles.HelpStyle.Render("q/esc: cancel scan"))
	return b.String()
}

func phaseLabel(p progress.Phase) string {
	switch p {
	case progress.PhaseHashing:
		return "Hashing candidates"
	case progress.PhaseCleaning:
		return "Cleaning"
	default:
		return "Scanning"
	}
}
