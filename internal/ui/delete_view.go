package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fenilsonani/reclaim/internal/cleaner"
	"github.com/fenilsonani/reclaim/internal/ui/styles"
)

// DeleteFunc runs a deletion batch, reporting through onProgress
type DeleteFunc func(onProgress cleaner.ProgressFunc) (cleaner.Outcome, error)

type deleteProgressMsg struct {
	completed, total int
}

type deleteDoneMsg struct {
	outcome cleaner.Outcome
	err     error
}

// DeleteModel runs one deletion batch behind a progress bar
type DeleteModel struct {
	run     DeleteFunc
	cancel  func()
	title   string
	updates chan deleteProgressMsg

	bar       progress.Model
	completed int
	total     int
	outcome   cleaner.Outcome
	err       error
	done      bool
	width     int
}

// NewDeleteModel creates a deletion view. cancel is called when the user
// interrupts and should cancel the context run deletes under.
func NewDeleteModel(title string, total int, run DeleteFunc, cancel func()) DeleteModel {
	bar := progress.New(progress.WithDefaultGradient())
	return DeleteModel{
		run:     run,
		cancel:  cancel,
		title:   title,
		total:   total,
		updates: make(chan deleteProgressMsg, 16),
		bar:     bar,
	}
}

// Outcome returns the batch result once the view has quit
func (m DeleteModel) Outcome() (cleaner.Outcome, error) {
	return m.outcome, m.err
}

func (m DeleteModel) Init() tea.Cmd {
	return tea.Batch(m.start(), m.waitForProgress())
}

func (m DeleteModel) start() tea.Cmd {
	updates := m.updates
	run := m.run
	return func() tea.Msg {
		out, err := run(func(completed, total int) {
			select {
			case updates <- deleteProgressMsg{completed: completed, total: total}:
			default:
			}
		})
		return deleteDoneMsg{outcome: out, err: err}
	}
}

func (m DeleteModel) waitForProgress() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		return <-updates
	}
}

func (m DeleteModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && !m.done && m.cancel != nil {
			m.cancel()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = msg.Width - 10
		if m.bar.Width > 60 {
			m.bar.Width = 60
		}

	case deleteProgressMsg:
		m.completed = msg.completed
		m.total = msg.total
		if m.done {
			return m, nil
		}
		return m, m.waitForProgress()

	case deleteDoneMsg:
		m.done = true
		m.outcome = msg.outcome
		m.err = msg.err
		m.completed = msg.outcome.Attempted
		return m, tea.Quit
	}

	return m, nil
}

func (m DeleteModel) percent() float64 {
	if m.total <= 0 {
		return 0
	}
	return float64(m.completed) / float64(m.total)
}

func (m DeleteModel) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render(m.title))
	b.WriteString("\n\n")

	if m.done {
		if m.err != nil {
			b.WriteString(styles.ErrorStyle.Render(m.err.Error()))
			b.WriteString("\n")
			return b.String()
		}
		b.WriteString(styles.SuccessStyle.Render("✓ Done"))
		b.WriteString("\n\n")
		b.WriteString(cleaner.FormatOutcome(m.outcome))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(m.bar.ViewAs(m.percent()))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("%d/%d items\n\n", m.completed, m.total))
	b.WriteString(styles.HelpStyle.Render("ctrl+c: stop after the current item"))
	return b.String()
}
