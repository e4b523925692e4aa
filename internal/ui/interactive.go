package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fenilsonani/reclaim/internal/cleaner"
	"github.com/fenilsonani/reclaim/internal/session"
)

// ScanEngine is what RunScan needs from the engine
type ScanEngine interface {
	ScanController
	Subscribe() <-chan interface{}
	Unsubscribe(ch <-chan interface{})
}

// RunScan shows live progress until the session ends or the user cancels
func RunScan(engine ScanEngine, h session.Handle, title string) (ScanModel, error) {
	updates := engine.Subscribe()
	defer engine.Unsubscribe(updates)

	m := NewScanModel(engine, h, title, updates)
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return m, fmt.Errorf("error running scan view: %w", err)
	}
	return final.(ScanModel), nil
}

// RunSelect lets the user pick rows. It returns nil when the user quits
// without confirming.
func RunSelect(title, verb string, rows []Row) ([]string, error) {
	m := NewSelectModel(title, verb, rows)
	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return nil, fmt.Errorf("error running selection view: %w", err)
	}
	sm := final.(SelectModel)
	if !sm.Confirmed() {
		return nil, nil
	}
	return sm.Selected(), nil
}

// RunDeletion runs a deletion batch behind a progress bar
func RunDeletion(title string, total int, run DeleteFunc, cancel func()) (cleaner.Outcome, error) {
	m := NewDeleteModel(title, total, run, cancel)
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return cleaner.Outcome{}, fmt.Errorf("error running deletion view: %w", err)
	}
	return final.(DeleteModel).Outcome()
}
