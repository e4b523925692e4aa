package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fenilsonani/reclaim/internal/scanner"
	"github.com/fenilsonani/reclaim/internal/trash"
	"github.com/fenilsonani/reclaim/internal/ui/styles"
	"github.com/fenilsonani/reclaim/pkg/utils"
)

// Row is one selectable deletion candidate
type Row struct {
	Path     string
	Size     uint64
	Label    string
	Selected bool
}

// JunkRows lists the junk items of a result, keeping their selection
func JunkRows(res *scanner.ScanResult) []Row {
	rows := make([]Row, 0, len(res.Junk))
	for _, item := range res.Junk {
		rows = append(rows, Row{
			Path:     item.Record.Path,
			Size:     item.Record.Size,
			Label:    string(item.Category),
			Selected: item.Selected,
		})
	}
	return rows
}

// DuplicateRows lists the redundant copies of every group. Retained
// copies are never offered.
func DuplicateRows(res *scanner.ScanResult) []Row {
	var rows []Row
	for _, g := range res.Groups {
		keep := g.Retained().Path
		for _, f := range g.Redundant() {
			rows = append(rows, Row{
				Path:  f.Path,
				Size:  f.Size,
				Label: "duplicate of " + keep,
			})
		}
	}
	return rows
}

// TrashRows lists trash items
func TrashRows(items []trash.Item) []Row {
	rows := make([]Row, 0, len(items))
	for _, item := range items {
		rows = append(rows, Row{
			Path:  item.Record.Path,
			Size:  item.Record.Size,
			Label: "trash",
		})
	}
	return rows
}

type selectStep int

const (
	stepSelect selectStep = iota
	stepConfirm
)

// SelectModel lets the user pick rows and confirm the deletion
type SelectModel struct {
	title     string
	verb      string
	rows      []Row
	cursor    int
	offset    int
	step      selectStep
	confirmed bool
	width     int
	height    int
}

// NewSelectModel creates a selection view. verb names the action in the
// confirmation prompt, e.g. "move to trash".
func NewSelectModel(title, verb string, rows []Row) SelectModel {
	return SelectModel{
		title:  title,
		verb:   verb,
		rows:   append([]Row(nil), rows...),
		width:  80,
		height: 24,
	}
}

// Confirmed reports whether the user accepted the selection
func (m SelectModel) Confirmed() bool {
	return m.confirmed
}

// Selected returns the selected paths in display order
func (m SelectModel) Selected() []string {
	var paths []string
	for _, r := range m.rows {
		if r.Selected {
			paths = append(paths, r.Path)
		}
	}
	return paths
}

func (m SelectModel) selectedSize() (int, uint64) {
	var n int
	var size uint64
	for _, r := range m.rows {
		if r.Selected {
			n++
			size += r.Size
		}
	}
	return n, size
}

func (m SelectModel) Init() tea.Cmd {
	return nil
}

func (m SelectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		if m.step == stepConfirm {
			return m.updateConfirm(msg)
		}
		return m.updateSelect(msg)
	}
	return m, nil
}

func (m SelectModel) updateSelect(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	page := pageSize(m.height)

	switch msg.String() {
	case "ctrl+c", "q", "esc":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}

	case "pgup":
		m.cursor -= page
		if m.cursor < 0 {
			m.cursor = 0
		}

	case "pgdown":
		m.cursor += page
		if m.cursor > len(m.rows)-1 {
			m.cursor = len(m.rows) - 1
		}

	case "g", "home":
		m.cursor = 0

	case "G", "end":
		m.cursor = len(m.rows) - 1

	case " ", "x":
		if len(m.rows) > 0 {
			m.rows[m.cursor].Selected = !m.rows[m.cursor].Selected
		}

	case "a":
		for i := range m.rows {
			m.rows[i].Selected = true
		}

	case "n":
		for i := range m.rows {
			m.rows[i].Selected = false
		}

	case "enter":
		if n, _ := m.selectedSize(); n > 0 {
			m.step = stepConfirm
		}
	}

	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+page {
		m.offset = m.cursor - page + 1
	}
	return m, nil
}

func (m SelectModel) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		m.confirmed = true
		return m, tea.Quit
	case "n", "N", "esc":
		m.step = stepSelect
	case "ctrl+c", "q":
		return m, tea.Quit
	}
	return m, nil
}

func (m SelectModel) View() string {
	if m.step == stepConfirm {
		return m.viewConfirm()
	}

	var b strings.Builder
	b.WriteString(sizeWarning(m.width, m.height))
	b.WriteString(styles.TitleStyle.Render(m.title))
	b.WriteString("\n")

	if len(m.rows) == 0 {
		b.WriteString(styles.DimStyle.Render("Nothing to clean"))
		b.WriteString("\n\n")
		b.WriteString(styles.HelpStyle.Render("q: quit"))
		return b.String()
	}

	pathWidth := m.width - 30
	if pathWidth < 20 {
		pathWidth = 20
	}

	end := m.offset + pageSize(m.height)
	if end > len(m.rows) {
		end = len(m.rows)
	}
	for i := m.offset; i < end; i++ {
		r := m.rows[i]
		cursor := "  "
		if i == m.cursor {
			cursor = styles.SelectedStyle.Render("▸ ")
		}
		box := styles.UncheckedBox()
		if r.Selected {
			box = styles.CheckedBox()
		}
		path := styles.FilePathStyle.Render(truncatePath(r.Path, pathWidth))
		if i == m.cursor {
			path = styles.SelectedStyle.Render(truncatePath(r.Path, pathWidth))
		}
		b.WriteString(fmt.Sprintf("%s%s %s %s %s\n",
			cursor, box, path,
			styles.FileSizeStyle.Render(utils.FormatBytes(r.Size)),
			styles.Category(categoryKey(r.Label))))
	}
	if len(m.rows) > end {
		b.WriteString(styles.DimStyle.Render(fmt.Sprintf("  ... %d more", len(m.rows)-end)))
		b.WriteString("\n")
	}

	n, size := m.selectedSize()
	bar := statusBar{
		view:     m.verb,
		selected: n,
		total:    len(m.rows),
		size:     size,
		shortcuts: []shortcut{
			{"space", "toggle"},
			{"a/n", "all/none"},
			{"enter", "confirm"},
			{"q", "quit"},
		},
	}
	b.WriteString("\n")
	b.WriteString(bar.render(m.width))
	return b.String()
}

func (m SelectModel) viewConfirm() string {
	var b strings.Builder
	n, size := m.selectedSize()

	b.WriteString(styles.TitleStyle.Render("Confirm"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("About to %s %s totalling %s.\n\n",
		m.verb,
		styles.BoldStyle.Render(fmt.Sprintf("%d items", n)),
		styles.FileSizeStyle.Render(utils.FormatBytes(size))))
	b.WriteString(styles.WarningStyle.Render("Proceed? [y/n]"))
	return b.String()
}

// categoryKey maps a row label to a theme category
func categoryKey(label string) string {
	if strings.HasPrefix(label, "duplicate of ") {
		return "duplicate"
	}
	return label
}
