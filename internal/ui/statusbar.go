package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fenilsonani/reclaim/internal/ui/styles"
	"github.com/fenilsonani/reclaim/pkg/utils"
)

// shortcut is one key hint shown on the right of the status bar
type shortcut struct {
	key  string
	desc string
}

// statusBar is the bottom line of the selection view
type statusBar struct {
	view      string
	selected  int
	total     int
	size      uint64
	shortcuts []shortcut
}

func (s statusBar) render(width int) string {
	if width <= 0 {
		width = 80
	}

	var left []string
	if s.view != "" {
		left = append(left, styles.BoldStyle.Render(s.view))
	}
	if s.total > 0 {
		left = append(left, fmt.Sprintf("%d/%d selected", s.selected, s.total))
	}
	if s.size > 0 {
		left = append(left, styles.FileSizeStyle.Render(utils.FormatBytes(s.size)))
	}
	leftSide := strings.Join(left, " • ")

	hints := make([]string, 0, len(s.shortcuts))
	for _, sc := range s.shortcuts {
		hints = append(hints, fmt.Sprintf("%s:%s", styles.DimStyle.Render(sc.key), sc.desc))
	}
	rightSide := strings.Join(hints, " ")

	spacing := width - lipgloss.Width(leftSide) - lipgloss.Width(rightSide) - 2
	if spacing < 1 {
		// Not enough room for the hints
		rightSide = ""
		spacing = 1
	}

	return styles.StatusBarStyle.Width(width).Render(leftSide + strings.Repeat(" ", spacing) + rightSide)
}
