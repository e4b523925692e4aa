package ui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fenilsonani/reclaim/internal/ui/styles"
)

const (
	minTerminalWidth  = 80
	minTerminalHeight = 24
	// reservedLines holds title, help, status bar and margins
	reservedLines = 10
)

// truncatePath shortens path to maxWidth, keeping the file name and the
// first and last directory when possible
func truncatePath(path string, maxWidth int) string {
	if len(path) <= maxWidth {
		return path
	}
	if maxWidth < 10 {
		return "..."
	}

	dir, file := filepath.Split(path)
	if len(file) > maxWidth-4 {
		return "..." + file[len(file)-(maxWidth-4):]
	}

	room := maxWidth - len(file) - 3
	dir = filepath.Clean(dir)
	if room < 10 {
		return ".../" + file
	}

	parts := strings.Split(dir, string(filepath.Separator))
	if len(parts) <= 2 {
		return "..." + dir[len(dir)-room:] + string(filepath.Separator) + file
	}

	first := parts[0]
	if first == "" {
		first = string(filepath.Separator) + parts[1]
	}
	last := parts[len(parts)-1]

	if len(first)+len(last)+5 <= room {
		return filepath.Join(first, "...", last, file)
	}
	return filepath.Join("...", last, file)
}

// pageSize is the number of list rows that fit in height
func pageSize(height int) int {
	n := height - reservedLines
	if n < 5 {
		n = 5
	}
	return n
}

// sizeWarning returns a banner when the terminal is below 80x24
func sizeWarning(width, height int) string {
	if width >= minTerminalWidth && height >= minTerminalHeight {
		return ""
	}
	warning := "Terminal too small, 80x24 or larger recommended"
	if width > 0 && height > 0 {
		warning += fmt.Sprintf(" (current: %dx%d)", width, height)
	}
	return styles.WarningStyle.Render(warning) + "\n\n"
}
