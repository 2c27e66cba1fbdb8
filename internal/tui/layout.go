package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/curricheck/internal/present"
)

const (
	maxColumnWidth = 28
	minColumnWidth = 3
)

// buildDatasetTable turns a preview into table columns and rows. The column
// count covers the widest row so ragged rows never index past it.
func buildDatasetTable(view present.DatasetView) ([]table.Column, []table.Row) {
	colCount := len(view.Header)
	for _, row := range view.Body {
		if len(row) > colCount {
			colCount = len(row)
		}
	}
	widths := make([]int, colCount)
	for i := range widths {
		widths[i] = minColumnWidth
	}
	measure := func(row []string) {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	measure(view.Header)
	for _, row := range view.Body {
		measure(row)
	}

	columns := make([]table.Column, colCount)
	for i := range columns {
		title := ""
		if i < len(view.Header) {
			title = view.Header[i]
		}
		columns[i] = table.Column{Title: title, Width: minInt(widths[i], maxColumnWidth)}
	}
	rows := make([]table.Row, len(view.Body))
	for i, row := range view.Body {
		rows[i] = table.Row(append([]string(nil), row...))
	}
	return columns, rows
}

func datasetTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}
