package present

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// FormatTable aligns headers and rows into plain text lines. Rows may be
// ragged; missing cells pad as blanks. maxCellWidth truncates wide cells
// when positive.
func FormatTable(headers []string, rows [][]string, rightAlignCols map[int]bool, maxCellWidth int) []string {
	colCount := len(headers)
	for _, row := range rows {
		if len(row) > colCount {
			colCount = len(row)
		}
	}
	if colCount == 0 {
		return nil
	}

	clip := func(s string) string {
		if maxCellWidth > 0 {
			return runewidth.Truncate(s, maxCellWidth, "…")
		}
		return s
	}

	widths := make([]int, colCount)
	for i, header := range headers {
		widths[i] = DisplayWidth(clip(header))
	}
	for _, row := range rows {
		for i := 0; i < colCount; i++ {
			cell := ""
			if i < len(row) {
				cell = clip(row[i])
			}
			if w := DisplayWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	lines := make([]string, 0, len(rows)+2)
	if len(headers) > 0 {
		lines = append(lines, formatRow(headers, widths, rightAlignCols, clip))
		lines = append(lines, separator(widths))
	}
	for _, row := range rows {
		lines = append(lines, formatRow(row, widths, rightAlignCols, clip))
	}
	return lines
}

func formatRow(row []string, widths []int, rightAlignCols map[int]bool, clip func(string) string) string {
	var b strings.Builder
	for i := 0; i < len(widths); i++ {
		cell := ""
		if i < len(row) {
			cell = clip(row[i])
		}
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(padCell(cell, widths[i], rightAlignCols[i]))
	}
	return strings.TrimRight(b.String(), " ")
}

func separator(widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strings.Repeat("-", w)
	}
	return strings.Join(parts, "  ")
}

func padCell(value string, width int, rightAlign bool) string {
	valueWidth := DisplayWidth(value)
	if valueWidth >= width {
		return value
	}
	padding := width - valueWidth
	if rightAlign {
		return strings.Repeat(" ", padding) + value
	}
	return value + strings.Repeat(" ", padding)
}

// DisplayWidth returns the terminal cell width of value.
func DisplayWidth(value string) int {
	return runewidth.StringWidth(value)
}
