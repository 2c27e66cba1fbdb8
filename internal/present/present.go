// Package present maps datasets and redundancy results to renderable rows.
package present

import (
	"fmt"
	"math"
	"strconv"

	"github.com/verte-zerg/curricheck/internal/model"
)

// Placeholders shown when there is nothing to render.
const (
	NoDataText         = "No data to display."
	NoRedundanciesText = "No redundant subjects found."
)

// DatasetView is the preview table: header plus body, raggedness preserved.
type DatasetView struct {
	Header      []string
	Body        [][]string
	Placeholder string
}

// Empty reports whether the view renders as the placeholder.
func (v DatasetView) Empty() bool {
	return v.Placeholder != ""
}

// ResultsView is the list of redundant pairs as display lines.
type ResultsView struct {
	Lines       []string
	Placeholder string
}

// Empty reports whether the view renders as the placeholder.
func (v ResultsView) Empty() bool {
	return v.Placeholder != ""
}

// Dataset splits row 0 off as the header. Cells are not validated.
func Dataset(ds model.TabularDataset) DatasetView {
	if ds.Empty() {
		return DatasetView{Placeholder: NoDataText}
	}
	view := DatasetView{Header: renderRow(ds.Rows[0])}
	view.Body = make([][]string, 0, len(ds.Rows)-1)
	for _, row := range ds.Rows[1:] {
		view.Body = append(view.Body, renderRow(row))
	}
	return view
}

// Results formats each pair as "a ↔ b (0.87)".
func Results(pairs []model.RedundancyPair) ResultsView {
	if len(pairs) == 0 {
		return ResultsView{Placeholder: NoRedundanciesText}
	}
	lines := make([]string, len(pairs))
	for i, p := range pairs {
		lines[i] = PairLine(p)
	}
	return ResultsView{Lines: lines}
}

// PairLine renders a single pair.
func PairLine(p model.RedundancyPair) string {
	return fmt.Sprintf("%s ↔ %s (%s)", p.First, p.Second, Similarity(p.Similarity))
}

// Similarity renders a score with two decimals.
func Similarity(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Cell renders one cell value for display.
func Cell(c model.Cell) string {
	switch c.Kind {
	case model.CellText:
		return c.Text
	case model.CellNumber:
		if c.Number == math.Trunc(c.Number) && math.Abs(c.Number) < 1e15 {
			return strconv.FormatFloat(c.Number, 'f', 0, 64)
		}
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	default:
		return ""
	}
}

func renderRow(row model.Row) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = Cell(c)
	}
	return out
}
