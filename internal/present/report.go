package present

import (
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/montanaflynn/stats"

	"github.com/verte-zerg/curricheck/internal/model"
)

// Summary aggregates similarity scores of a result set.
type Summary struct {
	Count  int
	Mean   float64
	Median float64
	Min    float64
	Max    float64
}

// Summarize computes summary statistics. An empty set yields a zero Summary.
func Summarize(pairs []model.RedundancyPair) (Summary, error) {
	if len(pairs) == 0 {
		return Summary{}, nil
	}
	data := make(stats.Float64Data, len(pairs))
	for i, p := range pairs {
		data[i] = p.Similarity
	}
	mean, err := stats.Mean(data)
	if err != nil {
		return Summary{}, err
	}
	median, err := stats.Median(data)
	if err != nil {
		return Summary{}, err
	}
	lo, err := stats.Min(data)
	if err != nil {
		return Summary{}, err
	}
	hi, err := stats.Max(data)
	if err != nil {
		return Summary{}, err
	}
	return Summary{Count: len(pairs), Mean: mean, Median: median, Min: lo, Max: hi}, nil
}

// Line renders the summary on one line.
func (s Summary) Line() string {
	if s.Count == 0 {
		return "0 redundant pairs"
	}
	noun := "pairs"
	if s.Count == 1 {
		noun = "pair"
	}
	return fmt.Sprintf("%d redundant %s · mean %s · median %s · min %s · max %s",
		s.Count, noun, Similarity(s.Mean), Similarity(s.Median), Similarity(s.Min), Similarity(s.Max))
}

// Report bundles everything rendered for one analysed file.
type Report struct {
	FileName string
	Dataset  DatasetView
	Results  ResultsView
	Summary  Summary
}

// Markdown renders r as a Markdown document.
func Markdown(r Report) string {
	var b strings.Builder
	b.WriteString("# Curriculum Redundancy Report\n\n")
	if r.FileName != "" {
		fmt.Fprintf(&b, "File: `%s`\n\n", r.FileName)
	}

	b.WriteString("## Uploaded Dataset\n\n")
	if r.Dataset.Empty() {
		b.WriteString(r.Dataset.Placeholder + "\n\n")
	} else {
		writeMarkdownTable(&b, r.Dataset.Header, r.Dataset.Body)
		b.WriteString("\n")
	}

	b.WriteString("## Redundant Course Pairs\n\n")
	if r.Results.Empty() {
		b.WriteString(r.Results.Placeholder + "\n")
		return b.String()
	}
	for _, line := range r.Results.Lines {
		b.WriteString("- " + escapeMarkdownCell(line) + "\n")
	}
	b.WriteString("\n" + r.Summary.Line() + "\n")
	return b.String()
}

// HTML converts a Markdown report to a standalone HTML page.
func HTML(md string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.CompletePage, Title: "Curriculum Redundancy Report"})
	return string(markdown.ToHTML([]byte(md), p, renderer))
}

func writeMarkdownTable(b *strings.Builder, header []string, body [][]string) {
	cols := len(header)
	for _, row := range body {
		if len(row) > cols {
			cols = len(row)
		}
	}
	if cols == 0 {
		return
	}
	writeMarkdownRow(b, header, cols)
	b.WriteString("|")
	for i := 0; i < cols; i++ {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, row := range body {
		writeMarkdownRow(b, row, cols)
	}
}

func writeMarkdownRow(b *strings.Builder, row []string, cols int) {
	b.WriteString("|")
	for i := 0; i < cols; i++ {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		b.WriteString(" " + escapeMarkdownCell(cell) + " |")
	}
	b.WriteString("\n")
}

func escapeMarkdownCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
