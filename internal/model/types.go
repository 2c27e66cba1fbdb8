// Package model defines shared data structures.
package model

import "time"

// Config defines analysis service settings.
type Config struct {
	Endpoint       string
	Field          string
	Timeout        time.Duration
	HistoryEnabled bool
}

// UploadedFile is a selected spreadsheet: raw bytes plus the name it was picked under.
type UploadedFile struct {
	Name string
	Data []byte
}

// Clone returns a copy that shares no memory with f.
func (f UploadedFile) Clone() UploadedFile {
	return UploadedFile{Name: f.Name, Data: append([]byte(nil), f.Data...)}
}

// CellKind tells how a cell value was stored in the workbook.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
)

// Cell is a single spreadsheet value.
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
}

// TextCell builds a string cell.
func TextCell(s string) Cell {
	return Cell{Kind: CellText, Text: s}
}

// NumberCell builds a numeric cell.
func NumberCell(v float64) Cell {
	return Cell{Kind: CellNumber, Number: v}
}

// Row is an ordered sequence of cells. Rows may differ in length.
type Row []Cell

// TabularDataset holds the rows of the first sheet. Row 0 is the header.
type TabularDataset struct {
	Rows []Row
}

// Empty reports whether the dataset has no rows.
func (d TabularDataset) Empty() bool {
	return len(d.Rows) == 0
}

// Clone deep-copies the dataset.
func (d TabularDataset) Clone() TabularDataset {
	if d.Rows == nil {
		return TabularDataset{}
	}
	rows := make([]Row, len(d.Rows))
	for i, row := range d.Rows {
		rows[i] = append(Row(nil), row...)
	}
	return TabularDataset{Rows: rows}
}

// RedundancyPair is two course identifiers whose content overlaps.
type RedundancyPair struct {
	First      string
	Second     string
	Similarity float64
}

// AnalysisRecord captures one finished analysis for the history log.
type AnalysisRecord struct {
	ID         string
	FileName   string
	AnalyzedAt time.Time
	DurationMs int64
	Outcome    string
	Message    string
	PairCount  int
	Pairs      []RedundancyPair
}

// HistoryConfig defines filters for history output.
type HistoryConfig struct {
	Last  int
	Since *time.Time
}
