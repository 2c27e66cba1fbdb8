// Package sheet decodes uploaded workbooks into tabular datasets.
package sheet

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/verte-zerg/curricheck/internal/apperr"
	"github.com/verte-zerg/curricheck/internal/model"
)

// Extension is the only supported spreadsheet extension.
const Extension = ".xlsx"

// ValidateName rejects files that do not carry the supported extension.
// The file contents are never looked at.
func ValidateName(name string) error {
	if !strings.HasSuffix(strings.ToLower(name), Extension) {
		return apperr.Validation("Only .xlsx files are supported.")
	}
	return nil
}

// Parse decodes the first sheet of file into a dataset. The header row is
// kept as row 0; splitting header from body is left to the presenter.
func Parse(file model.UploadedFile) (model.TabularDataset, error) {
	if err := ValidateName(file.Name); err != nil {
		return model.TabularDataset{}, err
	}
	f, err := excelize.OpenReader(bytes.NewReader(file.Data))
	if err != nil {
		return model.TabularDataset{}, apperr.Format("failed to open workbook", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			// Best-effort close; the reader is in memory.
			_ = cerr
		}
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return model.TabularDataset{}, apperr.Format("workbook has no sheets", nil)
	}
	rows, err := readRows(f, sheets[0])
	if err != nil {
		return model.TabularDataset{}, apperr.Format(fmt.Sprintf("failed to read sheet %q", sheets[0]), err)
	}
	return model.TabularDataset{Rows: rows}, nil
}

func readRows(f *excelize.File, sheetName string) ([]model.Row, error) {
	iter, err := f.Rows(sheetName)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := iter.Close(); cerr != nil {
			_ = cerr
		}
	}()

	var out []model.Row
	rowNum := 0
	for iter.Next() {
		rowNum++
		values, err := iter.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, err
		}
		row := make(model.Row, len(values))
		for i, raw := range values {
			cell, err := decodeCell(f, sheetName, i+1, rowNum, raw)
			if err != nil {
				return nil, err
			}
			row[i] = cell
		}
		out = append(out, row)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return trimOrigin(out), nil
}

// trimOrigin moves the grid origin to the top-left of the used range:
// leading blank rows are dropped and every row loses the blank columns left
// of the leftmost used cell. Interior blank rows and ragged ends are kept.
func trimOrigin(rows []model.Row) []model.Row {
	first := -1
	left := -1
	for i, row := range rows {
		lead := firstUsed(row)
		if lead < 0 {
			continue
		}
		if first < 0 {
			first = i
		}
		if left < 0 || lead < left {
			left = lead
		}
	}
	if first < 0 {
		return nil
	}
	out := rows[first:]
	if left == 0 {
		return out
	}
	for i, row := range out {
		if len(row) > left {
			out[i] = row[left:]
		} else {
			out[i] = model.Row{}
		}
	}
	return out
}

func firstUsed(row model.Row) int {
	for i, c := range row {
		if c.Kind != model.CellEmpty {
			return i
		}
	}
	return -1
}

func decodeCell(f *excelize.File, sheetName string, col, row int, raw string) (model.Cell, error) {
	if raw == "" {
		return model.Cell{}, nil
	}
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return model.Cell{}, err
	}
	typ, err := f.GetCellType(sheetName, axis)
	if err != nil {
		return model.Cell{}, err
	}
	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		// Cells without a type attribute hold numbers.
		if v, perr := strconv.ParseFloat(raw, 64); perr == nil {
			return model.NumberCell(v), nil
		}
		return model.TextCell(raw), nil
	case excelize.CellTypeBool:
		if raw == "1" {
			return model.TextCell("TRUE"), nil
		}
		return model.TextCell("FALSE"), nil
	default:
		return model.TextCell(raw), nil
	}
}
