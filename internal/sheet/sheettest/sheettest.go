// Package sheettest builds in-memory workbooks for tests.
package sheettest

import (
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/verte-zerg/curricheck/internal/model"
)

// Sheet is a named grid written cell by cell; nil values leave the cell unset.
type Sheet struct {
	Name string
	Rows [][]any
}

// Workbook encodes sheets, in order, as xlsx bytes.
func Workbook(t testing.TB, sheets ...Sheet) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	for i, sh := range sheets {
		switch {
		case i == 0 && sh.Name != "Sheet1":
			if err := f.SetSheetName("Sheet1", sh.Name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
		case i > 0:
			if _, err := f.NewSheet(sh.Name); err != nil {
				t.Fatalf("new sheet: %v", err)
			}
		}
		for r, row := range sh.Rows {
			for c, value := range row {
				if value == nil {
					continue
				}
				axis, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					t.Fatalf("cell name: %v", err)
				}
				if err := f.SetCellValue(sh.Name, axis, value); err != nil {
					t.Fatalf("set %s: %v", axis, err)
				}
			}
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

// File wraps Workbook output as an upload named name.
func File(t testing.TB, name string, sheets ...Sheet) model.UploadedFile {
	t.Helper()
	return model.UploadedFile{Name: name, Data: Workbook(t, sheets...)}
}

// Courses is a small curriculum sheet with a header and two data rows.
func Courses(t testing.TB) model.UploadedFile {
	t.Helper()
	return File(t, "courses.xlsx", Sheet{
		Name: "Courses",
		Rows: [][]any{
			{"Math", "Physics"},
			{"Math101", "Phys101"},
			{"Math102"},
		},
	})
}
