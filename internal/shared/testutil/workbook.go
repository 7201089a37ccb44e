package testutil

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

// DataSheet is the worksheet name the extractor reads
const DataSheet = "data"

// Header is the expected header row of the data worksheet
var Header = []interface{}{"location", "metric", "value", "date"}

// BuildWorkbook writes rows into a single-sheet workbook and returns the
// xlsx bytes. A nil cell is left blank. time.Time cells are stored as date
// serials the way spreadsheet applications store them.
func BuildWorkbook(t testing.TB, sheet string, rows [][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			t.Fatalf("rename sheet: %v", err)
		}
	}

	for i, row := range rows {
		for j, value := range row {
			if value == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				t.Fatalf("set %s: %v", cell, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

// BuildDataWorkbook writes the header plus rows to the data worksheet
func BuildDataWorkbook(t testing.TB, rows ...[]interface{}) []byte {
	t.Helper()
	return BuildWorkbook(t, DataSheet, append([][]interface{}{Header}, rows...))
}

// firstSheetPart is where excelize keeps the worksheet of a new workbook
const firstSheetPart = "xl/worksheets/sheet1.xml"

// SetRawCell replaces the XML of one cell in the first worksheet of an
// xlsx body. excelize has no setter for cells such as cached formula
// errors (t="e"), so tests write them directly.
func SetRawCell(t testing.TB, body []byte, cell, cellXML string) []byte {
	t.Helper()

	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}

	pattern := regexp.MustCompile(fmt.Sprintf(`<c r="%s"[ >/](?:[^<]*/>|.*?</c>)`, regexp.QuoteMeta(cell)))

	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	replaced := false
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}

		if f.Name == firstSheetPart {
			if loc := pattern.FindIndex(data); loc != nil {
				data = append(append(append([]byte{}, data[:loc[0]]...), cellXML...), data[loc[1]:]...)
				replaced = true
			}
		}

		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: zip.Deflate})
		if err != nil {
			t.Fatalf("create %s: %v", f.Name, err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("write %s: %v", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close workbook: %v", err)
	}
	if !replaced {
		t.Fatalf("cell %s not found in %s", cell, firstSheetPart)
	}
	return out.Bytes()
}

// Day returns midnight UTC on the given date
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ConversionRateRows is a feed with four rows on 2020-02-01 (two of them
// #N/A) followed by a row from the previous day's batch.
func ConversionRateRows() [][]interface{} {
	return [][]interface{}{
		{"UK", "conversion_rate", 0, Day(2020, time.February, 1)},
		{"ES", "conversion_rate", 0.634, Day(2020, time.February, 1)},
		{"DE", "conversion_rate", "#N/A", Day(2020, time.February, 1)},
		{"FR", "conversion_rate", "#N/A", Day(2020, time.February, 1)},
		{"UK", "conversion_rate", 0.723, Day(2020, time.January, 31)},
	}
}

// ConversionRateCSV is the expected output for ConversionRateRows
const ConversionRateCSV = "location,metric,value,date\n" +
	"UK,conversion_rate,0,2020-02-01\n" +
	"ES,conversion_rate,0.634,2020-02-01\n" +
	"DE,conversion_rate,,2020-02-01\n" +
	"FR,conversion_rate,,2020-02-01\n"
