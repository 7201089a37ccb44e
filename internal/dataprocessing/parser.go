package dataprocessing

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	apperrors "sheetload/internal/errors"
	"sheetload/pkg/contracts/domain"
)

// DataSheet is the only worksheet the extractor reads
const DataSheet = "data"

// dateLayouts are the textual date forms accepted in the date column
var dateLayouts = []string{
	domain.DateLayout,
	"2006/01/02",
	"02/01/2006",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// RowError describes a data row the extractor could not turn into a Record
type RowError struct {
	Row    int    // 1-based worksheet row
	Column string // column name
	Err    error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d, column %s: %v", e.Row, e.Column, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// Extraction is the result of reading the data worksheet
type Extraction struct {
	Dataset  domain.Dataset
	Rejected []RowError
	// BlankRows counts fully empty rows between the header and the last row
	BlankRows int
}

// ParseWorkbook reads the data worksheet of the xlsx workbook in r
func ParseWorkbook(r io.Reader) (*Extraction, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperrors.NewMalformedWorkbookError("cannot open workbook as xlsx", err)
	}
	defer f.Close()

	return extract(f)
}

// columnIndex maps each expected column name to its position in the header
type columnIndex map[string]int

func extract(f *excelize.File) (*Extraction, error) {
	idx, err := f.GetSheetIndex(DataSheet)
	if err != nil || idx == -1 {
		return nil, apperrors.NewMalformedWorkbookError(
			fmt.Sprintf("worksheet %q not found (have %v)", DataSheet, f.GetSheetList()), err)
	}

	rows, err := f.GetRows(DataSheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, apperrors.NewMalformedWorkbookError(fmt.Sprintf("cannot read worksheet %q", DataSheet), err)
	}

	headerAt := -1
	for i, row := range rows {
		if !isBlankRow(row) {
			headerAt = i
			break
		}
	}
	if headerAt == -1 {
		return nil, apperrors.NewEmptyDatasetError(fmt.Sprintf("worksheet %q is empty", DataSheet), nil)
	}

	columns, err := mapHeader(rows[headerAt])
	if err != nil {
		return nil, err
	}

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	x := &extractor{
		f:        f,
		columns:  columns,
		date1904: date1904,
	}

	out := &Extraction{}
	for i := headerAt + 1; i < len(rows); i++ {
		row := rows[i]
		if isBlankRow(row) {
			out.BlankRows++
			continue
		}

		sheetRow := i + 1
		record, rowErr := x.record(row, sheetRow)
		if rowErr != nil {
			if len(out.Dataset) == 0 {
				return nil, apperrors.NewEmptyDatasetError(
					"first data row has no usable date, anchor date cannot be established", rowErr.Err)
			}
			out.Rejected = append(out.Rejected, *rowErr)
			continue
		}
		out.Dataset = append(out.Dataset, record)
	}

	if len(out.Dataset) == 0 {
		return nil, apperrors.NewEmptyDatasetError(fmt.Sprintf("worksheet %q has no data rows", DataSheet), nil)
	}

	slog.Debug("Worksheet extracted",
		slog.Int("records", len(out.Dataset)),
		slog.Int("rejected", len(out.Rejected)),
		slog.Int("blank_rows", out.BlankRows))

	return out, nil
}

func mapHeader(header []string) (columnIndex, error) {
	columns := make(columnIndex, len(domain.Columns))
	for j, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, seen := columns[key]; !seen {
			columns[key] = j
		}
	}

	var missing []string
	for _, want := range domain.Columns {
		if _, ok := columns[want]; !ok {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NewMalformedWorkbookError(
			fmt.Sprintf("header %v is missing columns %v", header, missing), nil)
	}
	return columns, nil
}

type extractor struct {
	f        *excelize.File
	columns  columnIndex
	date1904 bool
}

func (x *extractor) record(row []string, sheetRow int) (domain.Record, *RowError) {
	dateCell := x.cell(row, sheetRow, "date")
	date, err := x.parseDate(dateCell, sheetRow)
	if err != nil {
		return domain.Record{}, &RowError{Row: sheetRow, Column: "date", Err: err}
	}

	return domain.Record{
		Location: strings.TrimSpace(x.text(row, "location")),
		Metric:   strings.TrimSpace(x.text(row, "metric")),
		Value:    ClassifyCell(x.cell(row, sheetRow, "value")),
		Date:     date,
		Row:      sheetRow,
	}, nil
}

func (x *extractor) text(row []string, column string) string {
	j := x.columns[column]
	if j >= len(row) {
		return ""
	}
	return row[j]
}

// cell pairs the raw text with the stored cell type so error cells are
// distinguishable from text that merely looks like one
func (x *extractor) cell(row []string, sheetRow int, column string) domain.RawCell {
	text := x.text(row, column)
	if text == "" {
		return domain.RawCell{Type: domain.CellTypeUnset}
	}

	name, err := excelize.CoordinatesToCellName(x.columns[column]+1, sheetRow)
	if err != nil {
		return domain.RawCell{Type: domain.CellTypeString, Text: text}
	}
	cellType, err := x.f.GetCellType(DataSheet, name)
	if err != nil {
		return domain.RawCell{Type: domain.CellTypeString, Text: text}
	}
	if cellType == excelize.CellTypeBool {
		return domain.RawCell{Type: domain.CellTypeBool, Text: boolText(text)}
	}
	return domain.RawCell{Type: cellTypeOf(cellType), Text: text}
}

// boolText restores the displayed form of a boolean cell, which raw reads
// return as its stored 1 or 0
func boolText(raw string) string {
	switch strings.TrimSpace(raw) {
	case "1":
		return "TRUE"
	case "0":
		return "FALSE"
	default:
		return strings.ToUpper(strings.TrimSpace(raw))
	}
}

func cellTypeOf(t excelize.CellType) domain.CellType {
	switch t {
	case excelize.CellTypeBool:
		return domain.CellTypeBool
	case excelize.CellTypeDate:
		return domain.CellTypeDate
	case excelize.CellTypeError:
		return domain.CellTypeError
	case excelize.CellTypeFormula:
		return domain.CellTypeFormula
	case excelize.CellTypeInlineString, excelize.CellTypeSharedString:
		return domain.CellTypeString
	default:
		// numbers are stored without an explicit type attribute
		return domain.CellTypeNumber
	}
}

// parseDate accepts date serials (numeric cells) and the textual layouts
func (x *extractor) parseDate(cell domain.RawCell, sheetRow int) (domain.Date, error) {
	text := strings.TrimSpace(cell.Text)
	if text == "" {
		return domain.Date{}, apperrors.NewUnparseableDateError(sheetRow, text)
	}

	if cell.Type == domain.CellTypeNumber {
		if serial, err := strconv.ParseFloat(text, 64); err == nil && serial >= 1 {
			if t, err := excelize.ExcelDateToTime(math.Floor(serial+1e-6), x.date1904); err == nil {
				return domain.DateOf(t), nil
			}
		}
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return domain.DateOf(t), nil
		}
	}

	return domain.Date{}, apperrors.NewUnparseableDateError(sheetRow, text)
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
