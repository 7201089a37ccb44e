// Package dataprocessing turns an uploaded workbook into the record set that
// gets loaded into the warehouse.
//
// # Architecture
//
// The package is organized into three steps that run strictly in sequence:
//
// 1. Extractor: ParseWorkbook reads the "data" worksheet into a Dataset
// 2. Classifier: ClassifyCell interprets each value cell as Numeric, Missing or Invalid
// 3. Filter: FilterByAnchor keeps the rows sharing the first row's date
//
// # Usage
//
//	extraction, err := dataprocessing.ParseWorkbook(bytes.NewReader(body))
//	if err != nil {
//	    return err
//	}
//	anchor, rows, err := dataprocessing.FilterByAnchor(extraction.Dataset)
//
// # Worksheet Shape
//
// The first non-blank row of the worksheet is the header and must name the
// columns location, metric, value and date in any order. Blank rows are
// skipped. Dates may be stored as spreadsheet date serials or as text.
//
// # Error Handling
//
// Failures are AppErrors from internal/errors:
//
//   - MALFORMED_WORKBOOK when the workbook, the worksheet or the header is unusable
//   - EMPTY_DATASET when there is no data row, or the first one has no usable date
//   - rows after the first with an unparseable date are rejected and reported
//     in Extraction.Rejected instead of failing the run
package dataprocessing
