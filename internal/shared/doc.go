// Package shared holds helpers used across sheetload packages.
//
// The testutil subpackage provides a buffered slog handler for asserting on
// log output and builders for in-memory xlsx workbooks shaped like the
// uploads the ingestor receives:
//
//	body := testutil.BuildDataWorkbook(t, testutil.ConversionRateRows()...)
//	extraction, err := dataprocessing.ParseWorkbook(bytes.NewReader(body))
//
// Nothing in this package carries domain logic.
package shared
