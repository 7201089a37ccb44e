package dataprocessing

import (
	"regexp"
	"strconv"
	"strings"

	"sheetload/pkg/contracts/domain"
)

// errorSentinels are the texts spreadsheet applications and data feeds use
// for "no value available"
var errorSentinels = map[string]struct{}{
	"#N/A":          {},
	"#N/A N/A":      {},
	"#DIV/0!":       {},
	"#VALUE!":       {},
	"#REF!":         {},
	"#NAME?":        {},
	"#NUM!":         {},
	"#NULL!":        {},
	"#GETTING_DATA": {},
}

var decimalPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// IsErrorSentinel reports whether text is a spreadsheet error marker
func IsErrorSentinel(text string) bool {
	_, ok := errorSentinels[strings.ToUpper(strings.TrimSpace(text))]
	return ok
}

// ClassifyCell interprets a value cell. It is total: every cell maps to
// exactly one of Numeric, Missing or Invalid.
//
//	error cell, blank, error sentinel text -> Missing
//	number, or text holding a finite decimal -> Numeric
//	anything else (booleans, words, non-finite) -> Invalid with the original text
func ClassifyCell(cell domain.RawCell) domain.ClassifiedValue {
	switch cell.Type {
	case domain.CellTypeError:
		return domain.Missing()
	case domain.CellTypeBool:
		return domain.Invalid(cell.Text)
	}

	text := strings.TrimSpace(cell.Text)
	if text == "" || IsErrorSentinel(text) {
		return domain.Missing()
	}

	if !decimalPattern.MatchString(text) {
		return domain.Invalid(cell.Text)
	}

	x, err := strconv.ParseFloat(text, 64)
	if err != nil {
		// out of float64 range
		return domain.Invalid(cell.Text)
	}
	return domain.Numeric(x)
}
