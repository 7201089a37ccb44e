package domain

import (
	"math"
	"strconv"
)

// CellType describes how the workbook stored a cell
type CellType string

const (
	CellTypeUnset   CellType = "unset"
	CellTypeNumber  CellType = "number"
	CellTypeString  CellType = "string"
	CellTypeBool    CellType = "bool"
	CellTypeDate    CellType = "date"
	CellTypeError   CellType = "error"
	CellTypeFormula CellType = "formula"
)

// RawCell is a worksheet cell as read from the workbook, before any
// interpretation. Text holds the raw stored value (numbers unformatted).
type RawCell struct {
	Type CellType `json:"type"`
	Text string   `json:"text"`
}

// ValueKind tags a ClassifiedValue
type ValueKind string

const (
	ValueNumeric ValueKind = "numeric"
	ValueMissing ValueKind = "missing"
	ValueInvalid ValueKind = "invalid"
)

// ClassifiedValue is the interpretation of the value column of a row.
// Exactly one kind holds. Number is meaningful only for ValueNumeric and
// Text only for ValueInvalid.
type ClassifiedValue struct {
	Kind   ValueKind `json:"kind"`
	Number float64   `json:"number,omitempty"`
	Text   string    `json:"text,omitempty"`
}

// Numeric returns a numeric value. Non-finite input cannot be numeric and
// is reported as Invalid with its textual form.
func Numeric(x float64) ClassifiedValue {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return Invalid(strconv.FormatFloat(x, 'f', -1, 64))
	}
	return ClassifiedValue{Kind: ValueNumeric, Number: x}
}

// Missing returns the "not applicable" value
func Missing() ClassifiedValue {
	return ClassifiedValue{Kind: ValueMissing}
}

// Invalid returns a value that could not be interpreted, keeping the
// original text
func Invalid(text string) ClassifiedValue {
	return ClassifiedValue{Kind: ValueInvalid, Text: text}
}

func (v ClassifiedValue) IsNumeric() bool { return v.Kind == ValueNumeric }
func (v ClassifiedValue) IsMissing() bool { return v.Kind == ValueMissing }
func (v ClassifiedValue) IsInvalid() bool { return v.Kind == ValueInvalid }

// Float returns the numeric value and whether there is one
func (v ClassifiedValue) Float() (float64, bool) {
	if v.Kind != ValueNumeric {
		return 0, false
	}
	return v.Number, true
}

// String renders the value the way it appears in the CSV output:
// shortest decimal for numbers, empty for missing, original text for invalid.
func (v ClassifiedValue) String() string {
	switch v.Kind {
	case ValueNumeric:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case ValueInvalid:
		return v.Text
	default:
		return ""
	}
}
