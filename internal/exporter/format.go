package exporter

import (
	"strconv"

	"sheetload/pkg/contracts/domain"
)

// formatRecord orders the fields as domain.Columns
func formatRecord(r domain.Record) []string {
	return []string{r.Location, r.Metric, formatValue(r.Value), formatDate(r.Date)}
}

// formatValue renders a classified value: the shortest decimal that round
// trips for numbers, an empty field for missing values and the original text
// for invalid ones
func formatValue(v domain.ClassifiedValue) string {
	switch v.Kind {
	case domain.ValueNumeric:
		return formatFloat(v.Number)
	case domain.ValueInvalid:
		return v.Text
	default:
		return ""
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatDate(d domain.Date) string {
	return d.String()
}
