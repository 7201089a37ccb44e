// Package exporter renders filtered records as the CSV object written to the
// output bucket.
//
// CSVSerializer writes the header location,metric,value,date followed by one
// line per record, with "\n" line endings and no byte order mark. Numbers use
// the shortest decimal form, missing values are empty fields and invalid
// values keep their original text, quoted when needed.
//
// Example usage:
//
//	body, err := exporter.NewCSVSerializer().Serialize(anchor, rows)
//	if err != nil {
//	    return err
//	}
//	name := exporter.OutputFileName(anchor) // 2020-02-01.csv
package exporter
