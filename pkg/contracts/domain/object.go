package domain

import (
	"fmt"
	"strings"
)

// ObjectRef points to an object in a bucket
type ObjectRef struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

func (o ObjectRef) String() string {
	return fmt.Sprintf("s3://%s/%s", o.Bucket, strings.TrimPrefix(o.Key, "/"))
}

// OutputObject is the CSV produced for one workbook
type OutputObject struct {
	Bucket string `json:"bucket"`
	Label  string `json:"label"`
	Date   Date   `json:"date"`
	Body   []byte `json:"-"`
}

// FileName returns YYYY-MM-DD.csv
func (o OutputObject) FileName() string {
	return o.Date.String() + ".csv"
}

// Key returns label/YYYY-MM-DD.csv
func (o OutputObject) Key() string {
	return o.Label + "/" + o.FileName()
}

// Ref returns the object's location
func (o OutputObject) Ref() ObjectRef {
	return ObjectRef{Bucket: o.Bucket, Key: o.Key()}
}

// LoadCommand instructs the warehouse to bulk-load one output object into
// the target table
type LoadCommand struct {
	Table          string    `json:"table"`
	Columns        []string  `json:"columns"`
	Object         ObjectRef `json:"object"`
	CredentialsRef string    `json:"-"`

	// Date and Locations scope the rows replaced when ReplaceExisting is set
	Date            Date     `json:"date"`
	Locations       []string `json:"locations"`
	ReplaceExisting bool     `json:"replace_existing"`
}
