package domain

// Columns is the fixed column set of the data worksheet and of the CSV output,
// in output order.
var Columns = []string{"location", "metric", "value", "date"}

// Record is one data row of the worksheet
type Record struct {
	Location string          `json:"location"`
	Metric   string          `json:"metric"`
	Value    ClassifiedValue `json:"value"`
	Date     Date            `json:"date"`

	// Row is the 1-based worksheet row the record came from
	Row int `json:"row"`
}

// Dataset is every record read from the worksheet, in worksheet order
type Dataset []Record

// FilteredDataset is the subsequence of a Dataset sharing the anchor date
type FilteredDataset []Record

// Locations returns the distinct locations in first-seen order
func (f FilteredDataset) Locations() []string {
	seen := make(map[string]struct{}, len(f))
	var out []string
	for _, r := range f {
		if _, ok := seen[r.Location]; ok {
			continue
		}
		seen[r.Location] = struct{}{}
		out = append(out, r.Location)
	}
	return out
}

// ValueCounts tallies records by value kind
func (f FilteredDataset) ValueCounts() map[ValueKind]int {
	counts := make(map[ValueKind]int, 3)
	for _, r := range f {
		counts[r.Value.Kind]++
	}
	return counts
}
