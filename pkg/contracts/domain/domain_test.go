package domain

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate(t *testing.T) {
	d, err := ParseDate("2020-02-01")
	require.NoError(t, err)
	assert.Equal(t, Date{Year: 2020, Month: time.February, Day: 1}, d)
	assert.Equal(t, "2020-02-01", d.String())
	assert.False(t, d.IsZero())
	assert.True(t, Date{}.IsZero())

	_, err = ParseDate("01/02/2020")
	assert.Error(t, err)

	loc := time.FixedZone("UTC+10", 10*3600)
	assert.Equal(t, Date{Year: 2020, Month: time.January, Day: 31},
		DateOf(time.Date(2020, 1, 31, 23, 30, 0, 0, loc)))
}

func TestDate_JSON(t *testing.T) {
	data, err := json.Marshal(Date{Year: 2021, Month: time.March, Day: 9})
	require.NoError(t, err)
	assert.Equal(t, `"2021-03-09"`, string(data))

	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"1999-12-31"`), &d))
	assert.Equal(t, "1999-12-31", d.String())
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &d))
}

func TestClassifiedValue(t *testing.T) {
	tests := []struct {
		name     string
		value    ClassifiedValue
		kind     ValueKind
		rendered string
	}{
		{name: "zero", value: Numeric(0), kind: ValueNumeric, rendered: "0"},
		{name: "fraction", value: Numeric(0.634), kind: ValueNumeric, rendered: "0.634"},
		{name: "negative large", value: Numeric(-1234567.5), kind: ValueNumeric, rendered: "-1234567.5"},
		{name: "NaN is invalid", value: Numeric(math.NaN()), kind: ValueInvalid, rendered: "NaN"},
		{name: "Inf is invalid", value: Numeric(math.Inf(1)), kind: ValueInvalid, rendered: "+Inf"},
		{name: "missing", value: Missing(), kind: ValueMissing, rendered: ""},
		{name: "invalid", value: Invalid("n/a, see note"), kind: ValueInvalid, rendered: "n/a, see note"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.value.Kind)
			assert.Equal(t, tt.rendered, tt.value.String())

			_, ok := tt.value.Float()
			assert.Equal(t, tt.kind == ValueNumeric, ok)
		})
	}
}

func TestFilteredDataset_Locations(t *testing.T) {
	rows := FilteredDataset{
		{Location: "UK"}, {Location: "ES"}, {Location: "UK"}, {Location: "DE"}, {Location: "ES"},
	}
	assert.Equal(t, []string{"UK", "ES", "DE"}, rows.Locations())
	assert.Nil(t, FilteredDataset{}.Locations())
}

func TestFilteredDataset_ValueCounts(t *testing.T) {
	rows := FilteredDataset{
		{Value: Numeric(1)}, {Value: Missing()}, {Value: Missing()}, {Value: Invalid("x")},
	}
	counts := rows.ValueCounts()
	assert.Equal(t, 1, counts[ValueNumeric])
	assert.Equal(t, 2, counts[ValueMissing])
	assert.Equal(t, 1, counts[ValueInvalid])
}

func TestOutputObject(t *testing.T) {
	out := OutputObject{
		Bucket: "curated",
		Label:  "emea",
		Date:   Date{Year: 2020, Month: time.February, Day: 1},
	}
	assert.Equal(t, "2020-02-01.csv", out.FileName())
	assert.Equal(t, "emea/2020-02-01.csv", out.Key())
	assert.Equal(t, "s3://curated/emea/2020-02-01.csv", out.Ref().String())
}
