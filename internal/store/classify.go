package store

import (
	"fmt"

	"github.com/vesaa/sysreport/internal/models"
)

// Tag relates a cell to the mean of its column.
type Tag int

const (
	Equal Tag = iota
	Below
	Above
)

// String returns the lower-case tag name.
func (t Tag) String() string {
	switch t {
	case Equal:
		return "equal"
	case Below:
		return "below"
	case Above:
		return "above"
	default:
		return fmt.Sprintf("tag(%d)", int(t))
	}
}

// MarshalText renders tags by name in JSON.
func (t Tag) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// Mean is the arithmetic mean of values, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Classify tags every value against the mean of all values.
// Comparison is strict, so values equal to the mean are Equal.
func Classify(values []float64) []Tag {
	mean := Mean(values)
	tags := make([]Tag, len(values))
	for i, v := range values {
		switch {
		case v > mean:
			tags[i] = Above
		case v < mean:
			tags[i] = Below
		default:
			tags[i] = Equal
		}
	}
	return tags
}

// ColumnStats is the classification of one numeric column.
type ColumnStats struct {
	Name string  `json:"name"`
	Mean float64 `json:"mean"`
	Tags []Tag   `json:"tags"` // one per row, oldest first
}

// Classification is the read-derived view of a table: one entry per numeric
// column of the schema, in schema order.
type Classification struct {
	Rows    int           `json:"rows"`
	Columns []ColumnStats `json:"columns"`
}

// ClassifyRows computes means and tags for every numeric column of schema
// over rows. rows is only read.
func ClassifyRows(rows []models.Sample, schema models.Schema) Classification {
	out := Classification{Rows: len(rows)}
	for _, col := range schema.Numeric() {
		values := make([]float64, len(rows))
		for i, s := range rows {
			values[i] = col.Value(s)
		}
		out.Columns = append(out.Columns, ColumnStats{
			Name: col.Name,
			Mean: Mean(values),
			Tags: Classify(values),
		})
	}
	return out
}

// Column looks up a column's stats by header name.
func (c Classification) Column(name string) (ColumnStats, bool) {
	for _, cs := range c.Columns {
		if cs.Name == name {
			return cs, true
		}
	}
	return ColumnStats{}, false
}

// RowTags returns the tags of row i keyed by column name.
func (c Classification) RowTags(i int) map[string]Tag {
	tags := make(map[string]Tag, len(c.Columns))
	for _, cs := range c.Columns {
		if i >= 0 && i < len(cs.Tags) {
			tags[cs.Name] = cs.Tags[i]
		}
	}
	return tags
}
