package models

import (
	"fmt"
	"strconv"
)

// Kind is the semantic type of a report column.
type Kind string

const (
	KindTime   Kind = "time"
	KindFloat  Kind = "float"
	KindInt    Kind = "int"
	KindString Kind = "string"
)

// TimestampLayout is how sample timestamps are rendered in reports.
const TimestampLayout = "2006-01-02 15:04:05"

// Column describes one column of a report table.
//
// Format is a time layout for KindTime and a fmt verb for KindFloat.
// Value is set for numeric sample columns only; it is what the
// classification engine averages.
type Column struct {
	Name   string               `json:"name"`
	Kind   Kind                 `json:"kind"`
	Format string               `json:"format,omitempty"`
	Value  func(Sample) float64 `json:"-"`
}

// Numeric reports whether the column takes part in classification.
func (c Column) Numeric() bool { return c.Value != nil }

// Render formats the column's cell for s. Only meaningful for sample columns.
func (c Column) Render(s Sample) string {
	switch c.Kind {
	case KindTime:
		return s.Timestamp.Format(c.Format)
	case KindFloat:
		return fmt.Sprintf(c.Format, c.Value(s))
	case KindInt:
		return strconv.Itoa(int(c.Value(s)))
	default:
		return ""
	}
}

// Schema is an ordered column list. The same descriptor drives the store,
// the archive and anything that renders them.
type Schema []Column

// Names returns the column headers in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Numeric returns the classifiable columns in order.
func (s Schema) Numeric() []Column {
	var out []Column
	for _, c := range s {
		if c.Numeric() {
			out = append(out, c)
		}
	}
	return out
}

// Render formats every column of s.
func (s Schema) Render(row Sample) []string {
	cells := make([]string, len(s))
	for i, c := range s {
		cells[i] = c.Render(row)
	}
	return cells
}

// SampleSchema is the column layout of the store and the archive.
var SampleSchema = Schema{
	{Name: "Date", Kind: KindTime, Format: TimestampLayout},
	{Name: "RAM(GB)", Kind: KindFloat, Format: "%.2f", Value: func(s Sample) float64 { return s.RAMGB }},
	{Name: "CPU(%)", Kind: KindFloat, Format: "%.2f", Value: func(s Sample) float64 { return s.CPUPct }},
	{Name: "Network(MB/s)", Kind: KindFloat, Format: "%.2f", Value: func(s Sample) float64 { return s.NetMBps }},
	{Name: "Connections", Kind: KindInt, Value: func(s Sample) float64 { return float64(s.ConnCount) }},
}

// DomainSchema is the column layout of the domain report.
var DomainSchema = Schema{
	{Name: "Domain", Kind: KindString},
	{Name: "RequestCount", Kind: KindInt},
	{Name: "Percentage", Kind: KindFloat, Format: "%.2f"},
}
