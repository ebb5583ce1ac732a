// Package store holds the bounded rolling window of samples and the
// average-based classification derived from it.
package store

import "github.com/vesaa/sysreport/internal/models"

// DefaultCap is the number of rows kept when no cap is configured.
const DefaultCap = 40

// Ring is the rolling store: a fixed arena of cap slots plus the index of the
// oldest row. Rows leave strictly in insertion order.
//
// Ring is not safe for concurrent use; the collector owns it.
type Ring struct {
	slots []models.Sample
	head  int // slot of the oldest row
	n     int
}

// New returns an empty ring holding at most capacity rows.
// A capacity below 1 falls back to DefaultCap.
func New(capacity int) *Ring {
	if capacity < 1 {
		capacity = DefaultCap
	}
	return &Ring{slots: make([]models.Sample, capacity)}
}

// Cap returns the maximum number of rows.
func (r *Ring) Cap() int { return len(r.slots) }

// Len returns the current number of rows.
func (r *Ring) Len() int { return r.n }

// Append adds s as the newest row. If the ring was full the oldest row is
// overwritten and returned; otherwise the result is nil.
func (r *Ring) Append(s models.Sample) []models.Sample {
	if r.n < len(r.slots) {
		r.slots[(r.head+r.n)%len(r.slots)] = s
		r.n++
		return nil
	}
	evicted := r.slots[r.head]
	r.slots[r.head] = s
	r.head = (r.head + 1) % len(r.slots)
	return []models.Sample{evicted}
}

// Load appends rows in order and returns everything pushed out, oldest
// first. Seeding a ring with more rows than it holds trims the overflow.
func (r *Ring) Load(rows []models.Sample) []models.Sample {
	var evicted []models.Sample
	for _, s := range rows {
		evicted = append(evicted, r.Append(s)...)
	}
	return evicted
}

// At returns the i-th row, 0 being the oldest. It panics if i is out of range.
func (r *Ring) At(i int) models.Sample {
	if i < 0 || i >= r.n {
		panic("store: index out of range")
	}
	return r.slots[(r.head+i)%len(r.slots)]
}

// Rows returns a copy of the window, oldest first.
func (r *Ring) Rows() []models.Sample {
	out := make([]models.Sample, r.n)
	for i := range out {
		out[i] = r.At(i)
	}
	return out
}

// Column extracts col's values, oldest first.
func (r *Ring) Column(col models.Column) []float64 {
	out := make([]float64, r.n)
	for i := range out {
		out[i] = col.Value(r.At(i))
	}
	return out
}
