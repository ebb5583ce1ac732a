// Package models defines the sample, domain and schema types shared by the
// collector, the GORM sink and the report viewer.
package models

import "time"

// Sample is one tick's reading of host resources.
// A Sample is a value: nothing modifies it after the Sampler returns it.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	RAMGB     float64   `json:"ram_gb"`   // used memory, GiB, 2 decimals
	CPUPct    float64   `json:"cpu_pct"`  // percent 0-100, 2 decimals
	NetMBps   float64   `json:"net_mbps"` // sent+recv MiB over the measurement window
	ConnCount int       `json:"conn_count"`
}

// StoreRow is the persisted form of a Sample in the rolling store.
// Position (1-based) orders rows oldest first; the whole table is replaced on save.
type StoreRow struct {
	Position  int       `gorm:"primaryKey;autoIncrement:false"`
	Timestamp time.Time `gorm:"not null"`
	RAMGB     float64   `gorm:"column:ram_gb"`
	CPUPct    float64   `gorm:"column:cpu_pct"`
	NetMBps   float64   `gorm:"column:net_mbps"`
	ConnCount int       `gorm:"column:conn_count"`
}

// TableName pins the GORM table name.
func (StoreRow) TableName() string { return "store_rows" }

// NewStoreRow places s at position pos of the store table.
func NewStoreRow(pos int, s Sample) StoreRow {
	return StoreRow{
		Position:  pos,
		Timestamp: s.Timestamp,
		RAMGB:     s.RAMGB,
		CPUPct:    s.CPUPct,
		NetMBps:   s.NetMBps,
		ConnCount: s.ConnCount,
	}
}

// Sample converts the row back to its in-memory form.
func (r StoreRow) Sample() Sample {
	return Sample{
		Timestamp: r.Timestamp,
		RAMGB:     r.RAMGB,
		CPUPct:    r.CPUPct,
		NetMBps:   r.NetMBps,
		ConnCount: r.ConnCount,
	}
}

// ArchiveRow is an evicted Sample in the append-only archive.
// The autoincrement ID records append order; rows are never updated.
type ArchiveRow struct {
	ID         uint      `gorm:"primaryKey"`
	Timestamp  time.Time `gorm:"not null"`
	RAMGB      float64   `gorm:"column:ram_gb"`
	CPUPct     float64   `gorm:"column:cpu_pct"`
	NetMBps    float64   `gorm:"column:net_mbps"`
	ConnCount  int       `gorm:"column:conn_count"`
	ArchivedAt time.Time `gorm:"index"`
}

// TableName pins the GORM table name.
func (ArchiveRow) TableName() string { return "archive_rows" }

// NewArchiveRow stamps an evicted sample with its archive time.
func NewArchiveRow(s Sample, at time.Time) ArchiveRow {
	return ArchiveRow{
		Timestamp:  s.Timestamp,
		RAMGB:      s.RAMGB,
		CPUPct:     s.CPUPct,
		NetMBps:    s.NetMBps,
		ConnCount:  s.ConnCount,
		ArchivedAt: at,
	}
}

// Sample converts the row back to its in-memory form.
func (r ArchiveRow) Sample() Sample {
	return Sample{
		Timestamp: r.Timestamp,
		RAMGB:     r.RAMGB,
		CPUPct:    r.CPUPct,
		NetMBps:   r.NetMBps,
		ConnCount: r.ConnCount,
	}
}
