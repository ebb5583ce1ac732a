package store

import (
	"testing"
	"time"

	"github.com/vesaa/sysreport/internal/models"
)

func sampleN(i int) models.Sample {
	return models.Sample{
		Timestamp: time.Unix(int64(i), 0).UTC(),
		ConnCount: i,
	}
}

func TestRingLengthNeverExceedsCap(t *testing.T) {
	r := New(3)
	prev := 0
	for i := 1; i <= 10; i++ {
		r.Append(sampleN(i))
		want := min(prev+1, 3)
		if r.Len() != want {
			t.Fatalf("after append %d: len %d, want %d", i, r.Len(), want)
		}
		prev = r.Len()
	}
}

func TestRingEvictsOldestFirst(t *testing.T) {
	r := New(3)
	for i := 1; i <= 3; i++ {
		if ev := r.Append(sampleN(i)); ev != nil {
			t.Fatalf("unexpected eviction while filling: %v", ev)
		}
	}

	ev := r.Append(sampleN(4))
	if len(ev) != 1 || ev[0].ConnCount != 1 {
		t.Fatalf("expected row 1 evicted, got %+v", ev)
	}
	ev = r.Append(sampleN(5))
	if len(ev) != 1 || ev[0].ConnCount != 2 {
		t.Fatalf("expected row 2 evicted, got %+v", ev)
	}

	rows := r.Rows()
	for i, want := range []int{3, 4, 5} {
		if rows[i].ConnCount != want {
			t.Fatalf("row %d: got %d, want %d", i, rows[i].ConnCount, want)
		}
	}
}

func TestRingFullWindowScenario(t *testing.T) {
	r := New(DefaultCap)
	var seed []models.Sample
	for i := 1; i <= DefaultCap; i++ {
		seed = append(seed, sampleN(i))
	}
	if ev := r.Load(seed); len(ev) != 0 {
		t.Fatalf("seeding at cap evicted %d rows", len(ev))
	}

	s := sampleN(1000)
	ev := r.Append(s)
	if len(ev) != 1 || ev[0].ConnCount != 1 {
		t.Fatalf("expected R1 evicted, got %+v", ev)
	}

	rows := r.Rows()
	if len(rows) != DefaultCap {
		t.Fatalf("len %d, want %d", len(rows), DefaultCap)
	}
	if rows[0].ConnCount != 2 {
		t.Fatalf("oldest row %d, want 2", rows[0].ConnCount)
	}
	if rows[len(rows)-1] != s {
		t.Fatalf("newest row %+v, want %+v", rows[len(rows)-1], s)
	}
}

func TestRingLoadTrimsOverflow(t *testing.T) {
	r := New(2)
	ev := r.Load([]models.Sample{sampleN(1), sampleN(2), sampleN(3), sampleN(4)})
	if len(ev) != 2 || ev[0].ConnCount != 1 || ev[1].ConnCount != 2 {
		t.Fatalf("expected rows 1,2 evicted in order, got %+v", ev)
	}
	if r.At(0).ConnCount != 3 || r.At(1).ConnCount != 4 {
		t.Fatalf("unexpected window %+v", r.Rows())
	}
}

func TestRingColumn(t *testing.T) {
	r := New(4)
	r.Load([]models.Sample{sampleN(1), sampleN(2), sampleN(3)})
	conns := models.SampleSchema.Numeric()[3]
	got := r.Column(conns)
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("column values %v", got)
	}
}

func TestNewFallsBackToDefaultCap(t *testing.T) {
	if got := New(0).Cap(); got != DefaultCap {
		t.Fatalf("cap %d, want %d", got, DefaultCap)
	}
}
