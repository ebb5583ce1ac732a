package agent

import (
	"context"
	"testing"
)

func TestAcceptDomain(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"example.com", true},
		{"edge.cdn.example.net", true},
		{"142.250.74.46", false},
		{"ip-10-0-0-12.ec2.internal", false},
		{"host-ip-1.example.com", false},
		{"IP-10-0-0-12.ec2.internal", false},
		{"localhost", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := AcceptDomain(tt.name); got != tt.want {
			t.Errorf("AcceptDomain(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestAggregatePercentages(t *testing.T) {
	r := newFakeResolver(map[string]string{
		"10.0.0.1": "a.com",
		"10.0.0.2": "a.com",
		"10.0.0.3": "b.com",
	})
	conns := []Connection{
		conn("10.0.0.1", 443),
		conn("10.0.0.1", 443),
		conn("10.0.0.2", 80),
		conn("10.0.0.3", 443),
	}

	got := NewDomainAggregator(r).Aggregate(context.Background(), conns)
	if len(got) != 2 {
		t.Fatalf("expected 2 domains, got %+v", got)
	}
	if got[0].Domain != "a.com" || got[0].RequestCount != 3 || got[0].Percentage != 75 {
		t.Errorf("a.com record %+v", got[0])
	}
	if got[1].Domain != "b.com" || got[1].RequestCount != 1 || got[1].Percentage != 25 {
		t.Errorf("b.com record %+v", got[1])
	}
	if sum := got[0].Percentage + got[1].Percentage; sum != 100 {
		t.Errorf("percentages sum to %v", sum)
	}
	if r.calls["10.0.0.1"] != 1 {
		t.Errorf("10.0.0.1 resolved %d times, want 1", r.calls["10.0.0.1"])
	}
}

func TestAggregateExcludesRejectedAndUnresolved(t *testing.T) {
	r := newFakeResolver(map[string]string{
		"10.0.0.1": "a.com",
		"10.0.0.2": "10.0.0.2",
		"10.0.0.3": "ip-10-0-0-3.eu-west-1.compute.internal",
		"10.0.0.4": "router",
	})
	conns := []Connection{
		conn("10.0.0.1", 443),
		conn("10.0.0.2", 443),
		conn("10.0.0.3", 443),
		conn("10.0.0.4", 443),
		conn("10.0.0.5", 443), // no PTR
	}

	got := NewDomainAggregator(r).Aggregate(context.Background(), conns)
	if len(got) != 1 || got[0].Domain != "a.com" || got[0].Percentage != 100 {
		t.Fatalf("expected only a.com at 100%%, got %+v", got)
	}
}

func TestAggregateEmpty(t *testing.T) {
	got := NewDomainAggregator(newFakeResolver(nil)).Aggregate(context.Background(), nil)
	if len(got) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", got)
	}
}

func TestAggregateRoundsShares(t *testing.T) {
	r := newFakeResolver(map[string]string{"1.0.0.1": "a.com", "1.0.0.2": "b.com", "1.0.0.3": "c.com"})
	got := NewDomainAggregator(r).Aggregate(context.Background(), []Connection{
		conn("1.0.0.1", 443), conn("1.0.0.2", 443), conn("1.0.0.3", 443),
	})
	for _, rec := range got {
		if rec.Percentage != 33.33 {
			t.Errorf("%s share %v, want 33.33", rec.Domain, rec.Percentage)
		}
	}
	if got[0].Domain != "a.com" || got[2].Domain != "c.com" {
		t.Errorf("ties should sort by name: %+v", got)
	}
}

func TestAggregateFoldsCase(t *testing.T) {
	r := newFakeResolver(map[string]string{
		"10.0.0.1": "Example.com",
		"10.0.0.2": "example.com",
		"10.0.0.3": "IP-10-0-0-3.ec2.internal",
	})
	got := NewDomainAggregator(r).Aggregate(context.Background(), []Connection{
		conn("10.0.0.1", 443), conn("10.0.0.2", 443), conn("10.0.0.3", 443),
	})
	if len(got) != 1 {
		t.Fatalf("expected one domain, got %+v", got)
	}
	if got[0].Domain != "example.com" || got[0].RequestCount != 2 || got[0].Percentage != 100 {
		t.Errorf("record %+v, want example.com x2 at 100%%", got[0])
	}
}
