package agent

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubLookup struct {
	names    []string
	err      error
	calls    int
	deadline bool
}

func (s *stubLookup) LookupAddr(ctx context.Context, _ string) ([]string, error) {
	s.calls++
	_, s.deadline = ctx.Deadline()
	return s.names, s.err
}

func TestDNSResolverResolve(t *testing.T) {
	tests := []struct {
		name     string
		ip       string
		lookup   *stubLookup
		want     string
		wantOK   bool
		wantCall bool
	}{
		{"trailing dot trimmed", "93.184.216.34", &stubLookup{names: []string{"example.com."}}, "example.com", true, true},
		{"first name wins", "2606:4700::1", &stubLookup{names: []string{"one.one.one.one.", "alt.example."}}, "one.one.one.one", true, true},
		{"not an ip", "not-an-ip", &stubLookup{names: []string{"example.com."}}, "", false, false},
		{"empty input", "", &stubLookup{}, "", false, false},
		{"lookup error", "10.0.0.1", &stubLookup{err: errors.New("nxdomain")}, "", false, true},
		{"no names", "10.0.0.1", &stubLookup{}, "", false, true},
		{"root only", "10.0.0.1", &stubLookup{names: []string{"."}}, "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &DNSResolver{resolver: tt.lookup, timeout: time.Second}
			got, ok := r.Resolve(context.Background(), tt.ip)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Resolve(%q) = (%q, %v), want (%q, %v)", tt.ip, got, ok, tt.want, tt.wantOK)
			}
			if (tt.lookup.calls > 0) != tt.wantCall {
				t.Errorf("lookup calls = %d, want called=%v", tt.lookup.calls, tt.wantCall)
			}
		})
	}
}

func TestDNSResolverAppliesTimeout(t *testing.T) {
	l := &stubLookup{names: []string{"example.com."}}
	r := &DNSResolver{resolver: l, timeout: 50 * time.Millisecond}
	if _, ok := r.Resolve(context.Background(), "10.0.0.1"); !ok {
		t.Fatal("expected a name")
	}
	if !l.deadline {
		t.Error("lookup ran without a deadline")
	}

	l = &stubLookup{names: []string{"example.com."}}
	r = &DNSResolver{resolver: l}
	r.Resolve(context.Background(), "10.0.0.1")
	if l.deadline {
		t.Error("zero timeout should not add a deadline")
	}
}
