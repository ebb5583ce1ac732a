package agent

import (
	"context"
	"errors"
	"time"

	"github.com/vesaa/sysreport/internal/models"
)

type fakeProvider struct {
	used     uint64
	memErr   error
	cpu      float64
	cpuErr   error
	counters []NetCounters
	netErr   error
	reads    int
	conns    []Connection
	connErr  error
	ticked   chan struct{} // signalled once per Connections call
}

func (p *fakeProvider) MemoryUsedBytes(context.Context) (uint64, error) {
	return p.used, p.memErr
}

func (p *fakeProvider) CPUPercent(context.Context, time.Duration) (float64, error) {
	return p.cpu, p.cpuErr
}

func (p *fakeProvider) NetworkCounters(context.Context) (NetCounters, error) {
	if p.netErr != nil {
		return NetCounters{}, p.netErr
	}
	if len(p.counters) == 0 {
		return NetCounters{}, nil
	}
	i := min(p.reads, len(p.counters)-1)
	p.reads++
	return p.counters[i], nil
}

func (p *fakeProvider) Connections(context.Context) ([]Connection, error) {
	if p.ticked != nil {
		select {
		case p.ticked <- struct{}{}:
		default:
		}
	}
	return p.conns, p.connErr
}

type fakeResolver struct {
	names map[string]string
	calls map[string]int
}

func newFakeResolver(names map[string]string) *fakeResolver {
	return &fakeResolver{names: names, calls: make(map[string]int)}
}

func (r *fakeResolver) Resolve(_ context.Context, ip string) (string, bool) {
	r.calls[ip]++
	name, ok := r.names[ip]
	return name, ok
}

type memSink struct {
	store       []models.Sample
	archive     []models.Sample
	domains     []models.DomainRecord
	domainSaves int
	storeSaves  int

	loadErr    error
	storeErr   error
	archiveErr error
	domainsErr error
}

func (s *memSink) LoadStore(context.Context) ([]models.Sample, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return append([]models.Sample(nil), s.store...), nil
}

func (s *memSink) SaveStore(_ context.Context, rows []models.Sample) error {
	if s.storeErr != nil {
		return s.storeErr
	}
	s.storeSaves++
	s.store = append([]models.Sample(nil), rows...)
	return nil
}

func (s *memSink) AppendArchive(_ context.Context, rows []models.Sample) error {
	if s.archiveErr != nil {
		return s.archiveErr
	}
	s.archive = append(s.archive, rows...)
	return nil
}

func (s *memSink) SaveDomains(_ context.Context, records []models.DomainRecord) error {
	if s.domainsErr != nil {
		return s.domainsErr
	}
	s.domainSaves++
	s.domains = append([]models.DomainRecord(nil), records...)
	return nil
}

var errLocked = errors.New("database is locked")

func conn(ip string, port uint32) Connection {
	return Connection{Status: "ESTABLISHED", LocalPort: 50000, RemoteIP: ip, RemotePort: port}
}

func newTestSampler(p MetricsProvider) *Sampler {
	s := NewSampler(p, []int{80, 443}, time.Second, time.Second, nil)
	s.sleep = func(context.Context, time.Duration) error { return nil }
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	s.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Minute)
	}
	return s
}
