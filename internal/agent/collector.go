// Package agent implements the sysreport collector: sampling host metrics,
// resolving connection domains and driving the per-tick state machine.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/vesaa/sysreport/internal/models"
)

const (
	bytesPerGiB = 1 << 30
	bytesPerMiB = 1 << 20
)

// Sampler turns provider readings into Samples.
type Sampler struct {
	provider  MetricsProvider
	ports     map[uint32]struct{}
	cpuWindow time.Duration
	netWindow time.Duration
	logger    *slog.Logger

	// overridable in tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSampler builds a Sampler counting established connections whose remote
// port is in ports. A nil logger discards output.
func NewSampler(p MetricsProvider, ports []int, cpuWindow, netWindow time.Duration, logger *slog.Logger) *Sampler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	set := make(map[uint32]struct{}, len(ports))
	for _, port := range ports {
		set[uint32(port)] = struct{}{}
	}
	return &Sampler{
		provider:  p,
		ports:     set,
		cpuWindow: cpuWindow,
		netWindow: netWindow,
		logger:    logger.With("component", "sampler"),
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// Probe checks that memory and network counters are readable. It is run
// once at startup; a failure there is fatal, per-tick failures are not.
func (s *Sampler) Probe(ctx context.Context) error {
	if _, err := s.provider.MemoryUsedBytes(ctx); err != nil {
		return fmt.Errorf("metrics unavailable: %w", err)
	}
	if _, err := s.provider.NetworkCounters(ctx); err != nil {
		return fmt.Errorf("metrics unavailable: %w", err)
	}
	return nil
}

// MemoryUsedGB returns used memory in GiB, rounded to 2 decimals.
func (s *Sampler) MemoryUsedGB(ctx context.Context) (float64, error) {
	used, err := s.provider.MemoryUsedBytes(ctx)
	if err != nil {
		return 0, err
	}
	return round2(float64(used) / bytesPerGiB), nil
}

// CPUPercent blocks for the CPU window and returns utilisation, rounded.
func (s *Sampler) CPUPercent(ctx context.Context) (float64, error) {
	pct, err := s.provider.CPUPercent(ctx, s.cpuWindow)
	if err != nil {
		return 0, err
	}
	return round2(pct), nil
}

// NetworkDeltaMBps reads the byte counters twice, netWindow apart, and
// returns (Δsent + Δrecv) in MiB rounded to 2 decimals.
func (s *Sampler) NetworkDeltaMBps(ctx context.Context) (float64, error) {
	before, err := s.provider.NetworkCounters(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.sleep(ctx, s.netWindow); err != nil {
		return 0, err
	}
	after, err := s.provider.NetworkCounters(ctx)
	if err != nil {
		return 0, err
	}
	delta := counterDelta(before.BytesSent, after.BytesSent) + counterDelta(before.BytesRecv, after.BytesRecv)
	return round2(float64(delta) / bytesPerMiB), nil
}

// EstablishedConnections lists ESTABLISHED sockets to a monitored remote
// port. A permission failure is reported as ErrAccessDenied.
func (s *Sampler) EstablishedConnections(ctx context.Context) ([]Connection, error) {
	conns, err := s.provider.Connections(ctx)
	if err != nil {
		if isPermission(err) {
			return nil, fmt.Errorf("%w: %v", ErrAccessDenied, err)
		}
		return nil, fmt.Errorf("listing connections: %w", err)
	}
	var out []Connection
	for _, c := range conns {
		if c.Status != "ESTABLISHED" {
			continue
		}
		if _, ok := s.ports[c.RemotePort]; !ok {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// Sample takes one complete reading. Metric failures are logged and the
// metric is recorded as 0; connection enumeration failures degrade to no
// connections. Sample never fails.
func (s *Sampler) Sample(ctx context.Context) (models.Sample, []Connection) {
	sample := models.Sample{Timestamp: s.now()}

	ram, err := s.MemoryUsedGB(ctx)
	if err != nil {
		s.logger.Error("memory read failed", "err", err)
	}
	sample.RAMGB = ram

	cpuPct, err := s.CPUPercent(ctx)
	if err != nil {
		s.logger.Error("cpu read failed", "err", err)
	}
	sample.CPUPct = cpuPct

	netMBps, err := s.NetworkDeltaMBps(ctx)
	if err != nil {
		s.logger.Error("network read failed", "err", err)
	}
	sample.NetMBps = netMBps

	conns, err := s.EstablishedConnections(ctx)
	switch {
	case errors.Is(err, ErrAccessDenied):
		s.logger.Warn("connection enumeration denied; counting 0", "err", err)
		conns = nil
	case err != nil:
		s.logger.Error("connection enumeration failed; counting 0", "err", err)
		conns = nil
	}
	sample.ConnCount = len(conns)

	return sample, conns
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// counterDelta treats a counter that went backwards (interface reset) as 0.
func counterDelta(before, after uint64) uint64 {
	if after < before {
		return 0
	}
	return after - before
}

func isPermission(err error) bool {
	if errors.Is(err, os.ErrPermission) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "operation not permitted") ||
		strings.Contains(msg, "access is denied")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
