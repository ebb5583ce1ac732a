package agent

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	psnet "github.com/shirou/gopsutil/v4/net"
)

// NetCounters are cumulative byte counters summed over all interfaces.
type NetCounters struct {
	BytesSent uint64
	BytesRecv uint64
}

// Connection is one entry of the OS socket table.
type Connection struct {
	Status     string
	LocalPort  uint32
	RemoteIP   string
	RemotePort uint32
}

// MetricsProvider is the host telemetry the Sampler reads.
type MetricsProvider interface {
	MemoryUsedBytes(ctx context.Context) (uint64, error)
	// CPUPercent blocks for window and returns overall utilisation.
	CPUPercent(ctx context.Context, window time.Duration) (float64, error)
	NetworkCounters(ctx context.Context) (NetCounters, error)
	// Connections lists inet sockets in every state.
	Connections(ctx context.Context) ([]Connection, error)
}

// HostProvider implements MetricsProvider with gopsutil.
type HostProvider struct{}

// NewHostProvider returns the gopsutil-backed provider.
func NewHostProvider() *HostProvider {
	return &HostProvider{}
}

func (p *HostProvider) MemoryUsedBytes(ctx context.Context) (uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("virtual memory: %w", err)
	}
	return vm.Used, nil
}

func (p *HostProvider) CPUPercent(ctx context.Context, window time.Duration) (float64, error) {
	pcts, err := cpu.PercentWithContext(ctx, window, false)
	if err != nil {
		return 0, fmt.Errorf("cpu percent: %w", err)
	}
	if len(pcts) == 0 {
		return 0, errors.New("cpu percent: no data")
	}
	return pcts[0], nil
}

func (p *HostProvider) NetworkCounters(ctx context.Context) (NetCounters, error) {
	stats, err := psnet.IOCountersWithContext(ctx, false) // aggregate all interfaces
	if err != nil {
		return NetCounters{}, fmt.Errorf("io counters: %w", err)
	}
	if len(stats) == 0 {
		return NetCounters{}, errors.New("io counters: no interfaces")
	}
	return NetCounters{BytesSent: stats[0].BytesSent, BytesRecv: stats[0].BytesRecv}, nil
}

func (p *HostProvider) Connections(ctx context.Context) ([]Connection, error) {
	// "inet" covers tcp4, tcp6, udp4 and udp6.
	conns, err := psnet.ConnectionsWithContext(ctx, "inet")
	if err != nil {
		return nil, err
	}
	out := make([]Connection, 0, len(conns))
	for _, c := range conns {
		out = append(out, Connection{
			Status:     c.Status,
			LocalPort:  c.Laddr.Port,
			RemoteIP:   c.Raddr.IP,
			RemotePort: c.Raddr.Port,
		})
	}
	return out, nil
}

// Describe returns a descriptive OS version string, or runtime.GOOS as fallback.
func (p *HostProvider) Describe(ctx context.Context) string {
	info, err := host.InfoWithContext(ctx)
	if err == nil && info.Platform != "" {
		name := info.Platform
		if info.PlatformVersion != "" {
			name = fmt.Sprintf("%s %s", info.Platform, info.PlatformVersion) // e.g., "ubuntu 22.04"
		}
		if info.Hostname != "" {
			return fmt.Sprintf("%s (%s)", info.Hostname, name)
		}
		return name
	}
	return runtime.GOOS
}
