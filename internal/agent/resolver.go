package agent

import (
	"context"
	"net"
	"strings"
	"time"
)

// DomainResolver maps a remote IP to a host name. A lookup failure is
// reported as ok == false, never as an error.
type DomainResolver interface {
	Resolve(ctx context.Context, ip string) (name string, ok bool)
}

// addrLookup is the part of *net.Resolver used for PTR queries.
type addrLookup interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// DNSResolver does reverse lookups through the system resolver.
type DNSResolver struct {
	resolver addrLookup
	timeout  time.Duration
}

// NewDNSResolver bounds each lookup by timeout (0 means no bound).
func NewDNSResolver(timeout time.Duration) *DNSResolver {
	return &DNSResolver{resolver: net.DefaultResolver, timeout: timeout}
}

func (r *DNSResolver) Resolve(ctx context.Context, ip string) (string, bool) {
	if net.ParseIP(ip) == nil {
		return "", false
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	names, err := r.resolver.LookupAddr(ctx, ip)
	if err != nil || len(names) == 0 {
		return "", false
	}
	name := strings.TrimSuffix(names[0], ".")
	if name == "" {
		return "", false
	}
	return name, true
}
