package agent

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/vesaa/sysreport/internal/models"
)

var dottedQuad = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){3}$`)

// AcceptDomain reports whether a resolved name counts as a domain.
// Literal IPv4 names, generic cloud reverse-DNS names ("ip-10-0-0-1...")
// and names without a dot are rejected. Matching ignores case.
func AcceptDomain(name string) bool {
	name = strings.ToLower(name)
	switch {
	case name == "":
		return false
	case dottedQuad.MatchString(name):
		return false
	case strings.Contains(name, "ip-"):
		return false
	case !strings.Contains(name, "."):
		return false
	}
	return true
}

// DomainAggregator groups live connections by resolved domain.
type DomainAggregator struct {
	resolver DomainResolver
}

// NewDomainAggregator wraps resolver.
func NewDomainAggregator(resolver DomainResolver) *DomainAggregator {
	return &DomainAggregator{resolver: resolver}
}

// Aggregate builds a fresh domain snapshot from conns. Each remote IP is
// resolved at most once per call; nothing is remembered between calls.
// Names are grouped lower-cased.
// Records are ordered by request count, then domain name.
func (a *DomainAggregator) Aggregate(ctx context.Context, conns []Connection) []models.DomainRecord {
	type lookup struct {
		name string
		ok   bool
	}
	resolved := make(map[string]lookup)
	counts := make(map[string]int)
	total := 0

	for _, c := range conns {
		l, seen := resolved[c.RemoteIP]
		if !seen {
			name, ok := a.resolver.Resolve(ctx, c.RemoteIP)
			name = strings.ToLower(name)
			l = lookup{name: name, ok: ok && AcceptDomain(name)}
			resolved[c.RemoteIP] = l
		}
		if !l.ok {
			continue
		}
		counts[l.name]++
		total++
	}

	records := make([]models.DomainRecord, 0, len(counts))
	for domain, n := range counts {
		records = append(records, models.DomainRecord{
			Domain:       domain,
			RequestCount: n,
			Percentage:   share(n, total),
		})
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].RequestCount != records[j].RequestCount {
			return records[i].RequestCount > records[j].RequestCount
		}
		return records[i].Domain < records[j].Domain
	})
	return records
}

func share(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(n) / float64(total) * 100)
}
