package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const scrapeTimeout = 5 * time.Second

// reportCollector exposes the persisted report as gauges. Values are read
// from the database on every scrape, so the viewer holds no state of its own.
type reportCollector struct {
	reader Reader
	logger *slog.Logger

	ramGB       *prometheus.Desc
	cpuPct      *prometheus.Desc
	netMBps     *prometheus.Desc
	connCount   *prometheus.Desc
	storeRows   *prometheus.Desc
	archiveRows *prometheus.Desc
	domainShare *prometheus.Desc
	scrapeOK    *prometheus.Desc
}

func newReportCollector(reader Reader, logger *slog.Logger) *reportCollector {
	return &reportCollector{
		reader:      reader,
		logger:      logger,
		ramGB:       prometheus.NewDesc("sysreport_ram_used_gigabytes", "Used memory in the latest sample.", nil, nil),
		cpuPct:      prometheus.NewDesc("sysreport_cpu_percent", "CPU utilisation in the latest sample.", nil, nil),
		netMBps:     prometheus.NewDesc("sysreport_network_megabytes_per_second", "Network throughput in the latest sample.", nil, nil),
		connCount:   prometheus.NewDesc("sysreport_established_connections", "Established HTTP(S) connections in the latest sample.", nil, nil),
		storeRows:   prometheus.NewDesc("sysreport_store_rows", "Rows in the rolling store.", nil, nil),
		archiveRows: prometheus.NewDesc("sysreport_archive_rows", "Rows in the archive.", nil, nil),
		domainShare: prometheus.NewDesc("sysreport_domain_share_percent", "Share of live connections per domain.", []string{"domain"}, nil),
		scrapeOK:    prometheus.NewDesc("sysreport_scrape_success", "1 if the report tables were readable.", nil, nil),
	}
}

// NewRegistry returns a registry holding only the report collector.
func NewRegistry(reader Reader, logger *slog.Logger) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(newReportCollector(reader, logger))
	return reg
}

func (c *reportCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.ramGB
	ch <- c.cpuPct
	ch <- c.netMBps
	ch <- c.connCount
	ch <- c.storeRows
	ch <- c.archiveRows
	ch <- c.domainShare
	ch <- c.scrapeOK
}

func (c *reportCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), scrapeTimeout)
	defer cancel()

	ok := 1.0
	defer func() {
		ch <- prometheus.MustNewConstMetric(c.scrapeOK, prometheus.GaugeValue, ok)
	}()

	rows, err := c.reader.LoadStore(ctx)
	if err != nil {
		c.logger.Warn("scrape: load store", "err", err)
		ok = 0
		return
	}
	ch <- prometheus.MustNewConstMetric(c.storeRows, prometheus.GaugeValue, float64(len(rows)))
	if n := len(rows); n > 0 {
		latest := rows[n-1]
		ch <- prometheus.MustNewConstMetric(c.ramGB, prometheus.GaugeValue, latest.RAMGB)
		ch <- prometheus.MustNewConstMetric(c.cpuPct, prometheus.GaugeValue, latest.CPUPct)
		ch <- prometheus.MustNewConstMetric(c.netMBps, prometheus.GaugeValue, latest.NetMBps)
		ch <- prometheus.MustNewConstMetric(c.connCount, prometheus.GaugeValue, float64(latest.ConnCount))
	}

	archived, err := c.reader.CountArchive(ctx)
	if err != nil {
		c.logger.Warn("scrape: count archive", "err", err)
		ok = 0
	} else {
		ch <- prometheus.MustNewConstMetric(c.archiveRows, prometheus.GaugeValue, float64(archived))
	}

	domains, err := c.reader.LoadDomains(ctx)
	if err != nil {
		c.logger.Warn("scrape: load domains", "err", err)
		ok = 0
		return
	}
	for _, d := range domains {
		ch <- prometheus.MustNewConstMetric(c.domainShare, prometheus.GaugeValue, d.Percentage, d.Domain)
	}
}
