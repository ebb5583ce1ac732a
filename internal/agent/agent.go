package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/vesaa/sysreport/internal/models"
	"github.com/vesaa/sysreport/internal/store"
)

// Sink persists the three report artifacts. Every call replaces or appends
// a whole artifact; there are no partial updates.
type Sink interface {
	LoadStore(ctx context.Context) ([]models.Sample, error)
	SaveStore(ctx context.Context, rows []models.Sample) error
	AppendArchive(ctx context.Context, rows []models.Sample) error
	SaveDomains(ctx context.Context, records []models.DomainRecord) error
}

// Options tune the scheduler.
type Options struct {
	Interval   time.Duration // delay between ticks
	FlushEvery int           // persist every N ticks; < 1 means every tick
}

// TickResult is what one tick produced.
type TickResult struct {
	Seq            uint64
	Sample         models.Sample
	Evicted        []models.Sample
	Classification store.Classification
	Domains        []models.DomainRecord
	Flushed        bool
	Errors         []error // persistence failures, already logged
}

// Agent owns the rolling store and runs ticks one at a time. It is the
// only writer of the sink.
type Agent struct {
	sampler    *Sampler
	aggregator *DomainAggregator
	sink       Sink
	ring       *store.Ring
	opts       Options
	logger     *slog.Logger

	pendingArchive []models.Sample // evicted, not yet persisted
	domains        []models.DomainRecord
	haveSnapshot   bool
	sinceFlush     int
}

// New wires an Agent. ring is usually empty; Restore seeds it.
func New(sampler *Sampler, aggregator *DomainAggregator, sink Sink, ring *store.Ring, opts Options, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.FlushEvery < 1 {
		opts.FlushEvery = 1
	}
	return &Agent{
		sampler:    sampler,
		aggregator: aggregator,
		sink:       sink,
		ring:       ring,
		opts:       opts,
		logger:     logger.With("component", "agent"),
	}
}

// Restore loads the persisted store into the ring. Rows beyond the ring's
// cap are evicted oldest first and queued for the archive.
func (a *Agent) Restore(ctx context.Context) error {
	rows, err := a.sink.LoadStore(ctx)
	if err != nil {
		return fmt.Errorf("loading store: %w", err)
	}
	evicted := a.ring.Load(rows)
	a.pendingArchive = append(a.pendingArchive, evicted...)
	a.logger.Info("store restored", "rows", a.ring.Len(), "cap", a.ring.Cap(), "trimmed", len(evicted))
	return nil
}

// Rows returns the current window, oldest first.
func (a *Agent) Rows() []models.Sample { return a.ring.Rows() }

// PendingArchive returns evicted rows not yet written to the archive.
func (a *Agent) PendingArchive() []models.Sample {
	return append([]models.Sample(nil), a.pendingArchive...)
}

// Tick runs Sample → Append → Classify → DomainSnapshot and, when the flush
// cadence is due, Persist. seq numbers the tick for logging.
func (a *Agent) Tick(ctx context.Context, seq uint64) TickResult {
	sample, conns := a.sampler.Sample(ctx)

	evicted := a.ring.Append(sample)
	a.pendingArchive = append(a.pendingArchive, evicted...)

	class := store.ClassifyRows(a.ring.Rows(), models.SampleSchema)

	a.domains = a.aggregator.Aggregate(ctx, conns)
	a.haveSnapshot = true
	a.sinceFlush++

	a.logger.Info("tick",
		"seq", seq,
		"ram_gb", sample.RAMGB,
		"cpu_pct", sample.CPUPct,
		"net_mbps", sample.NetMBps,
		"conn_count", sample.ConnCount,
		"domains", len(a.domains),
		"rows", a.ring.Len(),
		"evicted", len(evicted),
	)

	res := TickResult{
		Seq:            seq,
		Sample:         sample,
		Evicted:        evicted,
		Classification: class,
		Domains:        a.domains,
	}
	if a.sinceFlush >= a.opts.FlushEvery {
		res.Errors = a.Flush(ctx)
		res.Flushed = true
	}
	return res
}

// Flush persists store, archive and domain report. Each artifact is tried
// regardless of the others failing. Evicted rows stay queued until the
// archive accepts them, so a later flush appends them in order.
func (a *Agent) Flush(ctx context.Context) []error {
	var errs []error

	if err := a.sink.SaveStore(ctx, a.ring.Rows()); err != nil {
		errs = append(errs, newPersistError(ArtifactStore, err))
	}

	if len(a.pendingArchive) > 0 {
		if err := a.sink.AppendArchive(ctx, a.pendingArchive); err != nil {
			errs = append(errs, newPersistError(ArtifactArchive, err))
		} else {
			a.pendingArchive = nil
		}
	}

	if a.haveSnapshot {
		if err := a.sink.SaveDomains(ctx, a.domains); err != nil {
			errs = append(errs, newPersistError(ArtifactDomains, err))
		}
	}

	a.sinceFlush = 0
	for _, err := range errs {
		var pe *PersistError
		if errors.As(err, &pe) && pe.Retryable {
			a.logger.Warn("persist skipped this tick", "artifact", pe.Artifact, "err", pe.Err)
			continue
		}
		a.logger.Error("persist failed", "err", err)
	}
	return errs
}

// Run ticks until ctx is cancelled. Ticks are separated by Options.Interval
// measured from the end of the previous tick. Cancellation is only observed
// between ticks: a tick in progress, including its writes, always completes.
func (a *Agent) Run(ctx context.Context) error {
	tickCtx := context.WithoutCancel(ctx)
	timer := time.NewTimer(0)
	defer timer.Stop()

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			a.shutdown(tickCtx)
			return nil
		case <-timer.C:
		}
		if ctx.Err() != nil {
			a.shutdown(tickCtx)
			return nil
		}

		seq++
		a.Tick(tickCtx, seq)
		timer.Reset(a.opts.Interval)
	}
}

// shutdown flushes anything a batched cadence left unwritten.
func (a *Agent) shutdown(ctx context.Context) {
	if a.sinceFlush > 0 || len(a.pendingArchive) > 0 {
		a.Flush(ctx)
	}
	a.logger.Info("collector stopped", "rows", a.ring.Len())
}
