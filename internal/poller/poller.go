// Package poller keeps the dashboard's position collection fresh.
//
// A started poller fetches immediately and then once per interval. Cycles run
// on one goroutine so a loop's fetches never overlap. Every cycle carries a sequence
// number; a result is applied only if it is newer than the last applied one
// and its handle has not been stopped.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/thereiwas/internal/adapter/metrics"
	"github.com/pscheid92/thereiwas/internal/domain"
	"github.com/pscheid92/thereiwas/internal/platform/correlation"
	"github.com/pscheid92/thereiwas/internal/positions"
)

const (
	DefaultInterval    = 30 * time.Second
	DefaultMaxAccuracy = 15.0
)

// Options tunes a Poller. Zero values fall back to the defaults.
type Options struct {
	Interval    time.Duration
	MaxAccuracy float64
	Metrics     *metrics.PollerMetrics
}

// Poller fetches positions, drops inaccurate records and publishes the
// resulting snapshot. Latest is safe for concurrent use.
type Poller struct {
	source    domain.PositionSource
	publisher domain.PositionPublisher
	clock     clockwork.Clock
	interval  time.Duration
	maxAcc    float64
	metrics   *metrics.PollerMetrics

	seq atomic.Uint64

	mu      sync.RWMutex
	latest  domain.PositionSnapshot
	applied uint64
}

func New(source domain.PositionSource, publisher domain.PositionPublisher, clock clockwork.Clock, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxAccuracy <= 0 {
		opts.MaxAccuracy = DefaultMaxAccuracy
	}
	return &Poller{
		source:    source,
		publisher: publisher,
		clock:     clock,
		interval:  opts.Interval,
		maxAcc:    opts.MaxAccuracy,
		metrics:   opts.Metrics,
		latest: domain.PositionSnapshot{
			Positions: []domain.Position{},
			Center:    domain.DefaultMapCenter,
		},
	}
}

// Handle controls one running poll loop.
type Handle struct {
	cancel   context.CancelFunc
	stopped  atomic.Bool
	stopOnce sync.Once
	done     chan struct{}
}

// Stop cancels the timer. A fetch already in flight completes but its result is discarded.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() {
		h.stopped.Store(true)
		h.cancel()
	})
}

// Done is closed once the loop goroutine has returned.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) Stopped() bool {
	return h.stopped.Load()
}

// Start runs one cycle immediately and then one per interval until the handle
// is stopped or ctx is cancelled.
func (p *Poller) Start(ctx context.Context) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}

	go p.run(ctx, h)
	return h
}

// Refresh runs a single cycle on the caller's goroutine and returns the latest
// snapshot afterwards. A failed fetch leaves the previous snapshot in place.
func (p *Poller) Refresh(ctx context.Context) domain.PositionSnapshot {
	p.cycle(ctx, &Handle{cancel: func() {}, done: make(chan struct{})})
	return p.Latest()
}

func (p *Poller) run(ctx context.Context, h *Handle) {
	defer close(h.done)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.cycle(ctx, h)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			p.cycle(ctx, h)
		}
	}
}

func (p *Poller) cycle(ctx context.Context, h *Handle) {
	if h.Stopped() {
		return
	}

	seq := p.seq.Add(1)
	cycleCtx := correlation.WithID(context.WithoutCancel(ctx), correlation.NewID())

	start := p.clock.Now()
	records, err := p.source.FetchPositions(cycleCtx)
	p.observeFetch(p.clock.Since(start))

	if err != nil {
		slog.WarnContext(cycleCtx, "Poller: fetch failed, keeping previous positions", "sequence", seq, "error", err)
		p.countCycle("failed")
		return
	}

	kept := positions.FilterByAccuracy(records, p.maxAcc)

	snapshot, ok := p.apply(h, seq, kept)
	if !ok {
		slog.DebugContext(cycleCtx, "Poller: discarding stale result", "sequence", seq)
		p.countCycle("discarded")
		return
	}

	p.countCycle("applied")
	p.observeFilter(len(records), len(kept))
	slog.DebugContext(cycleCtx, "Poller: positions refreshed", "sequence", seq, "received", len(records), "retained", len(kept))

	p.publisher.PublishPositions(cycleCtx, snapshot)
}

func (p *Poller) apply(h *Handle, seq uint64, kept []domain.Position) (domain.PositionSnapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if h.Stopped() || seq <= p.applied {
		return domain.PositionSnapshot{}, false
	}

	center := p.latest.Center
	if len(kept) > 0 {
		center = domain.Coordinate{Latitude: kept[0].Latitude, Longitude: kept[0].Longitude}
	}

	p.applied = seq
	p.latest = domain.PositionSnapshot{
		Positions: kept,
		Center:    center,
		Sequence:  seq,
		FetchedAt: p.clock.Now(),
	}
	return p.latest, true
}

// Latest returns the most recently applied snapshot.
func (p *Poller) Latest() domain.PositionSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest
}

func (p *Poller) observeFetch(d time.Duration) {
	if p.metrics != nil {
		p.metrics.FetchDuration.Observe(d.Seconds())
	}
}

func (p *Poller) observeFilter(received, retained int) {
	if p.metrics != nil {
		p.metrics.RetainedRecords.Set(float64(retained))
		p.metrics.DroppedRecords.Add(float64(received - retained))
	}
}

func (p *Poller) countCycle(result string) {
	if p.metrics != nil {
		p.metrics.CyclesTotal.WithLabelValues(result).Inc()
	}
}
