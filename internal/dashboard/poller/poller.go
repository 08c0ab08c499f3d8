// Package poller keeps a dashboard in sync with the bin service.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/poubelles/poubelles-backend/internal/bins/domain"
	"github.com/poubelles/poubelles-backend/internal/dashboard/client"
	"github.com/poubelles/poubelles-backend/internal/dashboard/state"
	"github.com/poubelles/poubelles-backend/pkg/logger"
	"github.com/poubelles/poubelles-backend/pkg/metrics"
)

// DefaultInterval is the time between two polls
const DefaultInterval = 30 * time.Second

// ErrAlreadyStarted is returned by Start on a running poller
var ErrAlreadyStarted = errors.New("poller already started")

// Fetcher loads the current bin inventory
type Fetcher interface {
	ListBins(ctx context.Context) ([]domain.BinRecord, error)
}

// Options tunes a Poller. Zero values pick the defaults.
type Options struct {
	Interval time.Duration
	Metrics  *metrics.Metrics
	// OnUpdate runs after every applied snapshot
	OnUpdate func(state.Snapshot)
	Now      func() time.Time
}

// Status describes the outcome of recent polls
type Status struct {
	Running             bool
	ConsecutiveFailures int
	LastError           error
	LastSuccess         time.Time
}

// Poller refreshes a dashboard from a Fetcher on a fixed interval.
// A tick that fires while a fetch is outstanding is skipped.
type Poller struct {
	fetcher   Fetcher
	dashboard *state.Dashboard
	interval  time.Duration
	metrics   *metrics.Metrics
	onUpdate  func(state.Snapshot)
	now       func() time.Time
	logger    *logger.Logger

	loop sync.WaitGroup

	mu         sync.Mutex
	cancel     context.CancelFunc
	generation uint64
	// fetching is set while a fetch launched by generation fetchGen is outstanding
	fetching bool
	fetchGen uint64
	status   Status
}

// New creates a stopped poller
func New(fetcher Fetcher, dashboard *state.Dashboard, log *logger.Logger, opts Options) *Poller {
	p := &Poller{
		fetcher:   fetcher,
		dashboard: dashboard,
		interval:  opts.Interval,
		metrics:   opts.Metrics,
		onUpdate:  opts.OnUpdate,
		now:       opts.Now,
		logger:    log.WithComponent("poller"),
	}
	if p.interval <= 0 {
		p.interval = DefaultInterval
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Start polls once immediately and then every interval until Stop or until ctx is done
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.generation++
	p.status.Running = true

	p.loop.Add(1)
	go p.run(ctx, p.generation)

	p.logger.Info().Dur("interval", p.interval).Msg("poller started")
	return nil
}

// Stop cancels the schedule and waits for the loop to exit. A fetch still
// in flight is not awaited; its result is discarded. Stop is idempotent.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.generation++
	p.status.Running = false
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		p.logger.Info().Msg("poller stopped")
	}
	p.loop.Wait()
}

// Run starts the poller and blocks until ctx is done
func (p *Poller) Run(ctx context.Context) error {
	if err := p.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	p.Stop()
	return nil
}

// Status returns a copy of the poll status
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Poller) run(ctx context.Context, gen uint64) {
	defer p.loop.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.tick(ctx, gen)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx, gen)
		}
	}
}

// tick launches a fetch unless one of the same generation is outstanding.
// A fetch left over from before a restart does not hold up the new schedule.
// It reports whether a fetch was launched.
func (p *Poller) tick(ctx context.Context, gen uint64) bool {
	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		return false
	}
	if p.fetching && p.fetchGen == gen {
		p.mu.Unlock()
		p.metrics.Poll(metrics.ResultSkipped)
		p.logger.Debug().Msg("previous poll still in flight, skipping tick")
		return false
	}
	p.fetching = true
	p.fetchGen = gen
	p.mu.Unlock()

	go func() {
		defer p.release(gen)
		p.poll(ctx, gen)
	}()
	return true
}

func (p *Poller) release(gen uint64) {
	p.mu.Lock()
	if p.fetching && p.fetchGen == gen {
		p.fetching = false
	}
	p.mu.Unlock()
}

func (p *Poller) poll(ctx context.Context, gen uint64) {
	bins, err := p.fetcher.ListBins(ctx)

	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		p.logger.Debug().Msg("discarding poll result from a stopped poller")
		return
	}

	if err != nil {
		p.status.ConsecutiveFailures++
		p.status.LastError = err
		failures := p.status.ConsecutiveFailures
		p.mu.Unlock()

		retained := p.dashboard.Len()
		p.metrics.Poll(metrics.ResultError)
		p.metrics.SnapshotState(retained, failures)
		p.logger.Warn().
			Err(err).
			Str("kind", failureKind(err)).
			Int("consecutive_failures", failures).
			Int("retained_bins", retained).
			Msg("poll failed, keeping previous snapshot")
		return
	}

	stats := p.dashboard.Apply(bins, p.now())
	p.status.ConsecutiveFailures = 0
	p.status.LastError = nil
	p.status.LastSuccess = p.now()
	p.mu.Unlock()

	p.metrics.Poll(metrics.ResultSuccess)
	p.metrics.SnapshotState(stats.Total, 0)
	p.logger.Debug().
		Int("total", stats.Total).
		Int("pleines", stats.Pleines).
		Int("moyen_remplissage", stats.MoyenRemplissage).
		Msg("snapshot refreshed")

	if p.onUpdate != nil {
		p.onUpdate(p.dashboard.Snapshot())
	}
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, client.ErrNetworkUnavailable):
		return "network_unavailable"
	case errors.Is(err, client.ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, client.ErrServiceFailure):
		return "service_failure"
	default:
		return "unknown"
	}
}
