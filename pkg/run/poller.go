package run

import (
	"context"
	"sync"
	"time"

	"github.com/odvcencio/parley/pkg/agentapi"
	"github.com/odvcencio/parley/pkg/observability"
)

// DefaultPollInterval is the fixed cadence of the polling loop.
const DefaultPollInterval = time.Second

// Poller drives the fixed-interval polling loop bound to one run. It owns
// the incremental fetch cursor and the single timer; starting a new loop
// always supersedes any prior one. A generation counter guards against a
// stale timer or an in-flight fetch outliving Stop.
type Poller struct {
	backend  agentapi.Backend
	interval time.Duration
	log      *observability.Logger
	deliver  func(*agentapi.Snapshot, error)

	mu         sync.Mutex
	generation uint64
	active     agentapi.RunIdentity
	cursor     string
	stopCh     chan struct{}
	polling    bool
}

// NewPoller builds a poller delivering every fetched snapshot (or fetch
// error) to deliver. The callback runs on the polling goroutine.
func NewPoller(backend agentapi.Backend, interval time.Duration, log *observability.Logger, deliver func(*agentapi.Snapshot, error)) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if log == nil {
		log = observability.Discard()
	}
	return &Poller{
		backend:  backend,
		interval: interval,
		log:      log,
		deliver:  deliver,
	}
}

// Start begins polling a fresh run. The cursor is reset.
func (p *Poller) Start(ctx context.Context, run agentapi.RunIdentity) {
	p.begin(ctx, run, false)
}

// Resume continues polling after an approval decision. The cursor is
// preserved so the fetch stays incremental.
func (p *Poller) Resume(ctx context.Context, run agentapi.RunIdentity) {
	p.begin(ctx, run, true)
}

func (p *Poller) begin(ctx context.Context, run agentapi.RunIdentity, preserveCursor bool) {
	p.mu.Lock()
	if p.polling && p.stopCh != nil {
		close(p.stopCh)
	}
	p.generation++
	gen := p.generation
	if !preserveCursor {
		p.cursor = ""
	}
	p.active = run
	p.polling = true
	stop := make(chan struct{})
	p.stopCh = stop
	p.mu.Unlock()

	observability.ActivePolls.Set(1)
	p.log.WithRun(run.AgentID, run.AgentRunID).Debug("polling started", "resume", preserveCursor)
	go p.loop(ctx, run, gen, stop)
}

// Stop cancels the timer. The last cursor is retained so a resume stays
// incremental; the caller retains the run identity for retry.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.polling {
		p.mu.Unlock()
		return
	}
	p.polling = false
	p.generation++
	if p.stopCh != nil {
		close(p.stopCh)
		p.stopCh = nil
	}
	p.mu.Unlock()
	observability.ActivePolls.Set(0)
}

// Cursor returns the current incremental-fetch cursor.
func (p *Poller) Cursor() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// Polling reports whether a loop is active.
func (p *Poller) Polling() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.polling
}

func (p *Poller) loop(ctx context.Context, run agentapi.RunIdentity, gen uint64, stop <-chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !p.tick(ctx, run, gen) {
				return
			}
		}
	}
}

// tick issues one incremental fetch. It returns false when this loop has
// been superseded and should exit without delivering anything.
func (p *Poller) tick(ctx context.Context, run agentapi.RunIdentity, gen uint64) bool {
	p.mu.Lock()
	if p.generation != gen {
		p.mu.Unlock()
		observability.PollTicks.WithLabelValues("stale").Inc()
		return false
	}
	cursor := p.cursor
	p.mu.Unlock()

	started := time.Now()
	snap, err := p.backend.GetLogs(ctx, run, cursor)
	observability.PollLatency.Observe(time.Since(started).Seconds())

	p.mu.Lock()
	if p.generation != gen {
		// A newer run superseded this one while the fetch was in flight.
		p.mu.Unlock()
		observability.PollTicks.WithLabelValues("stale").Inc()
		return false
	}
	if err == nil {
		if c := snap.Cursor(); c != "" {
			p.cursor = c
		}
	}
	p.mu.Unlock()

	if err != nil {
		observability.PollTicks.WithLabelValues("error").Inc()
		p.log.WithRun(run.AgentID, run.AgentRunID).Warn("log fetch failed", "error", err)
	} else {
		observability.PollTicks.WithLabelValues("ok").Inc()
	}
	if p.deliver != nil {
		p.deliver(snap, err)
	}
	return true
}
