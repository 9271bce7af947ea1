package polling

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"quill/internal/jobs"
	"quill/internal/logging"
)

// DefaultInterval is the observed backend poll period.
const DefaultInterval = 3 * time.Second

// Decision tells the poller what to do with an observed status.
type Decision int

const (
	// Continue keeps the loop running for another tick.
	Continue Decision = iota
	// StopHandle stops the loop, then invokes the terminal hook.
	StopHandle
	// StopRetry stops the loop, then invokes the retry hook so the owner
	// can re-attempt work and restart polling.
	StopRetry
)

// Hooks configures one polling run. Decide classifies a status without side
// effects; Terminal and Retry run only after the loop has been marked
// stopped, so they may call Start again. Hooks must not call Stop.
type Hooks struct {
	Query    func(ctx context.Context) (jobs.Status, error)
	Decide   func(status jobs.Status) Decision
	Terminal func(status jobs.Status)
	Retry    func(status jobs.Status)
}

// Poller repeatedly queries a remote status on a fixed interval until a
// terminal decision or an explicit Stop.
type Poller struct {
	interval time.Duration
	clock    Clock
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a poller. A zero interval falls back to DefaultInterval; a
// nil clock uses the wall clock.
func New(interval time.Duration, clock Clock, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &Poller{
		interval: interval,
		clock:    clock,
		logger:   logging.WithComponent(logger, "poller"),
	}
}

// Start begins polling. If a loop is already live the call is a no-op and
// returns false; it never creates a second timer.
func (p *Poller) Start(ctx context.Context, hooks Hooks) bool {
	if hooks.Query == nil || hooks.Decide == nil {
		return false
	}

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return false
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.running = true
	p.cancel = cancel
	p.wg.Add(1)
	ticker := p.clock.NewTicker(p.interval)
	p.mu.Unlock()

	go p.loop(runCtx, hooks, ticker)
	return true
}

// Stop clears the live loop if any and waits for it to exit. Safe to call
// when not polling, and safe to call repeatedly.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	wasRunning := p.running
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if wasRunning {
		p.wg.Wait()
	}
}

// Running reports whether a polling loop is currently live.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) loop(ctx context.Context, hooks Hooks, ticker Ticker) {
	defer p.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.finish()
			return
		case <-ticker.C():
			status, err := hooks.Query(ctx)
			if err != nil {
				if ctx.Err() != nil {
					p.finish()
					return
				}
				// Transport failure: stop and report error; the owning
				// pipeline decides whether to retry, not the poller.
				p.logger.Warn("status query failed", logging.Error(err))
				p.finish()
				if hooks.Terminal != nil {
					hooks.Terminal(jobs.StatusError)
				}
				return
			}

			p.logger.Debug("status observed", logging.String(logging.FieldStatus, string(status)))

			switch hooks.Decide(status) {
			case Continue:
			case StopRetry:
				p.finish()
				if hooks.Retry != nil {
					hooks.Retry(status)
				}
				return
			default:
				p.finish()
				if hooks.Terminal != nil {
					hooks.Terminal(status)
				}
				return
			}
		}
	}
}

// finish marks the loop stopped before any terminal side effect runs.
func (p *Poller) finish() {
	p.mu.Lock()
	p.running = false
	p.cancel = nil
	p.mu.Unlock()
}
