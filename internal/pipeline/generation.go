package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"quill/internal/api"
	"quill/internal/jobs"
	"quill/internal/logging"
	"quill/internal/polling"
)

// GenerationClient is the slice of the API client the generation pipeline
// consumes.
type GenerationClient interface {
	RequestGeneration(ctx context.Context) error
	GenerationStatus(ctx context.Context) (api.GenerationState, error)
	CancelGeneration(ctx context.Context) error
}

// GenerationOptions tunes a generation pipeline.
type GenerationOptions struct {
	Interval    time.Duration
	Clock       polling.Clock
	AutoRetries int
	Logger      *slog.Logger
}

// Generation drives "request contract generation" to "contract ready". The
// backend infers the work from the completed transcription, so the pipeline
// carries no correlation data; its hand-off artifact is the contract id.
type Generation struct {
	client      GenerationClient
	poller      *polling.Poller
	logger      *slog.Logger
	autoRetries int

	mu         sync.Mutex
	job        jobs.Job
	started    bool
	reissues   int
	contractID string
	done       chan Outcome
}

// NewGeneration constructs a generation pipeline.
func NewGeneration(client GenerationClient, opts GenerationOptions) *Generation {
	autoRetries := opts.AutoRetries
	if autoRetries < 0 {
		autoRetries = 0
	}
	return &Generation{
		client:      client,
		poller:      polling.New(opts.Interval, opts.Clock, opts.Logger),
		logger:      logging.WithComponent(opts.Logger, "generation"),
		autoRetries: autoRetries,
		done:        make(chan Outcome, outcomeBuffer),
	}
}

// Start issues the generation request and begins polling. Terminal results
// arrive on Done.
func (g *Generation) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.started {
		g.mu.Unlock()
		return errors.New("generation pipeline already started")
	}
	g.started = true
	g.job = jobs.NewGeneration()
	g.mu.Unlock()

	if err := g.client.RequestGeneration(ctx); err != nil {
		g.mu.Lock()
		g.started = false
		g.mu.Unlock()
		return fmt.Errorf("request generation: %w", err)
	}

	g.logger.Info("generation requested")
	g.startPolling(ctx)
	return nil
}

// Resume begins polling an already-requested job without re-issuing the
// generation request.
func (g *Generation) Resume(ctx context.Context) error {
	g.mu.Lock()
	if g.started {
		g.mu.Unlock()
		return errors.New("generation pipeline already started")
	}
	g.started = true
	g.job = jobs.NewGeneration()
	g.mu.Unlock()

	g.startPolling(ctx)
	return nil
}

// Retry re-issues the generation request after a backend-reported failure
// and restarts polling. An error from the request leaves state unchanged.
func (g *Generation) Retry(ctx context.Context) error {
	if g.Status() != jobs.StatusFailed {
		return ErrRetryUnavailable
	}
	if err := g.client.RequestGeneration(ctx); err != nil {
		return fmt.Errorf("retry generation: %w", err)
	}
	g.setStatus(jobs.StatusGenerating)
	g.logger.Info("generation retry accepted")
	g.startPolling(ctx)
	return nil
}

// Cancel requests cancellation; polling continues until the backend reports
// cancelled.
func (g *Generation) Cancel(ctx context.Context) error {
	if err := g.client.CancelGeneration(ctx); err != nil {
		return fmt.Errorf("cancel generation: %w", err)
	}
	g.logger.Info("cancellation requested")
	return nil
}

// Stop tears the pipeline down deterministically.
func (g *Generation) Stop() {
	g.poller.Stop()
}

// Status returns the most recently observed status.
func (g *Generation) Status() jobs.Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.job.Status
}

// Done delivers terminal outcomes.
func (g *Generation) Done() <-chan Outcome {
	return g.done
}

func (g *Generation) startPolling(ctx context.Context) {
	g.poller.Start(ctx, polling.Hooks{
		Query:  g.query,
		Decide: g.decide,
		Terminal: func(status jobs.Status) {
			g.handleTerminal(status)
		},
		Retry: func(jobs.Status) {
			g.reissue(ctx)
		},
	})
}

// query records the contract id as soon as the backend reports one so the
// terminal handler can include it in the outcome.
func (g *Generation) query(ctx context.Context) (jobs.Status, error) {
	state, err := g.client.GenerationStatus(ctx)
	if err != nil {
		return "", err
	}
	if state.ContractID != "" {
		g.mu.Lock()
		g.contractID = state.ContractID
		g.mu.Unlock()
	}
	return state.Status, nil
}

func (g *Generation) decide(status jobs.Status) polling.Decision {
	g.setStatus(status)

	switch status {
	case jobs.StatusGenerating:
		return polling.Continue
	case jobs.StatusFailed:
		g.mu.Lock()
		canReissue := g.reissues < g.autoRetries
		g.mu.Unlock()
		if canReissue {
			return polling.StopRetry
		}
		return polling.StopHandle
	default:
		return polling.StopHandle
	}
}

// reissue performs the single automatic re-request after the first failed
// status; a second failure requires user intervention.
func (g *Generation) reissue(ctx context.Context) {
	g.mu.Lock()
	g.reissues++
	attempt := g.reissues
	g.mu.Unlock()

	g.logger.Warn("generation failed; re-issuing request automatically", logging.Int(logging.FieldAttempt, attempt))
	if err := g.client.RequestGeneration(ctx); err != nil {
		g.logger.Error("automatic generation retry failed", logging.Error(err))
		sendOutcome(g.done, Outcome{Status: jobs.StatusFailed, Err: err})
		return
	}
	g.setStatus(jobs.StatusGenerating)
	g.startPolling(ctx)
}

func (g *Generation) handleTerminal(status jobs.Status) {
	g.setStatus(status)

	switch status {
	case jobs.StatusDone:
		g.mu.Lock()
		contractID := g.contractID
		g.mu.Unlock()
		g.logger.Info("contract ready", logging.String("contract_id", contractID))
		sendOutcome(g.done, Outcome{Status: status, ContractID: contractID})
	case jobs.StatusFailed:
		g.logger.Warn("generation failed; retry is available")
		sendOutcome(g.done, Outcome{Status: status})
	case jobs.StatusCancelled:
		g.logger.Info("generation cancelled")
		sendOutcome(g.done, Outcome{Status: status})
	default:
		sendOutcome(g.done, Outcome{Status: jobs.StatusError, Err: fmt.Errorf("generation ended with status %s", status)})
	}
}

func (g *Generation) setStatus(status jobs.Status) {
	g.mu.Lock()
	g.job.Status = status
	g.mu.Unlock()
}
