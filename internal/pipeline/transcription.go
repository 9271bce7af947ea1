package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"quill/internal/jobs"
	"quill/internal/logging"
	"quill/internal/polling"
)

// TranscriptionClient is the slice of the API client the transcription
// pipeline consumes.
type TranscriptionClient interface {
	TranscriptionStatus(ctx context.Context) (jobs.Status, error)
	RetryTranscription(ctx context.Context) error
	CancelTranscription(ctx context.Context) error
}

// Uploader transmits the audio payload. Satisfied by *upload.Scheduler.
type Uploader interface {
	ReserveAndSend(ctx context.Context, filename string, payload []byte) error
}

// ErrRetryUnavailable is returned when Retry is invoked outside a
// transcription_failed state.
var ErrRetryUnavailable = errors.New("retry is only available after a failed transcription")

// TranscriptionOptions tunes a transcription pipeline. Zero values fall back
// to observed defaults.
type TranscriptionOptions struct {
	Interval    time.Duration
	Clock       polling.Clock
	AutoRetries int
	Logger      *slog.Logger
}

// Transcription drives an audio recording from "not yet uploaded" to
// "transcript ready". One instance handles one recording; the backend allows
// one active transcription job per user.
type Transcription struct {
	client      TranscriptionClient
	uploader    Uploader
	poller      *polling.Poller
	logger      *slog.Logger
	autoRetries int

	mu      sync.Mutex
	job     jobs.Job
	started bool
	heals   int
	done    chan Outcome
}

// NewTranscription constructs a transcription pipeline.
func NewTranscription(client TranscriptionClient, uploader Uploader, opts TranscriptionOptions) *Transcription {
	logger := logging.WithComponent(opts.Logger, "transcription")
	autoRetries := opts.AutoRetries
	if autoRetries < 0 {
		autoRetries = 0
	}
	return &Transcription{
		client:      client,
		uploader:    uploader,
		poller:      polling.New(opts.Interval, opts.Clock, opts.Logger),
		logger:      logger,
		autoRetries: autoRetries,
		done:        make(chan Outcome, outcomeBuffer),
	}
}

// Start uploads the recording and begins polling for transcription status.
// It returns immediately; terminal results arrive on Done.
func (t *Transcription) Start(ctx context.Context, filename string, audio []byte) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return errors.New("transcription pipeline already started")
	}
	t.started = true
	t.job = jobs.NewTranscription(filename, audio)
	t.mu.Unlock()

	t.logger.Info("starting upload",
		logging.String("filename", filename),
		logging.Int("bytes", len(audio)),
	)
	go t.runUpload(ctx)
	return nil
}

// Resume begins polling an already-uploaded job without re-transmitting
// audio. Used when reattaching to backend state from a fresh process.
func (t *Transcription) Resume(ctx context.Context) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return errors.New("transcription pipeline already started")
	}
	t.started = true
	t.job = jobs.Job{Kind: jobs.KindTranscription, Status: jobs.StatusUploaded}
	t.mu.Unlock()

	t.startPolling(ctx)
	return nil
}

// Retry resumes a failed transcription via the backend retry endpoint and
// restarts polling from uploaded. An error from the retry call leaves state
// unchanged.
func (t *Transcription) Retry(ctx context.Context) error {
	if t.Status() != jobs.StatusTranscriptionFailed {
		return ErrRetryUnavailable
	}
	if err := t.client.RetryTranscription(ctx); err != nil {
		return fmt.Errorf("retry transcription: %w", err)
	}
	t.setStatus(jobs.StatusUploaded)
	t.logger.Info("transcription retry accepted")
	t.startPolling(ctx)
	return nil
}

// Cancel requests cancellation. The backend decides whether it lands;
// polling continues until it reports cancelled, so no local transition
// happens here.
func (t *Transcription) Cancel(ctx context.Context) error {
	if err := t.client.CancelTranscription(ctx); err != nil {
		return fmt.Errorf("cancel transcription: %w", err)
	}
	t.logger.Info("cancellation requested")
	return nil
}

// Stop tears the pipeline down deterministically, leaving no live timer.
func (t *Transcription) Stop() {
	t.poller.Stop()
}

// Status returns the most recently observed status.
func (t *Transcription) Status() jobs.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.job.Status
}

// Done delivers terminal outcomes. A pipeline revived by Retry delivers a
// fresh outcome for the new run.
func (t *Transcription) Done() <-chan Outcome {
	return t.done
}

func (t *Transcription) runUpload(ctx context.Context) {
	t.setStatus(jobs.StatusUploading)

	t.mu.Lock()
	filename := t.job.Correlation.Filename
	audio := t.job.Correlation.Audio
	t.mu.Unlock()

	if err := t.uploader.ReserveAndSend(ctx, filename, audio); err != nil {
		t.setStatus(jobs.StatusUploadFailed)
		t.healOrFail(ctx, err)
		return
	}

	t.setStatus(jobs.StatusUploaded)
	t.startPolling(ctx)
}

// healOrFail applies the bounded upload auto-retry: one silent re-attempt of
// the full upload sequence, then surface upload_failed to the user.
func (t *Transcription) healOrFail(ctx context.Context, cause error) {
	t.mu.Lock()
	if t.heals < t.autoRetries {
		t.heals++
		attempt := t.heals
		t.mu.Unlock()
		t.logger.Warn("upload failed; re-attempting automatically",
			logging.Int(logging.FieldAttempt, attempt),
			logging.Error(cause),
		)
		t.runUpload(ctx)
		return
	}
	t.mu.Unlock()

	t.logger.Error("upload failed after automatic retry", logging.Error(cause))
	sendOutcome(t.done, Outcome{Status: jobs.StatusUploadFailed, Err: cause})
}

func (t *Transcription) startPolling(ctx context.Context) {
	t.poller.Start(ctx, polling.Hooks{
		Query:  t.client.TranscriptionStatus,
		Decide: t.decide,
		Terminal: func(status jobs.Status) {
			t.handleTerminal(status)
		},
		Retry: func(jobs.Status) {
			t.healOrFail(ctx, errors.New("backend reported upload_failed"))
		},
	})
}

func (t *Transcription) decide(status jobs.Status) polling.Decision {
	t.setStatus(status)

	switch status {
	case jobs.StatusUploading:
		return polling.Continue
	case jobs.StatusUploaded, jobs.StatusTranscribing:
		// Forward progress clears the consecutive-failure counter.
		t.mu.Lock()
		t.heals = 0
		t.mu.Unlock()
		return polling.Continue
	case jobs.StatusUploadFailed:
		t.mu.Lock()
		canHeal := t.heals < t.autoRetries
		t.mu.Unlock()
		if canHeal {
			return polling.StopRetry
		}
		return polling.StopHandle
	default:
		return polling.StopHandle
	}
}

func (t *Transcription) handleTerminal(status jobs.Status) {
	t.setStatus(status)

	switch status {
	case jobs.StatusDone:
		t.mu.Lock()
		t.job.DiscardAudio()
		t.mu.Unlock()
		t.logger.Info("transcript ready")
		sendOutcome(t.done, Outcome{Status: status})
	case jobs.StatusTranscriptionFailed:
		t.logger.Warn("transcription failed; retry is available")
		sendOutcome(t.done, Outcome{Status: status})
	case jobs.StatusCancelled:
		t.logger.Info("transcription cancelled")
		sendOutcome(t.done, Outcome{Status: status})
	case jobs.StatusUploadFailed:
		sendOutcome(t.done, Outcome{Status: status, Err: errors.New("backend reported upload_failed")})
	default:
		sendOutcome(t.done, Outcome{Status: jobs.StatusError, Err: fmt.Errorf("transcription ended with status %s", status)})
	}
}

func (t *Transcription) setStatus(status jobs.Status) {
	t.mu.Lock()
	t.job.Status = status
	t.mu.Unlock()
}
