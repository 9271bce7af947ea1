package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"quill/internal/logging"
)

// DefaultAttempts is the observed bound: one initial reserve+send cycle plus
// one full retry with a fresh slot.
const DefaultAttempts = 2

// ErrUploadFailed is the terminal result after the bounded attempts are
// exhausted. Callers translate it into the upload_failed pipeline status.
var ErrUploadFailed = errors.New("upload failed")

// ReserveWriter is the slice of the API client the scheduler needs.
type ReserveWriter interface {
	ReserveUpload(ctx context.Context, filename string) (string, error)
	WriteUpload(ctx context.Context, address string, payload []byte) error
}

// Scheduler transmits a payload with a bounded number of full
// reserve+transmit cycles. It mutates no pipeline state itself; the caller
// decides what status transition follows a result.
type Scheduler struct {
	client   ReserveWriter
	attempts int
	logger   *slog.Logger
}

// New constructs a scheduler. attempts <= 0 falls back to DefaultAttempts.
func New(client ReserveWriter, attempts int, logger *slog.Logger) *Scheduler {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	return &Scheduler{
		client:   client,
		attempts: attempts,
		logger:   logging.WithComponent(logger, "upload"),
	}
}

// ReserveAndSend reserves an upload slot for filename and transmits payload
// to it. On failure of either step the full sequence runs again with a
// freshly reserved slot, up to the configured attempt bound, after which
// ErrUploadFailed is surfaced with the last cause attached.
func (s *Scheduler) ReserveAndSend(ctx context.Context, filename string, payload []byte) error {
	if strings.TrimSpace(filename) == "" {
		return fmt.Errorf("%w: filename required", ErrUploadFailed)
	}

	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrUploadFailed, err)
		}

		err := s.attemptOnce(ctx, filename, payload)
		if err == nil {
			if attempt > 1 {
				s.logger.Info("upload succeeded after retry", logging.Int(logging.FieldAttempt, attempt))
			}
			return nil
		}
		lastErr = err
		s.logger.Warn("upload attempt failed",
			logging.Int(logging.FieldAttempt, attempt),
			logging.String("filename", filename),
			logging.Error(err),
		)
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrUploadFailed, s.attempts, lastErr)
}

// attemptOnce runs one reserve+transmit pair. A stale or expired slot is
// assumed invalid, so the address obtained here is never carried into a
// later attempt.
func (s *Scheduler) attemptOnce(ctx context.Context, filename string, payload []byte) error {
	address, err := s.client.ReserveUpload(ctx, filename)
	if err != nil {
		return fmt.Errorf("reserve slot: %w", err)
	}
	if err := s.client.WriteUpload(ctx, address, payload); err != nil {
		return fmt.Errorf("transmit payload: %w", err)
	}
	return nil
}
