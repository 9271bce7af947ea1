package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"quill/internal/capture"
	"quill/internal/jobs"
	"quill/internal/library"
	"quill/internal/logging"
	"quill/internal/pipeline"
	"quill/internal/preflight"
	"quill/internal/upload"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var recordingID int64
	var transcriptOnly bool

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Upload a recording, transcribe it, and generate a contract",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			results := preflight.RunAll(cmd.Context(), cfg)
			if !preflight.AllPassed(results) {
				printPreflight(cmd.OutOrStdout(), results)
				return errors.New("preflight checks failed")
			}

			lock := pipeline.NewLock(cfg.Paths.LogDir)
			if err := lock.Acquire(); err != nil {
				return err
			}
			defer func() { _ = lock.Release() }()

			store, err := library.Open(cfg)
			if err != nil {
				return fmt.Errorf("open library: %w", err)
			}
			defer store.Close()

			rec, err := resolveRecording(cmd.Context(), store, recordingID)
			if err != nil {
				return err
			}

			audio, err := os.ReadFile(rec.Path)
			if err != nil {
				return fmt.Errorf("read recording %s: %w", rec.Path, err)
			}

			client, err := ctx.apiClient()
			if err != nil {
				return err
			}

			registry := capture.NewRegistry(logger)
			defer registry.ReleaseAll()

			scheduler := upload.New(client, cfg.Pipeline.UploadAttempts, logger)
			trans := pipeline.NewTranscription(client, scheduler, pipeline.TranscriptionOptions{
				Interval:    cfg.PollInterval(),
				AutoRetries: cfg.Pipeline.AutoRetries,
				Logger:      logger,
			})
			registry.Register(capture.HandleFunc(func() error {
				trans.Stop()
				return nil
			}))

			canceller := newStageCanceller(cmd.Context())
			stopSignals := watchInterrupts(cmd, canceller)
			defer stopSignals()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Converting %s\n", library.DisplayTitle(rec.Filename))

			canceller.setStage(trans.Cancel)
			if err := trans.Start(cmd.Context(), rec.Filename, audio); err != nil {
				return err
			}

			outcome := <-trans.Done()
			if !handleTranscriptionOutcome(out, outcome) {
				return fmt.Errorf("transcription ended with status %s", outcome.Status)
			}

			if err := store.MarkUploaded(cmd.Context(), rec.ID); err != nil {
				logger.Warn("mark recording uploaded failed", logging.Error(err))
			}
			fmt.Fprintln(out, "Transcription complete.")

			if transcriptOnly {
				return nil
			}

			gen := pipeline.NewGeneration(client, pipeline.GenerationOptions{
				Interval:    cfg.PollInterval(),
				AutoRetries: cfg.Pipeline.AutoRetries,
				Logger:      logger,
			})
			registry.Register(capture.HandleFunc(func() error {
				gen.Stop()
				return nil
			}))

			canceller.setStage(gen.Cancel)
			if err := gen.Start(cmd.Context()); err != nil {
				return err
			}

			genOutcome := <-gen.Done()
			switch genOutcome.Status {
			case jobs.StatusDone:
				if err := store.SetContractID(cmd.Context(), rec.ID, genOutcome.ContractID); err != nil {
					logger.Warn("record contract id failed", logging.Error(err))
				}
				fmt.Fprintf(out, "Contract ready: %s\n", genOutcome.ContractID)
				return nil
			case jobs.StatusCancelled:
				fmt.Fprintln(out, "Generation cancelled.")
				return nil
			case jobs.StatusFailed:
				return errors.New("contract generation failed; run `quill retry --stage generation` to try again")
			default:
				if genOutcome.Err != nil {
					return fmt.Errorf("generation ended with status %s: %w", genOutcome.Status, genOutcome.Err)
				}
				return fmt.Errorf("generation ended with status %s", genOutcome.Status)
			}
		},
	}

	cmd.Flags().Int64Var(&recordingID, "id", 0, "Recording id to convert (defaults to the most recent)")
	cmd.Flags().BoolVar(&transcriptOnly, "transcript-only", false, "Stop after transcription without generating a contract")
	return cmd
}

func resolveRecording(ctx context.Context, store *library.Store, id int64) (*library.Recording, error) {
	if id > 0 {
		rec, err := store.GetByID(ctx, id)
		if errors.Is(err, library.ErrNotFound) {
			return nil, fmt.Errorf("recording %d not found", id)
		}
		return rec, err
	}
	rec, err := store.Latest(ctx)
	if errors.Is(err, library.ErrNotFound) {
		return nil, errors.New("no recordings yet; run `quill record` first")
	}
	return rec, err
}

func handleTranscriptionOutcome(out io.Writer, outcome pipeline.Outcome) bool {
	switch outcome.Status {
	case jobs.StatusDone:
		return true
	case jobs.StatusCancelled:
		fmt.Fprintln(out, "Transcription cancelled.")
		return false
	case jobs.StatusTranscriptionFailed:
		fmt.Fprintln(out, "Transcription failed; run `quill retry` to resume it.")
		return false
	case jobs.StatusUploadFailed:
		fmt.Fprintln(out, "Upload failed after retries; check connectivity and run `quill convert` again.")
		return false
	default:
		if outcome.Err != nil {
			fmt.Fprintf(out, "Pipeline error: %v\n", outcome.Err)
		}
		return false
	}
}

// stageCanceller routes Ctrl+C to the stage currently in flight. The first
// interrupt requests a backend cancellation; status only changes once the
// backend confirms it through polling.
type stageCanceller struct {
	ctx context.Context

	mu     sync.Mutex
	cancel func(context.Context) error
}

func newStageCanceller(ctx context.Context) *stageCanceller {
	return &stageCanceller{ctx: ctx}
}

func (s *stageCanceller) setStage(cancel func(context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel = cancel
}

func (s *stageCanceller) requestCancel() error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	return cancel(s.ctx)
}

func watchInterrupts(cmd *cobra.Command, canceller *stageCanceller) func() {
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	go func() {
		first := true
		for range signals {
			if first {
				first = false
				fmt.Fprintln(cmd.OutOrStdout(), "\nCancellation requested; waiting for the backend to confirm. Press Ctrl+C again to force quit.")
				if err := canceller.requestCancel(); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "cancel request failed: %v\n", err)
				}
				continue
			}
			os.Exit(1)
		}
	}()

	return func() { signal.Stop(signals) }
}

func printPreflight(out io.Writer, results []preflight.Result) {
	for _, r := range results {
		marker := "ok"
		if !r.Passed {
			marker = "FAIL"
		}
		fmt.Fprintf(out, "[%s] %s: %s\n", marker, r.Name, r.Detail)
	}
}
