package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"quill/internal/config"
	"quill/internal/jobs"
	"quill/internal/library"
	"quill/internal/logging"
	"quill/internal/pipeline"
	"quill/internal/upload"
)

func newRetryCommand(ctx *commandContext) *cobra.Command {
	var stage string

	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Resume a failed transcription or generation job",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}

			lock := pipeline.NewLock(cfg.Paths.LogDir)
			if err := lock.Acquire(); err != nil {
				return err
			}
			defer func() { _ = lock.Release() }()

			out := cmd.OutOrStdout()

			switch stage {
			case "transcription":
				status, err := client.TranscriptionStatus(cmd.Context())
				if err != nil {
					return fmt.Errorf("query transcription status: %w", err)
				}
				if status != jobs.StatusTranscriptionFailed {
					return fmt.Errorf("transcription is %s; retry only applies to %s", status, jobs.StatusTranscriptionFailed)
				}
				if err := client.RetryTranscription(cmd.Context()); err != nil {
					return fmt.Errorf("retry transcription: %w", err)
				}

				scheduler := upload.New(client, cfg.Pipeline.UploadAttempts, logger)
				trans := pipeline.NewTranscription(client, scheduler, pipeline.TranscriptionOptions{
					Interval:    cfg.PollInterval(),
					AutoRetries: cfg.Pipeline.AutoRetries,
					Logger:      logger,
				})
				if err := trans.Resume(cmd.Context()); err != nil {
					return err
				}
				defer trans.Stop()

				outcome := <-trans.Done()
				if !handleTranscriptionOutcome(out, outcome) {
					return fmt.Errorf("transcription ended with status %s", outcome.Status)
				}
				fmt.Fprintln(out, "Transcription complete. Run `quill convert` again or `quill retry --stage generation` if generation was pending.")
				return nil

			case "generation":
				state, err := client.GenerationStatus(cmd.Context())
				if err != nil {
					return fmt.Errorf("query generation status: %w", err)
				}
				if state.Status != jobs.StatusFailed {
					return fmt.Errorf("generation is %s; retry only applies to %s", state.Status, jobs.StatusFailed)
				}

				gen := pipeline.NewGeneration(client, pipeline.GenerationOptions{
					Interval:    cfg.PollInterval(),
					AutoRetries: cfg.Pipeline.AutoRetries,
					Logger:      logger,
				})
				if err := gen.Start(cmd.Context()); err != nil {
					return err
				}
				defer gen.Stop()

				outcome := <-gen.Done()
				if outcome.Status != jobs.StatusDone {
					return fmt.Errorf("generation ended with status %s", outcome.Status)
				}
				fmt.Fprintf(out, "Contract ready: %s\n", outcome.ContractID)
				recordContract(cmd, cfg, outcome.ContractID, logger)
				return nil

			default:
				return fmt.Errorf("unknown stage %q (expected transcription or generation)", stage)
			}
		},
	}

	cmd.Flags().StringVar(&stage, "stage", "transcription", "Stage to retry: transcription or generation")
	return cmd
}

// recordContract best-effort stamps the contract id on the latest uploaded
// recording. Retry runs in a fresh process, so the exact recording is not
// tracked; the latest one is the conversion that just finished.
func recordContract(cmd *cobra.Command, cfg *config.Config, contractID string, logger *slog.Logger) {
	store, err := library.Open(cfg)
	if err != nil {
		return
	}
	defer store.Close()

	rec, err := store.Latest(cmd.Context())
	if err != nil {
		if !errors.Is(err, library.ErrNotFound) {
			logger.Warn("look up latest recording failed", logging.Error(err))
		}
		return
	}
	if err := store.SetContractID(cmd.Context(), rec.ID, contractID); err != nil {
		logger.Warn("record contract id failed", logging.Error(err))
	}
}
