package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"quill/internal/jobs"
	"quill/internal/logging"
	"quill/internal/pipeline"
	"quill/internal/upload"
)

func newCancelCommand(ctx *commandContext) *cobra.Command {
	var stage string

	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the active transcription or generation job",
		Long: `Cancel asks the backend to stop the active job and waits for it to
confirm. The job is only reported as cancelled once the backend says so; a
job that finishes before the request lands keeps its final status.`,
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

			out := cmd.OutOrStdout()

			switch stage {
			case "transcription":
				scheduler := upload.New(client, cfg.Pipeline.UploadAttempts, logger)
				trans := pipeline.NewTranscription(client, scheduler, pipeline.TranscriptionOptions{
					Interval: cfg.PollInterval(),
					Logger:   logger,
				})
				if err := trans.Resume(cmd.Context()); err != nil {
					return err
				}
				defer trans.Stop()

				if err := trans.Cancel(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(out, "Cancellation requested; waiting for the backend to confirm...")

				outcome := <-trans.Done()
				fmt.Fprintf(out, "Transcription ended with status %s\n", outcome.Status)
				return nil

			case "generation":
				gen := pipeline.NewGeneration(client, pipeline.GenerationOptions{
					Interval: cfg.PollInterval(),
					Logger:   logger,
				})
				if err := gen.Resume(cmd.Context()); err != nil {
					return err
				}
				defer gen.Stop()

				if err := gen.Cancel(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(out, "Cancellation requested; waiting for the backend to confirm...")

				outcome := <-gen.Done()
				if outcome.Status == jobs.StatusDone {
					fmt.Fprintf(out, "Generation finished before cancellation landed; contract %s is ready\n", outcome.ContractID)
					return nil
				}
				fmt.Fprintf(out, "Generation ended with status %s\n", outcome.Status)
				return nil

			default:
				return fmt.Errorf("unknown stage %q (expected transcription or generation)", stage)
			}
		},
	}

	cmd.Flags().StringVar(&stage, "stage", "transcription", "Stage to cancel: transcription or generation")
	return cmd
}
