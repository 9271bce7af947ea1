package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"quill/internal/capture"
	"quill/internal/library"
	"quill/internal/logging"
)

func newRecordCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "record",
		Short: "Capture a dictation from the configured input device",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			registry := capture.NewRegistry(logger)
			defer registry.ReleaseAll()

			recorder := capture.NewRecorder(
				cfg.FFmpegBinary(),
				cfg.Capture.InputDevice,
				cfg.Capture.MaxSeconds,
				registry,
				logger,
			)

			filename := fmt.Sprintf("recording_%s.webm", uuid.NewString())
			dest := filepath.Join(cfg.Paths.RecordingsDir, filename)

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintln(cmd.OutOrStdout(), "Recording... press Ctrl+C to stop.")
			if err := recorder.Record(runCtx, dest); err != nil {
				return fmt.Errorf("capture recording: %w", err)
			}

			info, err := os.Stat(dest)
			if err != nil {
				return fmt.Errorf("inspect recording: %w", err)
			}

			store, err := library.Open(cfg)
			if err != nil {
				return fmt.Errorf("open library: %w", err)
			}
			defer store.Close()

			rec, err := store.Add(cmd.Context(), filename, dest, info.Size(), 0)
			if err != nil {
				return fmt.Errorf("index recording: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Saved %s (%d bytes)\n", rec.Filename, rec.SizeBytes)
			fmt.Fprintf(out, "Run `quill convert` to turn it into a contract.\n")
			return nil
		},
	}
}
