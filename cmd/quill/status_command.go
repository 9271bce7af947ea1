package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"quill/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the backend's view of the active jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}

			transcription := "no job"
			status, err := client.TranscriptionStatus(cmd.Context())
			switch {
			case err == nil:
				transcription = string(status)
			case errors.Is(err, api.ErrNotFound):
			default:
				return fmt.Errorf("query transcription status: %w", err)
			}

			generation := "no job"
			contractID := ""
			state, err := client.GenerationStatus(cmd.Context())
			switch {
			case err == nil:
				generation = string(state.Status)
				contractID = state.ContractID
			case errors.Is(err, api.ErrNotFound):
			default:
				return fmt.Errorf("query generation status: %w", err)
			}

			rows := [][]string{
				{"Transcription", transcription, ""},
				{"Generation", generation, contractID},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Stage", "Status", "Contract"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}
