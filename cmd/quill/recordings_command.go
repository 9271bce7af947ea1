package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"quill/internal/library"
)

func newRecordingsCommand(ctx *commandContext) *cobra.Command {
	recordingsCmd := &cobra.Command{
		Use:   "recordings",
		Short: "Manage locally captured recordings",
	}

	recordingsCmd.AddCommand(newRecordingsListCommand(ctx))
	recordingsCmd.AddCommand(newRecordingsRemoveCommand(ctx))

	return recordingsCmd
}

func newRecordingsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List captured recordings, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := library.Open(cfg)
			if err != nil {
				return fmt.Errorf("open library: %w", err)
			}
			defer store.Close()

			recordings, err := store.List(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(recordings) == 0 {
				fmt.Fprintln(out, "No recordings yet; run `quill record` to capture one.")
				return nil
			}

			rows := make([][]string, 0, len(recordings))
			for _, rec := range recordings {
				rows = append(rows, []string{
					strconv.FormatInt(rec.ID, 10),
					library.DisplayTitle(rec.Filename),
					humanize.IBytes(uint64(rec.SizeBytes)),
					rec.CreatedAt.Local().Format("2006-01-02 15:04"),
					yesNo(rec.Uploaded()),
					rec.ContractID,
				})
			}

			// Plain tab-separated output when piped, a table on a terminal.
			if !isTerminal(out) {
				for _, row := range rows {
					fmt.Fprintln(out, strings.Join(row, "\t"))
				}
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Title", "Size", "Captured", "Uploaded", "Contract"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func newRecordingsRemoveCommand(ctx *commandContext) *cobra.Command {
	var keepFile bool

	cmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a recording from the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid recording id %q", args[0])
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := library.Open(cfg)
			if err != nil {
				return fmt.Errorf("open library: %w", err)
			}
			defer store.Close()

			rec, err := store.GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			if err := store.Remove(cmd.Context(), id); err != nil {
				return err
			}
			if !keepFile {
				if err := removeRecordingFile(rec.Path); err != nil {
					return fmt.Errorf("remove recording file: %w", err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed recording %d\n", id)
			return nil
		},
	}

	cmd.Flags().BoolVar(&keepFile, "keep-file", false, "Keep the audio file on disk")
	return cmd
}
