package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"quill/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check backend connectivity and local prerequisites",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			results := preflight.RunAll(cmd.Context(), cfg)

			rows := make([][]string, 0, len(results))
			allPassed := true
			for _, r := range results {
				state := "ok"
				if !r.Passed {
					state = "FAIL"
					allPassed = false
				}
				rows = append(rows, []string{r.Name, state, r.Detail})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Check", "State", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))

			if !allPassed {
				return fmt.Errorf("%d check(s) failed", countFailed(results))
			}
			fmt.Fprintln(out, "All checks passed.")
			return nil
		},
	}
}

func countFailed(results []preflight.Result) int {
	failed := 0
	for _, r := range results {
		if !r.Passed {
			failed++
		}
	}
	return failed
}
