package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"filescleaner/internal/config"
	"filescleaner/internal/ledger"
	"filescleaner/internal/sizeunit"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var failuresOf int64

	cmd := &cobra.Command{
		Use:   "history [PATH]",
		Short: "Show recent cleanup passes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if _, err := os.Stat(cfg.LedgerPath()); errors.Is(err, fs.ErrNotExist) {
				fmt.Fprintln(out, "No cleanup history recorded yet.")
				return nil
			}
			store, err := ledger.Open(cfg.LedgerPath())
			if err != nil {
				return err
			}
			defer store.Close()

			if failuresOf > 0 {
				failures, err := store.Failures(cmd.Context(), failuresOf)
				if err != nil {
					return err
				}
				if len(failures) == 0 {
					fmt.Fprintf(out, "Cleanup %d has no recorded failures.\n", failuresOf)
					return nil
				}
				rows := make([][]string, 0, len(failures))
				for _, f := range failures {
					rows = append(rows, []string{f.Path, sizeunit.Human(f.Size), f.Error})
				}
				fmt.Fprintln(out, renderTable(tableSpec{
					headers: []string{"Path", "Size", "Error"},
					rows:    rows,
					aligns:  []columnAlignment{alignLeft, alignRight, alignLeft},
				}))
				return nil
			}

			var directory string
			if len(args) == 1 {
				if directory, err = config.ExpandPath(args[0]); err != nil {
					return err
				}
			}
			records, err := store.Recent(cmd.Context(), directory, limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No cleanup history recorded yet.")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, r := range records {
				rows = append(rows, []string{
					strconv.FormatInt(r.ID, 10),
					r.StartedAt.Local().Format(time.DateTime),
					r.Directory,
					formatCount(int64(r.Attempted)),
					sizeunit.Human(r.BytesFreed),
					sizeunit.Human(r.TotalAfter),
					formatCount(int64(r.FailureCount)),
					yesNo(r.Shortfall),
				})
			}
			fmt.Fprintln(out, renderTable(tableSpec{
				headers: []string{"ID", "Started", "Directory", "Files", "Freed", "Left", "Failures", "Shortfall"},
				rows:    rows,
				aligns: []columnAlignment{
					alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft,
				},
			}))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of passes to show")
	cmd.Flags().Int64Var(&failuresOf, "failures", 0, "Show the files a pass could not delete, by pass ID")
	return cmd
}
