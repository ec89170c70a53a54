package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"filescleaner/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display the monitor log file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := strings.TrimSpace(cfg.Logging.File)
			if path == "" {
				return fmt.Errorf("logging.file is not set; the monitor logs to stderr only")
			}

			out := cmd.OutOrStdout()
			var reader logs.Reader
			chunk, err := reader.Last(path, lines)
			if err != nil {
				return err
			}
			for _, line := range chunk.Lines {
				fmt.Fprintln(out, line)
			}
			if !follow {
				if len(chunk.Lines) == 0 {
					fmt.Fprintln(out, "No log entries available")
				}
				return nil
			}
			return reader.Follow(cmd.Context(), path, chunk.Offset, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	return cmd
}
