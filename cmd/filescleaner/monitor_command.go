package main

import (
	"github.com/spf13/cobra"

	"filescleaner/internal/daemonrun"
)

func newMonitorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Watch configured directories and delete the oldest files when they grow too large",
		Long: `Run the cleanup loop in the foreground until interrupted.

Every monitor.interval_seconds each directory is rescanned. A directory over
its max_size has its oldest files deleted until it is back under. The command
exits immediately when the configuration is disabled or lists no directories.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    ctx.logLevel(),
				Interactive: ctx.interactive(),
			})
		},
	}
}
