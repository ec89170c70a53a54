package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevelFlag string
	var interactiveFlag bool

	ctx := newCommandContext(&configFlag, &logLevelFlag, &interactiveFlag)

	rootCmd := &cobra.Command{
		Use:           "filescleaner",
		Short:         "Keep directories under a size ceiling by deleting their oldest files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Override logging.level (debug, info, warn, error, critical)")
	rootCmd.PersistentFlags().BoolVarP(&interactiveFlag, "interactive", "i", false, "Log to stderr instead of the configured log file")

	rootCmd.AddCommand(newMonitorCommand(ctx))
	for _, cmd := range newDirectoryCommands(ctx) {
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range newToggleCommands(ctx) {
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newLogsCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
