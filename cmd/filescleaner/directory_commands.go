package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"filescleaner/internal/config"
	"filescleaner/internal/watch"
)

func newDirectoryCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newAddCommand(ctx),
		newRemoveCommand(ctx),
	}
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	var maxSize string
	var diskSize string

	cmd := &cobra.Command{
		Use:   "add PATH",
		Short: "Watch a directory",
		Long: `Add PATH to the watched directories, or update its thresholds if it is
already watched. Sizes take an optional b, k, m, or g suffix (base 1024).
Omitted sizes fall back to monitor.default_max_size and default_disk_size.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			path, err := cfg.SetDirectory(args[0], config.Directory{MaxSize: maxSize, DiskSize: diskSize})
			if err != nil {
				return err
			}
			spec, err := findSpec(cfg, path)
			if err != nil {
				return err
			}
			if _, err := watch.New(watch.Settings{
				Path:         spec.Path,
				MaxSize:      spec.MaxSize,
				DiskSize:     spec.DiskSize,
				ScanInterval: cfg.ScanInterval(),
			}, watch.Deps{}); err != nil {
				return err
			}

			saved, err := ctx.saveConfig(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (max %s, disk %s)\n", spec.Path, spec.MaxSize, spec.DiskSize)
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", saved)
			return nil
		},
	}

	cmd.Flags().StringVarP(&maxSize, "max-size", "m", "", "Size at which the oldest files start being deleted")
	cmd.Flags().StringVarP(&diskSize, "disk-size", "d", "", "Space the directory may use at most")
	return cmd
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove PATH",
		Short: "Stop watching a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, removed, err := cfg.RemoveDirectory(args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("%q is not a watched directory", path)
			}
			saved, err := ctx.saveConfig(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stopped watching %s\n", path)
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", saved)
			return nil
		},
	}
}

func newToggleCommands(ctx *commandContext) []*cobra.Command {
	toggle := func(use, short string, enabled bool) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				cfg.Enabled = enabled
				saved, err := ctx.saveConfig(cfg)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Monitoring enabled: %s (saved %s)\n", yesNo(enabled), saved)
				return nil
			},
		}
	}
	return []*cobra.Command{
		toggle("enable", "Allow `filescleaner monitor` to run", true),
		toggle("disable", "Make `filescleaner monitor` exit immediately", false),
	}
}

func findSpec(cfg *config.Config, path string) (config.DirectorySpec, error) {
	specs, err := cfg.Watched()
	if err != nil {
		return config.DirectorySpec{}, err
	}
	for _, spec := range specs {
		if spec.Path == path {
			return spec, nil
		}
	}
	return config.DirectorySpec{}, fmt.Errorf("%q is not a watched directory", path)
}
