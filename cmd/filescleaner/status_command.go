package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"filescleaner/internal/config"
	"filescleaner/internal/monitor"
	"filescleaner/internal/preflight"
	"filescleaner/internal/scanner"
	"filescleaner/internal/sizeunit"
	"filescleaner/internal/watch"
)

type directoryStatus struct {
	spec     config.DirectorySpec
	total    int64
	files    int
	skipped  int
	scanErr  error
	alarming bool
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var skipChecks bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show usage of every watched directory",
		Long: `Scan every watched directory once and report its usage against its
thresholds. Nothing is deleted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			specs, err := cfg.Watched()
			if err != nil {
				return err
			}

			fsys := afero.NewOsFs()
			scan := scanner.New(fsys, nil)
			now := time.Now()
			statuses := make([]directoryStatus, 0, len(specs))
			for _, spec := range specs {
				status := directoryStatus{spec: spec}
				dir, err := watch.New(watch.Settings{
					Path:         spec.Path,
					MaxSize:      spec.MaxSize,
					DiskSize:     spec.DiskSize,
					ScanInterval: cfg.ScanInterval(),
				}, watch.Deps{Scanner: scan, Remover: fsys})
				if err != nil {
					return err
				}
				if err := dir.Rescan(cmd.Context(), now); err != nil {
					if cmd.Context().Err() != nil {
						return cmd.Context().Err()
					}
					status.scanErr = err
				} else {
					snap := dir.Snapshot()
					status.total = snap.TotalBytes
					status.files = snap.Files
					status.skipped = snap.LastStats.Skipped
					status.alarming = snap.Alarming
				}
				statuses = append(statuses, status)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			printMonitorSection(out, ctx, cfg, colorize)
			printDirectorySection(out, statuses, colorize)
			if !skipChecks {
				printChecksSection(out, preflight.RunAll(cfg), colorize)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipChecks, "no-checks", false, "Skip filesystem access checks")
	return cmd
}

func printMonitorSection(out io.Writer, ctx *commandContext, cfg *config.Config, colorize bool) {
	for _, line := range renderSectionHeader("Monitor", colorize) {
		fmt.Fprintln(out, line)
	}

	if cfg.Enabled {
		fmt.Fprintln(out, renderStatusLine("Enabled", statusOK, "yes", colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Enabled", statusWarn, "no (monitor exits immediately)", colorize))
	}

	running, err := monitor.IsLocked(cfg.LockPath())
	switch {
	case err != nil:
		fmt.Fprintln(out, renderStatusLine("Running", statusError, err.Error(), colorize))
	case running:
		detail := "yes"
		if pid, err := monitor.ReadPIDFile(cfg.PIDPath()); err == nil {
			detail = fmt.Sprintf("yes (pid %d)", pid)
		}
		fmt.Fprintln(out, renderStatusLine("Running", statusOK, detail, colorize))
	default:
		fmt.Fprintln(out, renderStatusLine("Running", statusInfo, "no", colorize))
	}

	configDetail := ctx.configPath
	if configDetail == "" {
		configDetail = "defaults"
	}
	fmt.Fprintln(out, renderStatusLine("Config", statusInfo, configDetail, colorize))
	fmt.Fprintln(out, renderStatusLine("Interval", statusInfo, cfg.ScanInterval().String(), colorize))
	fmt.Fprintln(out)
}

func printDirectorySection(out io.Writer, statuses []directoryStatus, colorize bool) {
	for _, line := range renderSectionHeader("Directories", colorize) {
		fmt.Fprintln(out, line)
	}
	if len(statuses) == 0 {
		fmt.Fprintln(out, renderStatusLine("Watched", statusInfo, "none (use `filescleaner add PATH`)", colorize))
		fmt.Fprintln(out)
		return
	}

	headers := []string{"Directory", "Used", "Max", "Disk", "Files", "Use", "State"}
	aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft}
	rows := make([][]string, 0, len(statuses))
	var totalBytes int64
	var totalFiles int
	for _, s := range statuses {
		unit := s.spec.MaxSize.Unit
		row := []string{
			s.spec.Path,
			"-",
			s.spec.MaxSize.String(),
			s.spec.DiskSize.String(),
			"-",
			"-",
			colorState(directoryState(s), colorize),
		}
		if s.scanErr == nil {
			row[1] = sizeunit.Format(s.total, unit)
			row[4] = formatCount(int64(s.files))
			row[5] = formatPercent(s.total, s.spec.MaxSize.Bytes)
			totalBytes += s.total
			totalFiles += s.files
		}
		rows = append(rows, row)
	}
	footer := []string{"Total", sizeunit.Human(totalBytes), "", "", formatCount(int64(totalFiles)), "", ""}

	fmt.Fprintln(out, renderTable(tableSpec{headers: headers, rows: rows, aligns: aligns, footer: footer}))
	fmt.Fprintln(out)
}

func printChecksSection(out io.Writer, results []preflight.Result, colorize bool) {
	for _, line := range renderSectionHeader("Checks", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, result := range results {
		kind := statusOK
		if !result.Passed {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}
}

func directoryState(s directoryStatus) string {
	switch {
	case s.scanErr != nil:
		if errors.Is(s.scanErr, fs.ErrNotExist) {
			return "missing"
		}
		return "error: " + s.scanErr.Error()
	case s.total > s.spec.MaxSize.Bytes:
		if s.alarming {
			return "over max, growth alarm"
		}
		return "over max"
	case s.alarming:
		return "growth alarm"
	case s.skipped > 0:
		return fmt.Sprintf("ok (%d skipped)", s.skipped)
	default:
		return "ok"
	}
}

func colorState(state string, colorize bool) string {
	if !colorize {
		return state
	}
	switch {
	case strings.HasPrefix(state, "ok"):
		return ansiGreen + state + ansiReset
	case strings.HasPrefix(state, "error"), state == "missing", strings.Contains(state, "alarm"):
		return ansiRed + state + ansiReset
	default:
		return ansiYellow + state + ansiReset
	}
}
