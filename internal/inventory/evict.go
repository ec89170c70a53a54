package inventory

import (
	"errors"
	"io/fs"
	"slices"
)

// Remover deletes a single file. afero.Fs satisfies it.
type Remover interface {
	Remove(name string) error
}

// DeletionFailure records a file that could not be removed.
type DeletionFailure struct {
	Path string
	Size int64
	Err  error
}

// EvictionReport summarizes one eviction pass.
type EvictionReport struct {
	// Attempted is the number of files selected for deletion.
	Attempted int
	// TargetBytes is the combined size of the selected files.
	TargetBytes int64
	// BytesFreed counts files deleted plus files that were already gone.
	BytesFreed int64
	// AlreadyGone lists selected files that had vanished before deletion.
	AlreadyGone []string
	Deleted     []string
	Failures    []DeletionFailure
}

// Shortfall reports whether less than half of the selected bytes were
// reclaimed.
func (r EvictionReport) Shortfall() bool {
	return r.Attempted > 0 && r.BytesFreed < r.TargetBytes/2
}

// Empty reports whether the pass selected nothing.
func (r EvictionReport) Empty() bool {
	return r.Attempted == 0
}

// EvictOldestUntilUnder deletes files oldest first until TotalSize is below
// target. A total already at or under target is left alone; a target <= 0
// selects every file. Files that were
// already missing count as freed; other failures are reported and not
// credited. Every selected record leaves the inventory whatever its outcome.
func (inv *Inventory) EvictOldestUntilUnder(target int64, remover Remover) EvictionReport {
	var report EvictionReport
	if inv.Len() == 0 {
		return report
	}

	cut := len(inv.order)
	if target > 0 {
		current := inv.TotalSize()
		if current <= target {
			return report
		}
		var accumulated int64
		cut = 0
		for cut < len(inv.order) && current-accumulated >= target {
			accumulated += inv.order[cut].Size
			cut++
		}
	}

	prefix := inv.order[:cut]
	report.Attempted = len(prefix)
	for _, r := range prefix {
		report.TargetBytes += r.Size
		err := remover.Remove(r.Path)
		switch {
		case err == nil:
			report.BytesFreed += r.Size
			report.Deleted = append(report.Deleted, r.Path)
		case errors.Is(err, fs.ErrNotExist):
			report.BytesFreed += r.Size
			report.AlreadyGone = append(report.AlreadyGone, r.Path)
		default:
			report.Failures = append(report.Failures, DeletionFailure{Path: r.Path, Size: r.Size, Err: err})
		}
		delete(inv.entries, r.Path)
	}

	inv.order = slices.Delete(inv.order, 0, cut)
	inv.total -= report.TargetBytes
	inv.stranded += report.TargetBytes - report.BytesFreed
	return report
}
