// Package watch binds a directory to its size thresholds and owns the file
// inventory built by the most recent scan of it.
//
// A Directory is not safe for concurrent use. The monitor loop is its only
// owner and drives it through ShouldRescan, Rescan, NeedsCleanup, and Cleanup.
package watch
