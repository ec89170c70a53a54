// Package preflight provides readiness checks for the filesystem paths that
// filescleaner depends on.
//
// The CLI "filescleaner status" command runs RunAll to show whether every
// watched directory can be walked and cleaned, whether the state directory is
// writable, and how much room the backing filesystems have. The monitor uses
// FilesystemUsage to publish available space as a metric.
package preflight
