// Package inventory tracks every file under a watched directory ordered by
// creation time and evicts the oldest ones when the directory is over budget.
//
// An Inventory pairs a path-keyed map with a slice kept sorted by
// (CreatedAt, Path) so lookups are O(1), positional search is O(log n), and
// eviction always walks a prefix of the ordering. The running total is
// maintained incrementally by every mutation.
//
// Inventories are not safe for concurrent use; the monitor owns each one.
package inventory
