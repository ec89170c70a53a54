package inventory

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

// ErrNotFound is returned when a path is not tracked by the inventory.
var ErrNotFound = errors.New("inventory: path not tracked")

// Inventory holds the files of one directory tree in creation order.
type Inventory struct {
	entries map[string]FileRecord
	order   []FileRecord
	// total is the sum of sizes in order.
	total int64
	// stranded holds the size of evicted files whose deletion failed. They
	// left the inventory but still occupy the disk until the next scan.
	stranded int64
}

// New returns an empty inventory.
func New() *Inventory {
	return &Inventory{entries: make(map[string]FileRecord)}
}

// Build constructs an inventory from a scan batch. When a path appears more
// than once the last occurrence wins.
func Build(records []FileRecord) *Inventory {
	inv := &Inventory{entries: make(map[string]FileRecord, len(records))}
	for _, r := range records {
		inv.entries[r.Path] = r
	}
	inv.order = make([]FileRecord, 0, len(inv.entries))
	for _, r := range inv.entries {
		inv.order = append(inv.order, r)
		inv.total += r.Size
	}
	slices.SortFunc(inv.order, compare)
	return inv
}

func compare(a, b FileRecord) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	default:
		return 0
	}
}

// Len reports the number of tracked files.
func (inv *Inventory) Len() int {
	if inv == nil {
		return 0
	}
	return len(inv.order)
}

// TotalSize reports the bytes the directory is believed to consume: every
// tracked file plus files an eviction pass failed to delete.
func (inv *Inventory) TotalSize() int64 {
	if inv == nil {
		return 0
	}
	return inv.total + inv.stranded
}

// TrackedSize reports the sum of tracked file sizes only.
func (inv *Inventory) TrackedSize() int64 {
	if inv == nil {
		return 0
	}
	return inv.total
}

// Get returns the record for path.
func (inv *Inventory) Get(path string) (FileRecord, bool) {
	r, ok := inv.entries[path]
	return r, ok
}

// Contains reports whether path is tracked.
func (inv *Inventory) Contains(path string) bool {
	_, ok := inv.entries[path]
	return ok
}

// Oldest returns the first record in creation order.
func (inv *Inventory) Oldest() (FileRecord, bool) {
	if inv.Len() == 0 {
		return FileRecord{}, false
	}
	return inv.order[0], true
}

// Records returns a copy of the tracked records, oldest first.
func (inv *Inventory) Records() []FileRecord {
	if inv == nil {
		return nil
	}
	return slices.Clone(inv.order)
}

// InsertOrUpdate adds r, or replaces the record already tracked at r.Path.
func (inv *Inventory) InsertOrUpdate(r FileRecord) {
	if old, ok := inv.entries[r.Path]; ok {
		// The ordering key may have changed, so locate the old record by its
		// own key rather than the new one.
		if idx, found := inv.position(old); found {
			inv.order = slices.Delete(inv.order, idx, idx+1)
		}
		inv.total -= old.Size
	}
	idx := inv.searchIndex(r)
	inv.order = slices.Insert(inv.order, idx, r)
	inv.entries[r.Path] = r
	inv.total += r.Size
}

// Remove drops path from the inventory.
func (inv *Inventory) Remove(path string) error {
	r, ok := inv.entries[path]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if idx, found := inv.position(r); found {
		inv.order = slices.Delete(inv.order, idx, idx+1)
	}
	delete(inv.entries, path)
	inv.total -= r.Size
	return nil
}

// searchIndex returns the first index whose record does not sort before r.
func (inv *Inventory) searchIndex(r FileRecord) int {
	return sort.Search(len(inv.order), func(i int) bool {
		return !inv.order[i].Less(r)
	})
}

// position finds r in order: binary search to its sort position, then a
// forward scan on path to step over records sharing the timestamp.
func (inv *Inventory) position(r FileRecord) (int, bool) {
	for i := inv.searchIndex(r); i < len(inv.order); i++ {
		if inv.order[i].Path == r.Path {
			return i, true
		}
		if inv.order[i].CreatedAt.After(r.CreatedAt) {
			break
		}
	}
	return 0, false
}
