package inventory

import "time"

// FileRecord is a snapshot of one file taken at scan time.
type FileRecord struct {
	Path      string
	Size      int64
	CreatedAt time.Time
}

// Less orders records by creation time, then by path so that files sharing a
// timestamp still sort deterministically.
func (r FileRecord) Less(other FileRecord) bool {
	if !r.CreatedAt.Equal(other.CreatedAt) {
		return r.CreatedAt.Before(other.CreatedAt)
	}
	return r.Path < other.Path
}
