// Package monitor runs the polling loop that keeps watched directories under
// their size ceilings.
//
// Each cycle rescans directories whose interval has elapsed, cleans up those
// over their ceiling, and rescans again so growth alarms see fresh numbers.
// Directories are processed one at a time on the caller's goroutine. The
// package also owns the single-instance lock and PID file.
package monitor
