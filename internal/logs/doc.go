// Package logs reads the monitor's log file for `filescleaner logs`: the last
// N lines, then optionally new lines as the monitor appends them.
package logs
