// Package ledger persists the history of cleanup passes in SQLite.
//
// Every pass that selected at least one file is stored with its totals, and
// every file that could not be deleted is stored alongside it. The ledger is
// informational: the monitor logs ledger errors and keeps cleaning.
package ledger
