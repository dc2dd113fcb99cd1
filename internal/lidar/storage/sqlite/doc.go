// Package sqlite persists scan pass summaries to an SQLite journal.
//
// The scanner never waits on the database: passes are queued by
// Journal.ObservePass and written by Journal.Run on its own goroutine. The
// schema is managed by embedded golang-migrate migrations, and the journal
// can mount a tailsql console on the debug mux for live inspection.
package sqlite
