// Package store persists tracked shows, their episodes, discussion threads,
// and rolling megathreads in SQLite. It is the single source of truth the
// pipeline reads and writes across runs.
package store
