// Package storage provides the optional dispatch audit log.
//
// It records what was sent, skipped or failed, for operators. Nothing in the
// dispatch path reads it back: there is no dedup and no replay.
//
// Drivers:
//   - "file": append-only JSON Lines
//   - "sqlite": SQLite database file (modernc.org/sqlite, pure Go)
package storage
