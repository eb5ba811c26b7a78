// Package storage keeps the message references of posted announcements.
//
// A reference lets an "edit" announcement update the message it posted last
// time, also across restarts. Drivers:
//   - "file": JSON snapshot, rewritten atomically on every change
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
package storage
