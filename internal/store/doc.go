// Package store provides durable storage for archiver snapshots.
//
// The store persists the final state handed off by the archiver engine
// at window close: the recent-files list and the registry of files
// that were open at shutdown. On the next start the CLI loads the
// snapshot back and seeds the engine with it.
//
// Storage is SQLite via mattn/go-sqlite3, configured for a single
// writer with WAL mode. Schema changes are applied through
// PRAGMA user_version migrations.
package store
