// Package measurements persists accepted scale readings.
//
// Store is implemented by SQLiteStore, the default single-station database
// whose schema is versioned with PRAGMA user_version and stays compatible
// with existing weights.db files, and by PostgresStore for sites where
// several stations share one database. Rows carry an auto-increment id, the
// integer weight, a local "YYYY-MM-DD HH:MM:SS" timestamp, an optional
// snapshot file name, and an optional machine label.
package measurements
