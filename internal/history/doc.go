// Package history keeps the SQLite run history and the payload fingerprint
// ledger used by the unchanged-body staleness gate.
//
// The schema is embedded and versioned; a database written by a different
// schema version is rejected with ErrSchemaMismatch rather than migrated.
package history
