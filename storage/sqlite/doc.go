// Package sqlite stores persisted auth responses and personal number
// bindings in SQLite (modernc.org/sqlite, no cgo).
//
// Store implements goBankID.AuthResponseStore, goBankID.UserDirectory and
// goBankID.IdentityBinder. The schema is embedded and applied with
// ApplyMigrations.
package sqlite
