// Package postgres stores persisted auth responses and personal number
// bindings in PostgreSQL through a pgx connection pool.
//
// Store implements goBankID.AuthResponseStore, goBankID.UserDirectory and
// goBankID.IdentityBinder. Migrate applies the embedded schema.
package postgres
