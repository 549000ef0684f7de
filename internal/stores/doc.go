// Package stores provides Redis-backed, short-lived record stores for the
// identification flow: order records and the per-attempt active order pointer.
//
// # Design
//
// Each store persists a versioned, binary-encoded record in Redis with a TTL.
// Mutations use WATCH/MULTI optimistic transactions with automatic retry on
// contention and keep the record's remaining TTL.
//
// # Architecture boundaries
//
// This package owns persistence and concurrency control for order records. It
// does NOT talk to the identity provider, interpret hint codes or decide state
// transitions; those belong to the engine.
//
// # What this package must NOT do
//
//   - Import goBankID or any sibling internal package.
//   - Log order secrets (QR start secrets, auto-start tokens).
package stores
