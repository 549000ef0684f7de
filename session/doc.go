// Package session provides Redis-backed session persistence and compact binary session
// encoding for the default session issuer.
//
// # Binary encoding
//
// Sessions are stored in Redis as a versioned binary record. New versions add fields
// but never reinterpret old ones.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Session] model. It does NOT
// sign or parse session tokens or decide who may log in; those responsibilities belong
// to the engine.
//
// # What this package must NOT do
//
//   - Import goBankID or jwt (no upward imports).
//   - Store plaintext client addresses or user agents in [Session] fields.
package session
