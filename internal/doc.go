// Package internal contains helper utilities that are intentionally private to goBankID,
// including secure session id generation and personal number fingerprints.
//
// # Sub-packages
//
//   - rate: Redis-backed fixed-window limiter for order initiation
//   - slogx: structured logging helpers and request logging middleware
//   - stores: Redis order records and attempt pointers
//   - config: environment configuration for the server binary
//   - app: server wiring, housekeeping and graceful shutdown
//   - tui: terminal login client
//
// # What this package must NOT do
//
//   - Export types that appear in the public goBankID API.
//   - Be imported by any package outside the goBankID module.
package internal
