// Package middleware exposes an HTTP guard that admits requests carrying a
// valid goBankID session.
//
// # Guards
//
//   - [Guard] validates the bearer token or session cookie through
//     Engine.ValidateSession and stores the session in the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement session logic itself; every decision is delegated to the
// validator.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
package middleware
