// Package goBankID provides an authentication session engine for Mobile BankID style
// identity providers: order initiation, status collection, hint-code interpretation,
// animated QR timing, completion handling and session issuance.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build]. A [Poller] drives
// one login attempt from the client side and is owned by a single caller.
//
// # Architecture boundaries
//
// goBankID is the public surface. It exposes [Engine], [Builder], [Config], [Poller] and
// the collaborator interfaces ([Provider], [UserDirectory], [SessionIssuer],
// [AuthResponseStore]). Order persistence, rate limiting and record encoding live under
// internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its public API.
//   - Notify the provider when a login attempt is cancelled or superseded.
//   - Log personal numbers in plaintext.
//   - Import any sub-package that re-imports goBankID (no import cycles).
package goBankID
