// Package rate provides internal primitives used to build Redis-backed rate limit keys,
// errors, and limiter behavior for order initiation.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefix:
//   - <prefix>:rb:: identification begin per client IP
//
// # What this package must NOT do
//
//   - Decide what happens to a throttled request (the engine maps the error).
//   - Be imported outside the goBankID module.
package rate
