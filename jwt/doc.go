// Package jwt signs and verifies the session tokens handed out after a completed
// identification, using Ed25519 or HMAC-SHA256 keys and strict parsing options.
package jwt
