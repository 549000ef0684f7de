// Package qrcode builds the animated BankID QR payload and renders it.
//
// The payload for second n of an order is
//
//	bankid.<qrStartToken>.<n>.<hex(HMAC-SHA256(qrStartSecret, n))>
//
// so a new code is shown every second while the secret never leaves the
// server. Rendering uses github.com/boombuler/barcode.
package qrcode
