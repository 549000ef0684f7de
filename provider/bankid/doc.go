// Package bankid is a client for the BankID Relying Party API v6.
//
// The client starts identification orders (POST /auth) and polls them
// (POST /collect) over mutual TLS. It implements goBankID.Provider and is
// constructed once per configuration, then injected into the engine with
// Builder.WithProvider.
//
// # Certificates
//
// The RP certificate is loaded from a PKCS#12 bundle (LoadPKCS12) or a PEM
// certificate and key pair (LoadPEM). The server is verified against the CA
// bundle for the chosen environment (CAPool). Issuing and rotating
// certificates is out of scope.
//
// # Errors
//
// Non-2xx answers are returned as *APIError. Every error returned by Begin and
// Collect matches goBankID.ErrProviderUnavailable with errors.Is.
package bankid
