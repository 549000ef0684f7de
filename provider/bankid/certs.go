package bankid

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"golang.org/x/crypto/pkcs12"
)

var (
	ErrNoCertificate = errors.New("bankid: no client certificate configured")
	ErrInvalidCA     = errors.New("bankid: CA bundle contains no certificates")
)

// LoadPKCS12 decodes an RP certificate bundle (.p12/.pfx) protected by
// passphrase. Bundles carrying intermediate certificates are supported.
func LoadPKCS12(data []byte, passphrase string) (tls.Certificate, error) {
	blocks, err := pkcs12.ToPEM(data, passphrase)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("bankid: decode pkcs12: %w", err)
	}

	var certPEM, keyPEM []byte
	for _, block := range blocks {
		encoded := pem.EncodeToMemory(&pem.Block{Type: block.Type, Bytes: block.Bytes})
		switch block.Type {
		case "CERTIFICATE":
			certPEM = append(certPEM, encoded...)
		case "PRIVATE KEY":
			keyPEM = append(keyPEM, encoded...)
		}
	}

	return LoadPEM(certPEM, keyPEM)
}

// LoadPEM builds an RP certificate from a PEM certificate chain and key.
func LoadPEM(certPEM, keyPEM []byte) (tls.Certificate, error) {
	if len(certPEM) == 0 || len(keyPEM) == 0 {
		return tls.Certificate{}, ErrNoCertificate
	}
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("bankid: load key pair: %w", err)
	}
	return cert, nil
}

// CAPool returns a pool holding the certificates of a PEM CA bundle.
func CAPool(caPEM []byte) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, ErrInvalidCA
	}
	return pool, nil
}
