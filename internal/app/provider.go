package app

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	goBankID "github.com/MrEthical07/goBankID"
	"github.com/MrEthical07/goBankID/internal/config"
	"github.com/MrEthical07/goBankID/provider/bankid"
	"github.com/MrEthical07/goBankID/provider/simulator"
)

// newProvider builds the identity provider selected by BANKID_ENV.
func newProvider(cfg *config.Config) (goBankID.Provider, error) {
	if cfg.BankIDEnv == config.EnvSimulator {
		return simulator.New(), nil
	}

	cert, err := loadCertificate(cfg)
	if err != nil {
		return nil, err
	}

	var roots *x509.CertPool
	if cfg.CAFile != "" {
		caPEM, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		roots, err = bankid.CAPool(caPEM)
		if err != nil {
			return nil, err
		}
	}

	env := bankid.EnvironmentTest
	if cfg.BankIDEnv == config.EnvProduction {
		env = bankid.EnvironmentProduction
	}

	return bankid.New(bankid.Config{
		Environment:     env,
		Certificate:     &cert,
		RootCAs:         roots,
		UserVisibleData: cfg.UserVisibleData,
	})
}

func loadCertificate(cfg *config.Config) (tls.Certificate, error) {
	certData, err := os.ReadFile(cfg.CertFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("read certificate: %w", err)
	}
	if cfg.KeyFile == "" {
		return bankid.LoadPKCS12(certData, cfg.CertPassphrase)
	}

	keyData, err := os.ReadFile(cfg.KeyFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("read key: %w", err)
	}
	return bankid.LoadPEM(certData, keyData)
}
