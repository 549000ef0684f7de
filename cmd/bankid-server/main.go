// Command bankid-server serves the BankID login API. Configuration comes
// from the environment and an optional .env file.
package main

import (
	"log"

	"github.com/MrEthical07/goBankID/internal/app"
	"github.com/MrEthical07/goBankID/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
