// Command bankid-login runs a BankID login against a bankid-server from the
// terminal and prints the session token on success.
//
//	bankid-login -server http://localhost:8080
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	goBankID "github.com/MrEthical07/goBankID"
	"github.com/MrEthical07/goBankID/client"
	"github.com/MrEthical07/goBankID/internal/tui"
	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	var (
		server   = flag.String("server", "http://localhost:8080", "bankid-server base URL")
		interval = flag.Duration("interval", time.Second, "poll interval")
		restarts = flag.Int("restarts", 3, "automatic restarts after startFailed (-1 unlimited)")
		redirect = flag.String("redirect", "", "redirect target returned after login")
	)
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller := goBankID.NewPoller(client.New(*server), goBankID.PollerConfig{
		Interval:               *interval,
		MaxStartFailedRestarts: *restarts,
		RedirectURL:            *redirect,
		// Logging would draw over the TUI.
		Logger: slog.New(slog.DiscardHandler),
	})

	final, err := tea.NewProgram(tui.New(ctx, poller, *interval)).Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "bankid-login: %v\n", err)
		os.Exit(1)
	}

	view := final.(tui.Model).Result()
	switch {
	case view.Cancelled:
		os.Exit(130)
	case view.Status == goBankID.StatusComplete && view.Session != nil:
		fmt.Printf("user_id=%s\nsession_token=%s\n", view.UserID, view.Session.Token)
		if view.RedirectURL != "" {
			fmt.Printf("redirect=%s\n", view.RedirectURL)
		}
	default:
		if view.Err != nil {
			fmt.Fprintf(os.Stderr, "bankid-login: %s (%v)\n", view.Message, view.Err)
		} else {
			fmt.Fprintf(os.Stderr, "bankid-login: %s\n", view.Message)
		}
		os.Exit(1)
	}
}
