package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/desertthunder/jobsync/internal/backend"
	"github.com/desertthunder/jobsync/internal/engine"
	"github.com/desertthunder/jobsync/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}

	var tokens oauth2.TokenSource
	if config.Backend.Token != "" {
		tokens = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: config.Backend.Token})
	}

	client := backend.NewClient(config.Backend.BaseURL, &http.Client{Timeout: config.Backend.ConnectTimeout()}, tokens)
	dialer := backend.NewStreamDialer(config.Backend.BaseURL, tokens, config.Backend.ConnectTimeout(), logger)

	// The CLI talks to an already-running backend; a failed request reports
	// the real transport error rather than waiting on a process monitor.
	availability := backend.NewAvailabilitySource()
	availability.Set(backend.AvailabilityRunning)

	eng := engine.New(engine.Options{
		API:          client,
		Dialer:       engine.WebsocketDialer{D: dialer},
		Availability: availability,
		Logger:       logger,
		Sync:         config.Sync,
	})
	defer eng.Shutdown()

	runner := NewRunner(RunnerOpts{
		Config: config,
		Engine: eng,
		Logger: logger,
	})

	app := &cli.Command{
		Name:     "jobsync",
		Usage:    "Track and control remote download jobs",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		err_ := errors.Unwrap(err)
		if errors.Is(err_, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		} else {
			logger.Fatalf("application error: %v", err)
		}
	}
}
