// Package main is the lullabot server entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/garyellow/lullabot-go/internal/app"
	"github.com/garyellow/lullabot-go/internal/buildinfo"
	"github.com/garyellow/lullabot-go/internal/config"
	"github.com/garyellow/lullabot-go/internal/sentry"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "lullabot: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := sentry.Initialize(sentry.Config{
		DSN:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		Release:     buildinfo.Version,
		SampleRate:  cfg.SentrySampleRate,
	}); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "lullabot: sentry disabled: %v\n", err)
	}

	application, err := app.Initialize(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	return application.Run()
}
