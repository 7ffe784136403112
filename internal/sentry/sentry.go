// Package sentry wires handler failures into Sentry. Every function is a
// no-op until Initialize succeeds with a DSN.
package sentry

import (
	"context"
	"errors"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/garyellow/lullabot-go/internal/ctxutil"
)

// Config holds Sentry settings.
type Config struct {
	DSN         string
	Environment string
	Release     string
	// SampleRate is the fraction of errors sent (0 means 1.0).
	SampleRate float64
	Debug      bool
}

// Initialize configures the global Sentry client. An empty DSN disables
// reporting and returns nil.
func Initialize(cfg Config) error {
	if cfg.DSN == "" {
		return nil
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 1.0
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       sampleRate,
		Debug:            cfg.Debug,
		AttachStacktrace: true,
	}); err != nil {
		return errors.Join(errors.New("sentry init"), err)
	}
	return nil
}

// Flush waits up to timeout for buffered events. Returns true when all
// events were delivered.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// IsEnabled reports whether a client is bound to the current hub.
func IsEnabled() bool {
	return sentry.CurrentHub().Client() != nil
}

// CaptureError reports err tagged with the event identifiers stored in ctx
// and the extra tags given.
func CaptureError(ctx context.Context, err error, tags map[string]string) {
	if err == nil || !IsEnabled() {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}

	hub.WithScope(func(scope *sentry.Scope) {
		if userID := ctxutil.GetUserID(ctx); userID != "" {
			scope.SetUser(sentry.User{ID: userID})
		}
		if channelID := ctxutil.GetChannelID(ctx); channelID != "" {
			scope.SetTag("channel_id", channelID)
		}
		if teamID := ctxutil.GetTeamID(ctx); teamID != "" {
			scope.SetTag("team_id", teamID)
		}
		if requestID, ok := ctxutil.GetRequestID(ctx); ok {
			scope.SetTag("request_id", requestID)
		}
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		hub.CaptureException(err)
	})
}
