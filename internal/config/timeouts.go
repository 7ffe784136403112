package config

import "time"

// HTTP server timeouts for the health and metrics listener.
const (
	HTTPRead  = 10 * time.Second
	HTTPWrite = 30 * time.Second
	HTTPIdle  = 120 * time.Second

	// ReadinessCheckTimeout bounds the database ping done by /readyz.
	ReadinessCheckTimeout = 3 * time.Second
)

// Dispatch timeouts.
const (
	// EventProcessing bounds one dispatched event, including Slack API
	// calls, storage I/O and the completion call of the fallback.
	EventProcessing = 60 * time.Second

	// SlackAuth bounds the auth.test call made at startup.
	SlackAuth = 15 * time.Second

	// UserLookupCacheTTL is how long resolved Slack profiles are reused.
	UserLookupCacheTTL = 10 * time.Minute
)

// Factoid confirmation housekeeping.
const (
	// PendingRequestTTL is how long a YES/NO/APPEND confirmation stays valid.
	PendingRequestTTL = 5 * time.Minute

	// PendingSweepSchedule reclaims expired confirmations.
	PendingSweepSchedule = "@every 10m"
)

// Database.
const (
	DatabaseBusyTimeout     = 30 * time.Second
	DatabaseConnMaxLifetime = time.Hour
)

// Background jobs.
const (
	RateLimiterCleanupInterval = 5 * time.Minute
	GracefulShutdown           = 30 * time.Second

	// SnapshotJob bounds one backup, compress and upload cycle.
	SnapshotJob = 10 * time.Minute

	// R2Request bounds a single state object read or write.
	R2Request = 15 * time.Second
)
