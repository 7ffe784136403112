// Package ctxutil stores per-event identifiers on a context.Context.
// Keys are unexported so other packages cannot collide with them.
package ctxutil

import (
	"context"
)

type contextKey string

const (
	userIDKey    contextKey = "ctxutil.userID"
	channelIDKey contextKey = "ctxutil.channelID"
	teamIDKey    contextKey = "ctxutil.teamID"
	requestIDKey contextKey = "ctxutil.requestID"
)

func withString(ctx context.Context, key contextKey, v string) context.Context {
	return context.WithValue(ctx, key, v)
}

func getString(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// WithUserID stores the Slack user who sent the event being processed.
func WithUserID(ctx context.Context, userID string) context.Context {
	return withString(ctx, userIDKey, userID)
}

// GetUserID returns the stored user ID or "".
func GetUserID(ctx context.Context) string {
	return getString(ctx, userIDKey)
}

// MustGetUserID panics when no user ID is stored.
func MustGetUserID(ctx context.Context) string {
	userID := GetUserID(ctx)
	if userID == "" {
		panic("ctxutil: userID not found")
	}
	return userID
}

// WithChannelID stores the Slack channel (or DM) the event arrived in.
func WithChannelID(ctx context.Context, channelID string) context.Context {
	return withString(ctx, channelIDKey, channelID)
}

// GetChannelID returns the stored channel ID or "".
func GetChannelID(ctx context.Context) string {
	return getString(ctx, channelIDKey)
}

// WithTeamID stores the Slack workspace ID. Persistence keys are scoped by it.
func WithTeamID(ctx context.Context, teamID string) context.Context {
	return withString(ctx, teamIDKey, teamID)
}

// GetTeamID returns the stored team ID or "".
func GetTeamID(ctx context.Context) string {
	return getString(ctx, teamIDKey)
}

// WithRequestID stores a per-dispatch correlation ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withString(ctx, requestIDKey, requestID)
}

// GetRequestID returns the request ID and whether one was set.
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(requestIDKey).(string)
	return requestID, ok && requestID != ""
}

// PreserveTracing returns a fresh background context carrying only the
// identifiers of ctx. The result is not canceled when ctx is.
//
// Socket mode events are acknowledged before they are processed, so the
// processing goroutine must not inherit the read loop's cancellation.
func PreserveTracing(ctx context.Context) context.Context {
	newCtx := context.Background()

	for _, key := range []contextKey{userIDKey, channelIDKey, teamIDKey, requestIDKey} {
		if v := getString(ctx, key); v != "" {
			newCtx = withString(newCtx, key, v)
		}
	}

	return newCtx
}
