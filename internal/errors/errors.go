// Package errors defines the sentinel errors shared across the bot and a
// wrapper that carries a user-facing reply alongside the internal cause.
package errors

import "errors"

// Sentinel errors. Match them with errors.Is.
var (
	// ErrNotFound indicates a lookup miss (user, factoid, document).
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates a malformed argument.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRegistryFrozen is returned when a pattern is registered after
	// dispatching has started.
	ErrRegistryFrozen = errors.New("pattern registry is frozen")

	// ErrStorage marks persistence failures.
	ErrStorage = errors.New("storage failure")

	// ErrUpstream marks failures of an external collaborator (Slack API,
	// completion provider).
	ErrUpstream = errors.New("upstream failure")
)
