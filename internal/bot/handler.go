// Package bot routes inbound chat events to the single handler that owns
// the text, falling back to a conversational handler for addressed
// messages nobody claims.
//
// Lifecycle: construct a Registry, let every Handler register its
// patterns, Freeze, then Dispatch. The registry is read-only after Freeze.
package bot

import "context"

// HandlerID names a handler ("karma", "factoid", ...).
type HandlerID string

// InboundEvent is one text message delivered by the transport. It is not
// modified once dispatched.
type InboundEvent struct {
	Text      string
	ChannelID string
	ThreadTS  string // parent thread, empty for top-level messages
	MessageTS string
	UserID    string
	TeamID    string

	// Addressed is true for direct messages and explicit mentions.
	Addressed bool
}

// Handler is a command implementation. Patterns are declared once and
// registered before dispatch starts; Respond re-derives whatever it needs
// from the normalized text.
type Handler interface {
	Name() HandlerID
	Patterns() []PatternRule
	Respond(ctx context.Context, event InboundEvent, text string) error
}

// Fallback handles addressed text that no pattern claims.
type Fallback interface {
	Respond(ctx context.Context, event InboundEvent, text string) error
}

// Reply is an outbound message.
type Reply struct {
	ChannelID string
	ThreadTS  string
	Text      string
}

// ReplyTo builds a reply to event, threaded when event is in a thread.
func ReplyTo(event InboundEvent, text string) Reply {
	return Reply{ChannelID: event.ChannelID, ThreadTS: event.ThreadTS, Text: text}
}

// ReplyInThread builds a reply that always threads, starting a new thread
// under the message when it is top-level.
func ReplyInThread(event InboundEvent, text string) Reply {
	ts := event.ThreadTS
	if ts == "" {
		ts = event.MessageTS
	}
	return Reply{ChannelID: event.ChannelID, ThreadTS: ts, Text: text}
}

// ReplySink delivers replies. It does not retry.
type ReplySink interface {
	Reply(ctx context.Context, r Reply) error
}

// Reactor adds emoji reactions to messages.
type Reactor interface {
	React(ctx context.Context, channelID, messageTS, name string) error
}

// User is a directory entry.
type User struct {
	ID          string
	Name        string
	RealName    string
	DisplayName string
}

// Label returns the most human name available, or fallback.
func (u *User) Label(fallback string) string {
	switch {
	case u == nil:
		return fallback
	case u.RealName != "":
		return u.RealName
	case u.DisplayName != "":
		return u.DisplayName
	default:
		return fallback
	}
}

// UserDirectory resolves user IDs. LookupUser returns an error wrapping
// errors.ErrNotFound for unknown users.
type UserDirectory interface {
	LookupUser(ctx context.Context, id string) (*User, error)
}

// BotIdentity reports the bot's own user ID. It may be empty before the
// transport has authenticated.
type BotIdentity interface {
	BotUserID() string
}

// StaticIdentity is a fixed BotIdentity.
type StaticIdentity string

// BotUserID implements BotIdentity.
func (s StaticIdentity) BotUserID() string { return string(s) }
