// Package bottest provides in-memory collaborators for handler tests.
package bottest

import (
	"context"
	"fmt"
	"sync"

	"github.com/garyellow/lullabot-go/internal/bot"
	domerrors "github.com/garyellow/lullabot-go/internal/errors"
)

// ReplySink records replies.
type ReplySink struct {
	mu      sync.Mutex
	replies []bot.Reply
	Err     error
}

// Reply implements bot.ReplySink.
func (s *ReplySink) Reply(_ context.Context, r bot.Reply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.replies = append(s.replies, r)
	return nil
}

// Replies returns a copy of the recorded replies.
func (s *ReplySink) Replies() []bot.Reply {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bot.Reply(nil), s.replies...)
}

// Texts returns the text of each recorded reply.
func (s *ReplySink) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.replies))
	for i, r := range s.replies {
		out[i] = r.Text
	}
	return out
}

// Last returns the most recent reply text, or "" when there is none.
func (s *ReplySink) Last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.replies) == 0 {
		return ""
	}
	return s.replies[len(s.replies)-1].Text
}

// Reset forgets recorded replies.
func (s *ReplySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = nil
}

// Reaction is one recorded React call.
type Reaction struct {
	ChannelID string
	MessageTS string
	Name      string
}

// Reactor records reactions.
type Reactor struct {
	mu        sync.Mutex
	reactions []Reaction
	Err       error
}

// React implements bot.Reactor.
func (r *Reactor) React(_ context.Context, channelID, messageTS, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.reactions = append(r.reactions, Reaction{channelID, messageTS, name})
	return nil
}

// Reactions returns a copy of the recorded reactions.
func (r *Reactor) Reactions() []Reaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Reaction(nil), r.reactions...)
}

// Directory is a map-backed bot.UserDirectory.
type Directory struct {
	Users map[string]*bot.User
	Err   error
}

// NewDirectory creates a directory holding users.
func NewDirectory(users ...*bot.User) *Directory {
	d := &Directory{Users: make(map[string]*bot.User, len(users))}
	for _, u := range users {
		d.Users[u.ID] = u
	}
	return d
}

// LookupUser implements bot.UserDirectory.
func (d *Directory) LookupUser(_ context.Context, id string) (*bot.User, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	if u, ok := d.Users[id]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("user %s: %w", id, domerrors.ErrNotFound)
}

// Event builds an addressed event in channel C1 from user U1 of team T1.
func Event(text string) bot.InboundEvent {
	return bot.InboundEvent{
		Text:      text,
		ChannelID: "C1",
		MessageTS: "1700000000.000100",
		UserID:    "U1",
		TeamID:    "T1",
		Addressed: true,
	}
}

// Ambient is Event with Addressed false.
func Ambient(text string) bot.InboundEvent {
	e := Event(text)
	e.Addressed = false
	return e
}
