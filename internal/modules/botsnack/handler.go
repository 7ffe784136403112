// Package botsnack thanks people for feeding the bot.
package botsnack

import (
	"context"
	"math/rand/v2"

	"github.com/garyellow/lullabot-go/internal/bot"
)

// ModuleName is the handler ID.
const ModuleName bot.HandlerID = "botsnack"

var snackRegex = bot.MustRegex(`(?i)^botsnack$`)

// Replies are the canned thank-you messages.
var Replies = []string{
	"Thank you! :cookie:",
	"Om nom nom nom :yum:",
	"Delicious! :hamburger:",
	"Yummy! :cake:",
	"How thoughtful of you! :candy:",
	"*happy bot noises* :robot_face:",
	"I appreciate the snack! :pizza:",
	"Tasty! :taco:",
	"Mmmmm :doughnut:",
	"You're the best! :ice_cream:",
}

// Handler replies with a random thank-you.
type Handler struct {
	replies bot.ReplySink
	pick    func(n int) int
}

// Option configures a Handler.
type Option func(*Handler)

// WithPicker replaces the random index picker; pick(n) must return a value
// in [0, n).
func WithPicker(pick func(n int) int) Option {
	return func(h *Handler) { h.pick = pick }
}

// NewHandler creates a botsnack handler.
func NewHandler(replies bot.ReplySink, opts ...Option) *Handler {
	h := &Handler{replies: replies, pick: rand.IntN}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements bot.Handler.
func (h *Handler) Name() bot.HandlerID { return ModuleName }

// Patterns implements bot.Handler.
func (h *Handler) Patterns() []bot.PatternRule {
	return []bot.PatternRule{{Pattern: snackRegex, Owner: ModuleName, Priority: 10}}
}

// Respond implements bot.Handler.
func (h *Handler) Respond(ctx context.Context, event bot.InboundEvent, _ string) error {
	return h.replies.Reply(ctx, bot.ReplyInThread(event, Replies[h.pick(len(Replies))]))
}
