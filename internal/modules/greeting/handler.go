// Package greeting waves back at people who say hello.
package greeting

import (
	"context"
	"fmt"

	"github.com/garyellow/lullabot-go/internal/bot"
	"github.com/garyellow/lullabot-go/internal/logger"
)

// ModuleName is the handler ID.
const ModuleName bot.HandlerID = "greeting"

const reaction = "wave"

var greetingRegex = bot.MustRegex(`(?i)^(hello|hey|hi)!?$|^:wave:$`)

// Handler reacts to greetings with a wave, replying in text when the
// reaction cannot be added.
type Handler struct {
	reactor bot.Reactor
	replies bot.ReplySink
	logger  *logger.Logger
}

// NewHandler creates a greeting handler.
func NewHandler(reactor bot.Reactor, replies bot.ReplySink, log *logger.Logger) *Handler {
	return &Handler{reactor: reactor, replies: replies, logger: log.WithModule(string(ModuleName))}
}

// Name implements bot.Handler.
func (h *Handler) Name() bot.HandlerID { return ModuleName }

// Patterns implements bot.Handler.
func (h *Handler) Patterns() []bot.PatternRule {
	return []bot.PatternRule{{Pattern: greetingRegex, Owner: ModuleName, Priority: 10}}
}

// Respond implements bot.Handler.
func (h *Handler) Respond(ctx context.Context, event bot.InboundEvent, _ string) error {
	err := h.reactor.React(ctx, event.ChannelID, event.MessageTS, reaction)
	if err == nil {
		return nil
	}

	h.logger.WithError(err).WarnContext(ctx, "Failed to add reaction, replying instead")
	return h.replies.Reply(ctx, bot.ReplyInThread(event, fmt.Sprintf("Hello <@%s>!!", event.UserID)))
}
