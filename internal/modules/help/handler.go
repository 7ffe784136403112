// Package help lists the bot's commands.
package help

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/garyellow/lullabot-go/internal/bot"
)

// ModuleName is the handler ID.
const ModuleName bot.HandlerID = "help"

var helpRegex = regexp.MustCompile(`(?i)^(?:help|commands|plugins)(?:\s+(\w+))?$`)

// Handler answers "help" and "help <topic>".
type Handler struct {
	catalog Catalog
	replies bot.ReplySink
}

// NewHandler creates a help handler over catalog.
func NewHandler(catalog Catalog, replies bot.ReplySink) *Handler {
	return &Handler{catalog: catalog, replies: replies}
}

// Name implements bot.Handler.
func (h *Handler) Name() bot.HandlerID { return ModuleName }

// Patterns implements bot.Handler.
func (h *Handler) Patterns() []bot.PatternRule {
	return []bot.PatternRule{{Pattern: bot.Regex(helpRegex), Owner: ModuleName, Priority: 10}}
}

// Respond implements bot.Handler.
func (h *Handler) Respond(ctx context.Context, event bot.InboundEvent, text string) error {
	m := helpRegex.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return h.replies.Reply(ctx, bot.ReplyInThread(event, h.render(strings.ToLower(m[1]))))
}

func (h *Handler) render(topic string) string {
	if topic == "" {
		return h.catalog.Full()
	}
	if t, ok := h.catalog.Lookup(topic); ok {
		return t.String()
	}
	return fmt.Sprintf("Plugin \"%s\" not found. Try one of: %s", topic, strings.Join(h.catalog.Names(), ", "))
}
