// Package uptime answers "who are you" style questions with the bot's name,
// how long it has been running and where.
package uptime

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/garyellow/lullabot-go/internal/bot"
)

// ModuleName is the handler ID.
const ModuleName bot.HandlerID = "uptime"

var uptimeRegex = bot.MustRegex(`(?i)^(uptime|identify yourself|who are you|what is your name)$`)

// Handler reports process uptime.
type Handler struct {
	identity bot.BotIdentity
	replies  bot.ReplySink
	started  time.Time
	hostname string
	now      func() time.Time
}

// NewHandler creates an uptime handler counting from started.
func NewHandler(identity bot.BotIdentity, replies bot.ReplySink, started time.Time) *Handler {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return &Handler{
		identity: identity,
		replies:  replies,
		started:  started,
		hostname: hostname,
		now:      time.Now,
	}
}

// Name implements bot.Handler.
func (h *Handler) Name() bot.HandlerID { return ModuleName }

// Patterns implements bot.Handler.
func (h *Handler) Patterns() []bot.PatternRule {
	return []bot.PatternRule{{Pattern: uptimeRegex, Owner: ModuleName, Priority: 10}}
}

// Respond implements bot.Handler.
func (h *Handler) Respond(ctx context.Context, event bot.InboundEvent, _ string) error {
	text := fmt.Sprintf(":robot_face: I am a bot named <@%s>. I have been running for %s on %s.",
		h.identity.BotUserID(), FormatUptime(h.now().Sub(h.started)), h.hostname)
	return h.replies.Reply(ctx, bot.ReplyInThread(event, text))
}

// FormatUptime renders d as "2 days, 0 hours, 5 minutes, 1 second". Units
// above the largest non-zero one are left out; smaller zero units are kept.
func FormatUptime(d time.Duration) string {
	total := int64(d / time.Second)
	if total <= 0 {
		return "0 seconds"
	}

	units := []struct {
		n    int64
		name string
	}{
		{total / 86400, "day"},
		{total / 3600 % 24, "hour"},
		{total / 60 % 60, "minute"},
		{total % 60, "second"},
	}

	var parts []string
	for _, u := range units {
		if u.n == 0 && len(parts) == 0 {
			continue
		}
		name := u.name
		if u.n != 1 {
			name += "s"
		}
		parts = append(parts, fmt.Sprintf("%d %s", u.n, name))
	}
	return strings.Join(parts, ", ")
}
