// Package karma tracks ++ and -- votes for people and things.
package karma

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/garyellow/lullabot-go/internal/bot"
	domerrors "github.com/garyellow/lullabot-go/internal/errors"
	"github.com/garyellow/lullabot-go/internal/logger"
	"github.com/garyellow/lullabot-go/internal/metrics"
	"github.com/garyellow/lullabot-go/internal/storage"
	"github.com/garyellow/lullabot-go/internal/stringutil"
)

// ModuleName is the handler ID.
const ModuleName bot.HandlerID = "karma"

const (
	// maxKeyLength bounds subjects; longer ones are ignored without a reply.
	maxKeyLength    = 34
	leaderboardSize = 5
)

var (
	mutateRegex = regexp.MustCompile(`(.+?)(-{2,}|\+{2,})\s*$`)
	queryRegex  = regexp.MustCompile(`(?i)^karma\s+.+$`)
	bareRegex   = regexp.MustCompile(`(?i)^karma$`)
	parseRegex  = regexp.MustCompile(`(?i)^karma\s*@?(.+)`)
)

// Store is the karma persistence the handler needs.
type Store interface {
	Score(ctx context.Context, team, key string) (int, error)
	Adjust(ctx context.Context, team, key string, delta int) (int, error)
	Top(ctx context.Context, team string, n int) ([]storage.KarmaEntry, error)
}

// Handler implements "thing++", "thing--", "karma thing" and "karma".
type Handler struct {
	store     Store
	directory bot.UserDirectory
	replies   bot.ReplySink
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

// NewHandler creates a karma handler. metrics may be nil.
func NewHandler(store Store, directory bot.UserDirectory, replies bot.ReplySink, m *metrics.Metrics, log *logger.Logger) *Handler {
	return &Handler{
		store:     store,
		directory: directory,
		replies:   replies,
		metrics:   m,
		logger:    log.WithModule(string(ModuleName)),
	}
}

// Name implements bot.Handler.
func (h *Handler) Name() bot.HandlerID { return ModuleName }

// Patterns implements bot.Handler.
func (h *Handler) Patterns() []bot.PatternRule {
	return []bot.PatternRule{
		{Pattern: bot.Regex(mutateRegex), Owner: ModuleName, Priority: 10},
		{Pattern: bot.Regex(queryRegex), Owner: ModuleName, Priority: 10},
		{Pattern: bot.Regex(bareRegex), Owner: ModuleName, Priority: 10},
	}
}

// Respond implements bot.Handler. A trailing ++/-- wins over a leading
// "karma", so "karma c++" votes for "karma c".
func (h *Handler) Respond(ctx context.Context, event bot.InboundEvent, text string) error {
	if m := mutateRegex.FindStringSubmatch(text); m != nil {
		delta := 1
		if strings.HasPrefix(m[2], "-") {
			delta = -1
		}
		return h.mutate(ctx, event, strings.TrimSpace(m[1]), delta)
	}
	if bareRegex.MatchString(text) {
		return h.leaderboard(ctx, event)
	}
	if m := parseRegex.FindStringSubmatch(text); m != nil {
		query := strings.TrimSpace(m[1])
		query = strings.TrimSuffix(query, "?")
		return h.query(ctx, event, query)
	}
	return nil
}

// subject is a resolved karma target.
type subject struct {
	key     string
	display string
}

// resolve maps text to a storage key: a mentioned user's ID, a raw user ID
// as typed, or otherwise the lowercased text.
func (h *Handler) resolve(ctx context.Context, text string) subject {
	if user := bot.ResolveMentionedUser(ctx, h.directory, text); user != nil {
		return subject{key: user.ID, display: user.Label(text)}
	}
	if bot.IsRawUserID(text) {
		return subject{key: text, display: text}
	}
	return subject{key: stringutil.FoldKey(text), display: text}
}

func (h *Handler) mutate(ctx context.Context, event bot.InboundEvent, text string, delta int) error {
	s := h.resolve(ctx, text)
	if stringutil.Len(s.key) > maxKeyLength {
		h.logger.WithField("key_length", stringutil.Len(s.key)).DebugContext(ctx, "Ignoring long karma subject")
		return nil
	}

	// A raw ID shares the mentioned user's key, so both forms are guarded.
	if s.key == event.UserID {
		return h.replies.Reply(ctx, bot.ReplyTo(event, fmt.Sprintf("Nice try <@%s>, but no...", event.UserID)))
	}

	score, err := h.store.Adjust(ctx, event.TeamID, s.key, delta)
	if err != nil {
		return domerrors.NewWrapper(string(ModuleName), "adjust").
			Wrap(err, "Failed to update karma for "+s.display)
	}

	direction := "up"
	if delta < 0 {
		direction = "down"
	}
	h.metrics.RecordKarmaChange(direction)

	return h.replies.Reply(ctx, bot.ReplyTo(event, fmt.Sprintf("%s has karma of %d", s.display, score)))
}

func (h *Handler) query(ctx context.Context, event bot.InboundEvent, text string) error {
	s := h.resolve(ctx, text)
	score, err := h.store.Score(ctx, event.TeamID, s.key)
	if err != nil {
		return domerrors.NewWrapper(string(ModuleName), "score").
			Wrap(err, "Failed to get karma for "+s.display)
	}
	return h.replies.Reply(ctx, bot.ReplyTo(event, fmt.Sprintf("%s has karma %d", s.display, score)))
}

func (h *Handler) leaderboard(ctx context.Context, event bot.InboundEvent) error {
	entries, err := h.store.Top(ctx, event.TeamID, leaderboardSize)
	if err != nil {
		return domerrors.NewWrapper(string(ModuleName), "top").
			Wrap(err, "Failed to get the karma leaderboard")
	}
	if len(entries) == 0 {
		return h.replies.Reply(ctx, bot.ReplyTo(event, "Nobody has any karma yet."))
	}

	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s (%d)", i+1, h.label(ctx, e.Key), e.Score)
	}
	return h.replies.Reply(ctx, bot.ReplyTo(event, b.String()))
}

// label renders a stored key; user IDs become names so the leaderboard
// does not ping anyone.
func (h *Handler) label(ctx context.Context, key string) string {
	if !bot.IsRawUserID(key) || h.directory == nil {
		return key
	}
	user, err := h.directory.LookupUser(ctx, key)
	if err != nil {
		return key
	}
	return user.Label(key)
}
