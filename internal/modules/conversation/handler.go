// Package conversation answers addressed messages that no command claims,
// using a language model with a short per-channel memory.
package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/garyellow/lullabot-go/internal/bot"
	"github.com/garyellow/lullabot-go/internal/character"
	"github.com/garyellow/lullabot-go/internal/genai"
	"github.com/garyellow/lullabot-go/internal/logger"
)

const (
	// DefaultHistoryLimit bounds the turns kept per channel.
	DefaultHistoryLimit = 10

	failureMessage     = "I'm having trouble processing that request right now. Please try again later."
	rateLimitedMessage = "I need a short break. Try again in a bit."
)

var errEmptyAnswer = errors.New("model returned an empty answer")

// Matcher reports whether a command claims text. *bot.Registry implements it.
type Matcher interface {
	MatchesAny(text string) bool
}

// Characters supplies the active persona. *character.Store implements it.
type Characters interface {
	Current() *character.Character
}

// Limiter throttles model calls per user. *ratelimit.KeyedLimiter
// implements it.
type Limiter interface {
	Allow(key string) bool
}

// Config holds the handler's collaborators. Limiter is optional.
type Config struct {
	Completer    genai.Completer
	Characters   Characters
	Capabilities string
	Matcher      Matcher
	Limiter      Limiter
	Replies      bot.ReplySink
	Logger       *logger.Logger
	HistoryLimit int
}

// Handler implements bot.Fallback.
type Handler struct {
	completer    genai.Completer
	characters   Characters
	capabilities string
	matcher      Matcher
	limiter      Limiter
	replies      bot.ReplySink
	logger       *logger.Logger
	limit        int

	mu      sync.Mutex
	history map[string][]genai.Message
}

// NewHandler creates the conversational fallback.
func NewHandler(cfg Config) *Handler {
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Handler{
		completer:    cfg.Completer,
		characters:   cfg.Characters,
		capabilities: cfg.Capabilities,
		matcher:      cfg.Matcher,
		limiter:      cfg.Limiter,
		replies:      cfg.Replies,
		logger:       cfg.Logger.WithModule("conversation"),
		limit:        limit,
		history:      make(map[string][]genai.Message),
	}
}

// Respond implements bot.Fallback. Model failures are answered with an
// apology and never returned, so the dispatcher records them as handled.
func (h *Handler) Respond(ctx context.Context, event bot.InboundEvent, text string) error {
	text = strings.TrimSpace(text)
	if text == "" || h.matcher.MatchesAny(text) {
		return nil
	}

	if h.limiter != nil && !h.limiter.Allow(event.UserID) {
		return h.replies.Reply(ctx, bot.ReplyTo(event, rateLimitedMessage))
	}

	char := h.characters.Current()
	req := genai.CompletionRequest{
		System:      h.systemPrompt(char),
		History:     h.History(event.ChannelID),
		Message:     text,
		Model:       char.Settings.Model,
		Temperature: char.Settings.Temperature,
		MaxTokens:   char.Settings.MaxTokens,
	}

	answer, err := h.completer.Complete(ctx, req)
	if err == nil && strings.TrimSpace(answer) == "" {
		err = errEmptyAnswer
	}
	if err != nil {
		h.logger.WithError(err).ErrorContext(ctx, "Completion failed")
		return h.replies.Reply(ctx, bot.ReplyTo(event, failureMessage))
	}

	h.remember(event.ChannelID,
		genai.Message{Role: genai.RoleUser, Content: text},
		genai.Message{Role: genai.RoleAssistant, Content: answer},
	)
	return h.replies.Reply(ctx, bot.ReplyTo(event, answer))
}

func (h *Handler) systemPrompt(c *character.Character) string {
	if h.capabilities == "" {
		return c.SystemPrompt
	}
	return strings.TrimSpace(c.SystemPrompt) + "\n\n" + h.capabilities
}

// History returns a copy of channelID's turns, oldest first.
func (h *Handler) History(channelID string) []genai.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]genai.Message(nil), h.history[channelID]...)
}

// Reset forgets channelID's turns.
func (h *Handler) Reset(channelID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.history, channelID)
}

// remember appends turns and drops the oldest beyond the limit.
func (h *Handler) remember(channelID string, add ...genai.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	turns := append(h.history[channelID], add...)
	if over := len(turns) - h.limit; over > 0 {
		turns = append([]genai.Message(nil), turns[over:]...)
	}
	h.history[channelID] = turns
}
