// Package factoid stores and recalls short facts ("pizza is delicious")
// and asks for confirmation before overwriting or forgetting one.
package factoid

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/garyellow/lullabot-go/internal/bot"
	domerrors "github.com/garyellow/lullabot-go/internal/errors"
	"github.com/garyellow/lullabot-go/internal/logger"
	"github.com/garyellow/lullabot-go/internal/storage"
	"github.com/garyellow/lullabot-go/internal/stringutil"
)

// ModuleName is the handler ID.
const ModuleName bot.HandlerID = "factoid"

const (
	saveFailedMessage = "There was a problem saving the factoid."
	listFailedMessage = "Sorry, there was an error listing the factoids."
)

var (
	listRegex    = regexp.MustCompile(`(?i)^!factoid:\s*list$`)
	forgetRegex  = regexp.MustCompile(`(?i)^forget\s+(.+)$`)
	confirmRegex = regexp.MustCompile(`(?i)^(YES|NO|APPEND)$`)
	// Slack escapes "<" and ">" in message text, so both spellings of the
	// reply marker are accepted.
	setRegex = regexp.MustCompile(`^(.+?)\s(is|are)\s(<reply>|&lt;reply&gt;)?(.+)$`)
)

// Store is the factoid persistence the handler needs.
type Store interface {
	Get(ctx context.Context, team, index string) (storage.Fact, bool, error)
	Put(ctx context.Context, team string, f storage.Fact) error
	Append(ctx context.Context, team, index string, values []string) (storage.Fact, bool, error)
	Delete(ctx context.Context, team, index string) (bool, error)
	List(ctx context.Context, team string) ([]storage.Fact, error)
}

// Matcher reports whether another command claims text. *bot.Registry
// implements it.
type Matcher interface {
	MatchesAny(text string) bool
}

// Handler implements factoid query, set, forget, list and the YES/NO/APPEND
// confirmation step.
type Handler struct {
	store     Store
	pending   *PendingStore
	matcher   Matcher
	directory bot.UserDirectory
	replies   bot.ReplySink
	logger    *logger.Logger
}

// Config holds the handler's collaborators.
type Config struct {
	Store     Store
	Pending   *PendingStore
	Matcher   Matcher
	Directory bot.UserDirectory
	Replies   bot.ReplySink
	Logger    *logger.Logger
}

// NewHandler creates a factoid handler. The caller owns the PendingStore's
// Start/Stop lifecycle.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		store:     cfg.Store,
		pending:   cfg.Pending,
		matcher:   cfg.Matcher,
		directory: cfg.Directory,
		replies:   cfg.Replies,
		logger:    cfg.Logger.WithModule(string(ModuleName)),
	}
}

// Name implements bot.Handler.
func (h *Handler) Name() bot.HandlerID { return ModuleName }

// Patterns implements bot.Handler. The query predicate and the set pattern
// are broad, so they sit below every other command.
func (h *Handler) Patterns() []bot.PatternRule {
	return []bot.PatternRule{
		{Pattern: bot.Regex(listRegex), Owner: ModuleName, Priority: 4},
		{Pattern: bot.Regex(forgetRegex), Owner: ModuleName, Priority: 4},
		{Pattern: bot.Regex(confirmRegex), Owner: ModuleName, Priority: 3},
		{Pattern: bot.Predicate(IsQuery), Owner: ModuleName, Priority: 2},
		{Pattern: bot.Regex(setRegex), Owner: ModuleName, Priority: 1},
	}
}

// Respond implements bot.Handler, checking the sub-commands in the same
// order as their pattern priorities.
func (h *Handler) Respond(ctx context.Context, event bot.InboundEvent, text string) error {
	switch {
	case listRegex.MatchString(text):
		return h.list(ctx, event)
	case forgetRegex.MatchString(text):
		return h.forget(ctx, event, strings.TrimSpace(forgetRegex.FindStringSubmatch(text)[1]))
	case confirmRegex.MatchString(text):
		return h.confirm(ctx, event, strings.ToUpper(text))
	case IsQuery(text):
		return h.query(ctx, event, QuerySubject(text))
	case setRegex.MatchString(text):
		return h.set(ctx, event, setRegex.FindStringSubmatch(text))
	}
	return nil
}

// resolve maps text to a fact index: a mentioned user's ID, otherwise the
// lowercased text. The returned key is what gets stored for display.
func (h *Handler) resolve(ctx context.Context, text string) (index, key string) {
	if user := bot.ResolveMentionedUser(ctx, h.directory, text); user != nil {
		return user.ID, "<@" + user.ID + ">"
	}
	folded := stringutil.FoldKey(text)
	return folded, folded
}

// find looks text up by resolved user first, then by its lowercased form.
func (h *Handler) find(ctx context.Context, team, text string) (storage.Fact, bool, error) {
	index, _ := h.resolve(ctx, text)
	f, ok, err := h.store.Get(ctx, team, index)
	if err != nil || ok {
		return f, ok, err
	}
	if folded := stringutil.FoldKey(text); folded != index {
		return h.store.Get(ctx, team, folded)
	}
	return storage.Fact{}, false, nil
}

func (h *Handler) query(ctx context.Context, event bot.InboundEvent, subject string) error {
	if subject == "" {
		return nil
	}
	f, ok, err := h.find(ctx, event.TeamID, subject)
	if err != nil {
		// Queries are ambient chatter more often than not; stay quiet.
		h.logger.WithError(err).WarnContext(ctx, "Factoid lookup failed")
		return nil
	}
	if !ok {
		return nil
	}
	return h.replies.Reply(ctx, bot.ReplyTo(event, FactString(f)))
}

func (h *Handler) set(ctx context.Context, event bot.InboundEvent, m []string) error {
	if !event.Addressed {
		return nil
	}
	text := strings.TrimSpace(m[1])
	if text == "" || h.matcher.MatchesAny(text) {
		return nil
	}

	index, key := h.resolve(ctx, text)
	fact := storage.Fact{
		Index: index,
		Key:   key,
		Be:    m[2],
		Reply: m[3] != "",
		Value: []string{strings.TrimSpace(m[4])},
	}

	wrap := domerrors.NewWrapper(string(ModuleName), "set")
	existing, ok, err := h.store.Get(ctx, event.TeamID, index)
	if err != nil {
		return wrap.Wrap(err, saveFailedMessage)
	}

	if !ok {
		if err := h.store.Put(ctx, event.TeamID, fact); err != nil {
			return wrap.Wrap(err, saveFailedMessage)
		}
		return h.replies.Reply(ctx, bot.ReplyInThread(event, "Got it!"))
	}

	h.pending.Put(event.UserID, PendingRequest{
		Action: ActionUpdate,
		TeamID: event.TeamID,
		Fact:   fact,
		Text:   text,
	})
	return h.say(ctx, bot.ReplyInThread(event, ""),
		fmt.Sprintf("I already have a factoid for \"%s\". It says \"%s\"", existing.Key, FactString(existing)),
		"Do you want me to update it? Say YES, NO, or APPEND",
	)
}

func (h *Handler) forget(ctx context.Context, event bot.InboundEvent, text string) error {
	if !event.Addressed {
		return nil
	}

	f, ok, err := h.find(ctx, event.TeamID, text)
	if err != nil {
		return domerrors.NewWrapper(string(ModuleName), "forget").Wrap(err, saveFailedMessage)
	}
	if !ok {
		return h.replies.Reply(ctx, bot.ReplyInThread(event, fmt.Sprintf("I don't have any factoid for \"%s\"", text)))
	}

	h.pending.Put(event.UserID, PendingRequest{
		Action: ActionForget,
		TeamID: event.TeamID,
		Fact:   f,
		Text:   text,
	})
	return h.replies.Reply(ctx, bot.ReplyInThread(event,
		fmt.Sprintf("Are you sure you want me to forget \"%s\"? Say YES or NO", f.Key)))
}

// confirm resolves the acting user's pending request. Without a live
// request the answer is ignored.
func (h *Handler) confirm(ctx context.Context, event bot.InboundEvent, answer string) error {
	req, ok := h.pending.Get(event.UserID)
	if !ok {
		return nil
	}

	switch req.Action {
	case ActionForget:
		return h.confirmForget(ctx, event, req, answer)
	case ActionUpdate:
		return h.confirmUpdate(ctx, event, req, answer)
	}
	h.pending.Delete(event.UserID)
	return nil
}

func (h *Handler) confirmForget(ctx context.Context, event bot.InboundEvent, req PendingRequest, answer string) error {
	switch answer {
	case "YES":
		h.pending.Delete(event.UserID)
		if _, err := h.store.Delete(ctx, req.TeamID, req.Fact.Index); err != nil {
			return domerrors.NewWrapper(string(ModuleName), "forget").Wrap(err, saveFailedMessage)
		}
		return h.replies.Reply(ctx, bot.ReplyTo(event, fmt.Sprintf("I've forgotten about \"%s\"", req.Text)))
	case "NO":
		h.pending.Delete(event.UserID)
		return h.replies.Reply(ctx, bot.ReplyTo(event, "Okay, I'll keep it."))
	default:
		// APPEND means nothing for a forget; keep waiting for YES or NO.
		return nil
	}
}

func (h *Handler) confirmUpdate(ctx context.Context, event bot.InboundEvent, req PendingRequest, answer string) error {
	h.pending.Delete(event.UserID)
	wrap := domerrors.NewWrapper(string(ModuleName), "update")

	switch answer {
	case "YES":
		if err := h.store.Put(ctx, req.TeamID, req.Fact); err != nil {
			return wrap.Wrap(err, saveFailedMessage)
		}
		return h.say(ctx, bot.ReplyTo(event, ""), "Okay, I've overwritten the existing factoid", FactString(req.Fact))
	case "APPEND":
		updated, ok, err := h.store.Append(ctx, req.TeamID, req.Fact.Index, req.Fact.Value)
		if err == nil && !ok {
			// Forgotten in the meantime; appending to nothing is a plain set.
			updated, err = req.Fact, h.store.Put(ctx, req.TeamID, req.Fact)
		}
		if err != nil {
			return wrap.Wrap(err, saveFailedMessage)
		}
		return h.say(ctx, bot.ReplyTo(event, ""), "Okay, I've updated it", FactString(updated))
	default:
		return h.replies.Reply(ctx, bot.ReplyTo(event, "Okay, I'll leave it as is."))
	}
}

func (h *Handler) list(ctx context.Context, event bot.InboundEvent) error {
	facts, err := h.store.List(ctx, event.TeamID)
	if err != nil {
		return domerrors.NewWrapper(string(ModuleName), "list").Wrap(err, listFailedMessage)
	}
	if len(facts) == 0 {
		return h.replies.Reply(ctx, bot.ReplyTo(event, "No factoids stored yet."))
	}

	keys := make([]string, len(facts))
	for i, f := range facts {
		keys[i] = f.Key
	}
	return h.replies.Reply(ctx, bot.ReplyTo(event, "Available factoids: "+strings.Join(keys, ", ")))
}

// say sends each line as its own message, addressed like base.
func (h *Handler) say(ctx context.Context, base bot.Reply, lines ...string) error {
	for _, line := range lines {
		base.Text = line
		if err := h.replies.Reply(ctx, base); err != nil {
			return err
		}
	}
	return nil
}
