package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyellow/lullabot-go/internal/ctxutil"
	domerrors "github.com/garyellow/lullabot-go/internal/errors"
	"github.com/garyellow/lullabot-go/internal/logger"
	"github.com/garyellow/lullabot-go/internal/metrics"
	"github.com/garyellow/lullabot-go/internal/ratelimit"
)

// Outcome is what Dispatch did with an event.
type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeHandled
	OutcomeFallback
	OutcomeFailed
	OutcomeRateLimited
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeHandled:
		return "handled"
	case OutcomeFallback:
		return "fallback"
	case OutcomeFailed:
		return "failed"
	case OutcomeRateLimited:
		return "rate_limited"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

const rateLimitedMessage = "You're sending messages faster than I can keep up. Give me a moment."

// ErrorReporter forwards handler failures to an error tracker.
type ErrorReporter func(ctx context.Context, err error, tags map[string]string)

// DispatcherConfig holds the dispatcher's collaborators. Registry and
// Identity are required; the rest may be nil.
type DispatcherConfig struct {
	Registry *Registry
	Handlers []Handler
	Fallback Fallback
	Identity BotIdentity

	// Replier receives rate-limit notices and the user-facing message of
	// failed handlers.
	Replier ReplySink

	UserLimiter  *ratelimit.KeyedLimiter
	Logger       *logger.Logger
	Metrics      *metrics.Metrics
	ReportError  ErrorReporter
	EventTimeout time.Duration
}

// Dispatcher routes each event to at most one handler.
type Dispatcher struct {
	registry     *Registry
	handlers     map[HandlerID]Handler
	fallback     Fallback
	identity     BotIdentity
	replier      ReplySink
	userLimiter  *ratelimit.KeyedLimiter
	logger       *logger.Logger
	metrics      *metrics.Metrics
	reportError  ErrorReporter
	eventTimeout time.Duration
}

// NewDispatcher registers every handler's patterns and freezes the
// registry. It fails if the registry is already frozen or a handler
// declares an invalid rule.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Registry == nil || cfg.Identity == nil {
		return nil, fmt.Errorf("%w: dispatcher needs a registry and an identity", domerrors.ErrInvalidInput)
	}

	handlers := make(map[HandlerID]Handler, len(cfg.Handlers))
	for _, h := range cfg.Handlers {
		if _, dup := handlers[h.Name()]; dup {
			return nil, fmt.Errorf("%w: duplicate handler %q", domerrors.ErrInvalidInput, h.Name())
		}
		if err := cfg.Registry.RegisterHandler(h); err != nil {
			return nil, fmt.Errorf("register %s: %w", h.Name(), err)
		}
		handlers[h.Name()] = h
	}
	cfg.Registry.Freeze()

	log := cfg.Logger
	if log == nil {
		log = logger.New("info")
	}
	timeout := cfg.EventTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Dispatcher{
		registry:     cfg.Registry,
		handlers:     handlers,
		fallback:     cfg.Fallback,
		identity:     cfg.Identity,
		replier:      cfg.Replier,
		userLimiter:  cfg.UserLimiter,
		logger:       log.WithModule("dispatcher"),
		metrics:      cfg.Metrics,
		reportError:  cfg.ReportError,
		eventTimeout: timeout,
	}, nil
}

// Registry returns the frozen registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch normalizes the event text, picks the owning handler (or the
// fallback for addressed text nobody claims) and runs it. Failures are
// logged and reported; nothing is retried and a failed handler never
// hands over to the fallback.
func (d *Dispatcher) Dispatch(ctx context.Context, event InboundEvent) Outcome {
	ctx = ctxutil.WithRequestID(ctx, uuid.NewString())
	ctx = ctxutil.WithUserID(ctx, event.UserID)
	ctx = ctxutil.WithChannelID(ctx, event.ChannelID)
	ctx = ctxutil.WithTeamID(ctx, event.TeamID)

	text := Normalize(event.Text, d.identity.BotUserID())
	if text == "" {
		return d.finish("", OutcomeIgnored, 0)
	}

	owner, claimed := d.registry.FindOwner(text)
	if !claimed && !event.Addressed {
		return d.finish("", OutcomeIgnored, 0)
	}

	var (
		run     respondFunc
		name    string
		outcome = OutcomeHandled
	)
	switch {
	case claimed:
		h, ok := d.handlers[owner]
		if !ok {
			// A rule registered directly on the registry without a handler.
			d.logger.WithField("owner", string(owner)).Warn("No handler for claimed text")
			return d.finish(string(owner), OutcomeIgnored, 0)
		}
		run, name = h.Respond, string(owner)
	case d.fallback != nil:
		run, name, outcome = d.fallback.Respond, "fallback", OutcomeFallback
	default:
		return d.finish("", OutcomeIgnored, 0)
	}

	// Ambient chatter is never limited: it would drain the bucket for
	// replies and confirmations the user did not ask the bot for.
	if event.Addressed && d.userLimiter != nil && !d.userLimiter.Allow(event.UserID) {
		d.logger.WithField("handler", name).Warn("User rate limit exceeded")
		d.reply(ctx, ReplyTo(event, rateLimitedMessage))
		return d.finish(name, OutcomeRateLimited, 0)
	}

	processCtx, cancel := context.WithTimeout(ctx, d.eventTimeout)
	defer cancel()

	start := time.Now()
	err := recovered(run)(processCtx, event, text)
	elapsed := time.Since(start)

	if err != nil {
		d.handleFailure(ctx, event, name, err)
		return d.finish(name, OutcomeFailed, elapsed)
	}

	d.logger.WithField("handler", name).
		WithField("duration_ms", elapsed.Milliseconds()).
		Debug("Event handled")
	return d.finish(name, outcome, elapsed)
}

func (d *Dispatcher) handleFailure(ctx context.Context, event InboundEvent, name string, err error) {
	log := d.logger.WithField("handler", name).WithError(err)

	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		log.WithField("stack", string(panicErr.Stack)).ErrorContext(ctx, "Handler panicked")
	} else {
		log.ErrorContext(ctx, "Handler failed")
	}

	if d.reportError != nil {
		d.reportError(ctx, err, map[string]string{"handler": name})
	}

	if msg, ok := domerrors.UserMessage(err); ok && strings.TrimSpace(msg) != "" {
		// The handler's context may be spent; the reply gets its own deadline.
		replyCtx, cancel := context.WithTimeout(ctxutil.PreserveTracing(ctx), 10*time.Second)
		defer cancel()
		d.reply(replyCtx, ReplyTo(event, msg))
	}
}

func (d *Dispatcher) reply(ctx context.Context, r Reply) {
	if d.replier == nil {
		return
	}
	if err := d.replier.Reply(ctx, r); err != nil {
		d.logger.WithError(err).WarnContext(ctx, "Failed to send reply")
	}
}

func (d *Dispatcher) finish(handler string, outcome Outcome, elapsed time.Duration) Outcome {
	d.metrics.RecordDispatch(handler, outcome.String(), elapsed.Seconds())
	return outcome
}
