package slackapp

import (
	"context"
	"sync"

	"github.com/slack-go/slack/slackevents"

	"github.com/garyellow/lullabot-go/internal/bot"
	"github.com/garyellow/lullabot-go/internal/logger"
	"github.com/garyellow/lullabot-go/internal/metrics"
)

// Router hands Events API callbacks to the dispatcher, one goroutine per
// event. Both Socket Mode and the HTTP endpoint feed it.
type Router struct {
	dispatcher Dispatcher
	identity   bot.BotIdentity
	logger     *logger.Logger
	metrics    *metrics.Metrics
	wg         sync.WaitGroup
}

// NewRouter creates a Router.
func NewRouter(d Dispatcher, identity bot.BotIdentity, log *logger.Logger, m *metrics.Metrics) *Router {
	return &Router{
		dispatcher: d,
		identity:   identity,
		logger:     log.WithModule("slack"),
		metrics:    m,
	}
}

// HandleCallback converts cb and dispatches it asynchronously. It returns
// false when the event is skipped.
func (r *Router) HandleCallback(cb slackevents.EventsAPIEvent) bool {
	typ := EventType(cb)
	event, ok := FromCallback(cb, r.identity.BotUserID())
	if !ok {
		r.metrics.RecordEvent(typ, "skipped")
		return false
	}
	r.metrics.RecordEvent(typ, "dispatched")

	r.wg.Go(func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.WithField("panic", rec).Error("Panic in event dispatch")
			}
		}()
		r.dispatcher.Dispatch(context.Background(), event)
	})
	return true
}

// Wait blocks until in-flight events finish or ctx is done.
func (r *Router) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
