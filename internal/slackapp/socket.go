package slackapp

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/garyellow/lullabot-go/internal/logger"
)

// socketConn is the part of *socketmode.Client the listener drives.
type socketConn interface {
	RunContext(ctx context.Context) error
	Ack(req socketmode.Request, payload ...any)
}

// SocketListener receives events over Socket Mode.
type SocketListener struct {
	conn      socketConn
	events    <-chan socketmode.Event
	router    *Router
	logger    *logger.Logger
	connected atomic.Bool
}

// NewSocketListener creates a listener on the client's app-level token.
func NewSocketListener(api *slack.Client, router *Router, log *logger.Logger) *SocketListener {
	sc := socketmode.New(api, socketmode.OptionDebug(false))
	return newSocketListener(sc, sc.Events, router, log)
}

func newSocketListener(conn socketConn, events <-chan socketmode.Event, router *Router, log *logger.Logger) *SocketListener {
	return &SocketListener{
		conn:   conn,
		events: events,
		router: router,
		logger: log.WithModule("slack_socket"),
	}
}

// Connected reports whether the websocket is currently up.
func (l *SocketListener) Connected() bool {
	return l.connected.Load()
}

// Run connects and processes events until ctx is canceled.
func (l *SocketListener) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() {
		runErr <- l.conn.RunContext(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			l.connected.Store(false)
			l.drain(runErr)
			return nil
		case err := <-runErr:
			l.connected.Store(false)
			if err == nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("socket mode: %w", err)
		case evt, ok := <-l.events:
			if !ok {
				l.connected.Store(false)
				return nil
			}
			l.handle(evt)
		}
	}
}

// drain discards events until the connection goroutine exits so it never
// blocks on a full channel.
func (l *SocketListener) drain(runErr <-chan error) {
	events := l.events
	for {
		select {
		case <-runErr:
			return
		case _, ok := <-events:
			if !ok {
				events = nil
			}
		}
	}
}

func (l *SocketListener) handle(evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		l.logger.Info("Connecting to Socket Mode")

	case socketmode.EventTypeConnectionError, socketmode.EventTypeInvalidAuth:
		l.connected.Store(false)
		l.logger.WithField("data", evt.Data).Warn("Socket Mode connection error")

	case socketmode.EventTypeConnected:
		l.connected.Store(true)
		l.logger.Info("Connected to Socket Mode")

	case socketmode.EventTypeDisconnect:
		l.connected.Store(false)
		l.logger.Info("Socket Mode disconnected")

	case socketmode.EventTypeEventsAPI:
		if evt.Request != nil {
			l.conn.Ack(*evt.Request)
		}
		cb, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			l.logger.WithField("data_type", fmt.Sprintf("%T", evt.Data)).Warn("Unexpected Events API payload")
			return
		}
		if cb.Type == slackevents.CallbackEvent {
			l.router.HandleCallback(cb)
		}

	case socketmode.EventTypeSlashCommand, socketmode.EventTypeInteractive:
		// Not supported; ack so Slack stops redelivering.
		if evt.Request != nil {
			l.conn.Ack(*evt.Request)
		}
	}
}
