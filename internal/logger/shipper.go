package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultShipBuffer  = 1024
	defaultShipTimeout = 5 * time.Second
)

type shipItem struct {
	ctx     context.Context
	record  slog.Record
	handler slog.Handler
}

// shipQueue is shared by every handler derived from one shipHandler so a
// single goroutine drains them all in order.
type shipQueue struct {
	mu      sync.RWMutex
	items   chan shipItem
	closed  bool
	dropped atomic.Uint64
	done    chan struct{}
}

// shipHandler hands records to a background goroutine so a slow remote
// endpoint never blocks message processing. Records are dropped when the
// queue is full.
type shipHandler struct {
	queue   *shipQueue
	handler slog.Handler
}

func newShipHandler(remote slog.Handler, buffer int) *shipHandler {
	if buffer <= 0 {
		buffer = defaultShipBuffer
	}
	q := &shipQueue{
		items: make(chan shipItem, buffer),
		done:  make(chan struct{}),
	}
	go func() {
		defer close(q.done)
		for it := range q.items {
			_ = it.handler.Handle(it.ctx, it.record)
		}
	}()
	return &shipHandler{queue: q, handler: remote}
}

func (h *shipHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *shipHandler) Handle(ctx context.Context, r slog.Record) error {
	h.queue.mu.RLock()
	defer h.queue.mu.RUnlock()
	if h.queue.closed {
		return nil
	}
	select {
	case h.queue.items <- shipItem{ctx: context.WithoutCancel(ctx), record: r.Clone(), handler: h.handler}:
	default:
		h.queue.dropped.Add(1)
	}
	return nil
}

func (h *shipHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &shipHandler{queue: h.queue, handler: h.handler.WithAttrs(attrs)}
}

func (h *shipHandler) WithGroup(name string) slog.Handler {
	return &shipHandler{queue: h.queue, handler: h.handler.WithGroup(name)}
}

// Dropped reports how many records were discarded because the queue was full.
func (h *shipHandler) Dropped() uint64 {
	return h.queue.dropped.Load()
}

func (h *shipHandler) shutdown(ctx context.Context) error {
	h.queue.mu.Lock()
	if !h.queue.closed {
		h.queue.closed = true
		close(h.queue.items)
	}
	h.queue.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultShipTimeout)
		defer cancel()
	}

	select {
	case <-h.queue.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
