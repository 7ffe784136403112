package ratelimit

import (
	"sync"
	"time"
)

// Window is a sliding window counter: the previous fixed window's count is
// weighted by how much of it still overlaps the sliding window.
// A nil *Window allows everything.
type Window struct {
	mu    sync.Mutex
	limit int
	size  time.Duration
	start time.Time
	curr  int
	prev  int
	now   func() time.Time
}

// NewWindow returns nil (unlimited) when limit <= 0.
func NewWindow(limit int, size time.Duration) *Window {
	return newWindow(limit, size, time.Now)
}

func newWindow(limit int, size time.Duration, now func() time.Time) *Window {
	if limit <= 0 {
		return nil
	}
	return &Window{limit: limit, size: size, start: now(), now: now}
}

// rotate and weighted must be called with mu held.
func (w *Window) rotate() {
	elapsed := w.now().Sub(w.start)
	if elapsed < w.size {
		return
	}
	passed := int(elapsed / w.size)
	if passed == 1 {
		w.prev = w.curr
	} else {
		w.prev = 0
	}
	w.curr = 0
	w.start = w.start.Add(time.Duration(passed) * w.size)
}

func (w *Window) weighted() float64 {
	overlap := float64(w.size-w.now().Sub(w.start)) / float64(w.size)
	overlap = max(0, min(1, overlap))
	return float64(w.curr) + float64(w.prev)*overlap
}

func (w *Window) check() bool {
	if w == nil {
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.rotate()
	return w.weighted() < float64(w.limit)
}

func (w *Window) consume() {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.rotate()
	w.curr++
}

// Remaining returns the approximate quota left, or -1 when unlimited.
func (w *Window) Remaining() int {
	if w == nil {
		return -1
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.rotate()
	return max(0, int(float64(w.limit)-w.weighted()))
}
