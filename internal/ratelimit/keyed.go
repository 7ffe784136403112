package ratelimit

import (
	"sync"
	"time"

	"github.com/garyellow/lullabot-go/internal/metrics"
)

// KeyedConfig configures a KeyedLimiter.
type KeyedConfig struct {
	// Name labels dropped requests in metrics ("user", "llm").
	Name string

	Burst      float64 // bucket capacity
	RefillRate float64 // tokens per second

	// DailyLimit adds a rolling 24h cap when > 0.
	DailyLimit int

	// CleanupPeriod is how often idle keys are forgotten.
	CleanupPeriod time.Duration

	Metrics *metrics.Metrics
}

// KeyedLimiter keeps one bucket (and optional daily window) per key, usually
// a Slack user ID. Idle keys are dropped by a background goroutine until
// Stop is called.
type KeyedLimiter struct {
	cfg     KeyedConfig
	now     func() time.Time
	mu      sync.RWMutex
	entries map[string]*keyedEntry
	stopCh  chan struct{}
	done    chan struct{}
	once    sync.Once
}

type keyedEntry struct {
	mu     sync.Mutex // makes check-then-consume across both layers atomic
	bucket *Bucket
	daily  *Window
}

// NewKeyedLimiter starts the cleanup goroutine.
func NewKeyedLimiter(cfg KeyedConfig) *KeyedLimiter {
	return newKeyedLimiter(cfg, time.Now)
}

func newKeyedLimiter(cfg KeyedConfig, now func() time.Time) *KeyedLimiter {
	if cfg.CleanupPeriod <= 0 {
		cfg.CleanupPeriod = 5 * time.Minute
	}
	kl := &KeyedLimiter{
		cfg:     cfg,
		now:     now,
		entries: make(map[string]*keyedEntry),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	go kl.cleanupLoop()
	return kl
}

// Allow consumes one request for key. The empty key is never limited.
func (kl *KeyedLimiter) Allow(key string) bool {
	if key == "" {
		return true
	}

	e := kl.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.daily.check() || !e.bucket.check() {
		kl.cfg.Metrics.RecordRateLimiterDrop(kl.cfg.Name)
		return false
	}
	e.daily.consume()
	e.bucket.Allow()
	return true
}

func (kl *KeyedLimiter) entry(key string) *keyedEntry {
	kl.mu.RLock()
	e, ok := kl.entries[key]
	kl.mu.RUnlock()
	if ok {
		return e
	}

	kl.mu.Lock()
	defer kl.mu.Unlock()
	if e, ok = kl.entries[key]; ok {
		return e
	}
	e = &keyedEntry{
		bucket: newBucket(kl.cfg.Burst, kl.cfg.RefillRate, kl.now),
		daily:  newWindow(kl.cfg.DailyLimit, 24*time.Hour, kl.now),
	}
	kl.entries[key] = e
	return e
}

// DailyRemaining returns the rolling daily quota left for key, or -1 when
// no daily cap is configured.
func (kl *KeyedLimiter) DailyRemaining(key string) int {
	if kl.cfg.DailyLimit <= 0 {
		return -1
	}
	kl.mu.RLock()
	e, ok := kl.entries[key]
	kl.mu.RUnlock()
	if !ok {
		return kl.cfg.DailyLimit
	}
	return e.daily.Remaining()
}

// ActiveKeys returns the number of tracked keys.
func (kl *KeyedLimiter) ActiveKeys() int {
	kl.mu.RLock()
	defer kl.mu.RUnlock()
	return len(kl.entries)
}

func (kl *KeyedLimiter) cleanupLoop() {
	defer close(kl.done)

	ticker := time.NewTicker(kl.cfg.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-kl.stopCh:
			return
		case <-ticker.C:
			kl.cleanup()
		}
	}
}

// cleanup forgets keys whose bucket has refilled and that have no daily
// usage left to remember.
func (kl *KeyedLimiter) cleanup() {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	for key, e := range kl.entries {
		if e.bucket.Full() && (e.daily == nil || e.daily.Remaining() == kl.cfg.DailyLimit) {
			delete(kl.entries, key)
		}
	}
}

// Stop terminates the cleanup goroutine and waits for it. Safe to call
// more than once.
func (kl *KeyedLimiter) Stop() {
	kl.once.Do(func() { close(kl.stopCh) })
	<-kl.done
}
