package factoid

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/garyellow/lullabot-go/internal/metrics"
	"github.com/garyellow/lullabot-go/internal/storage"
)

// Action is what a pending request will do once confirmed.
type Action int

const (
	// ActionUpdate replaces or extends an existing fact.
	ActionUpdate Action = iota + 1
	// ActionForget deletes a fact.
	ActionForget
)

func (a Action) String() string {
	switch a {
	case ActionUpdate:
		return "update"
	case ActionForget:
		return "forget"
	default:
		return "unknown"
	}
}

// PendingRequest waits for the acting user to answer YES, NO or APPEND.
type PendingRequest struct {
	Action Action
	TeamID string

	// Fact is the proposed fact for updates, or the fact to delete.
	Fact storage.Fact

	// Text is what the user typed to name the fact, echoed back on forget.
	Text string

	CreatedAt time.Time
}

// PendingStore holds at most one pending request per user. Requests older
// than the TTL are ignored on lookup and reclaimed by a periodic sweep.
type PendingStore struct {
	mu       sync.Mutex
	requests map[string]PendingRequest
	ttl      time.Duration
	now      func() time.Time
	metrics  *metrics.Metrics

	cron *cron.Cron
}

// NewPendingStore creates a store sweeping on schedule (a cron spec such as
// "@every 10m"). The sweep runs between Start and Stop.
func NewPendingStore(ttl time.Duration, schedule string, m *metrics.Metrics) (*PendingStore, error) {
	s := &PendingStore{
		requests: make(map[string]PendingRequest),
		ttl:      ttl,
		now:      time.Now,
		metrics:  m,
		cron:     cron.New(),
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.Sweep() }); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins the periodic sweep.
func (s *PendingStore) Start() {
	s.cron.Start()
}

// Stop ends the periodic sweep, waiting for a running sweep to finish.
func (s *PendingStore) Stop() {
	<-s.cron.Stop().Done()
}

// Put stores req for userID, replacing any earlier request.
func (s *PendingStore) Put(userID string, req PendingRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.CreatedAt.IsZero() {
		req.CreatedAt = s.now()
	}
	s.requests[userID] = req
	s.metrics.SetFactoidPending(len(s.requests))
}

// Get returns userID's live request.
func (s *PendingStore) Get(userID string) (PendingRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[userID]
	if !ok || s.expired(req) {
		return PendingRequest{}, false
	}
	return req, true
}

// Delete removes userID's request.
func (s *PendingStore) Delete(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.requests, userID)
	s.metrics.SetFactoidPending(len(s.requests))
}

// Sweep drops expired requests and returns how many were removed.
func (s *PendingStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for user, req := range s.requests {
		if s.expired(req) {
			delete(s.requests, user)
			removed++
		}
	}
	s.metrics.SetFactoidPending(len(s.requests))
	return removed
}

// Len returns the number of stored requests, expired or not.
func (s *PendingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *PendingStore) expired(req PendingRequest) bool {
	return s.now().Sub(req.CreatedAt) > s.ttl
}
