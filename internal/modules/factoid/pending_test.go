package factoid

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/garyellow/lullabot-go/internal/metrics"
	"github.com/garyellow/lullabot-go/internal/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestPendingStore(t *testing.T, m *metrics.Metrics) (*PendingStore, *clock) {
	t.Helper()
	s, err := NewPendingStore(5*time.Minute, "@every 10m", m)
	require.NoError(t, err)
	c := newClock()
	s.now = c.Now
	return s, c
}

func TestPendingStore_PutGet(t *testing.T) {
	t.Parallel()
	s, c := newTestPendingStore(t, nil)

	_, ok := s.Get("U1")
	assert.False(t, ok)

	s.Put("U1", PendingRequest{Action: ActionForget, TeamID: "T1", Text: "pizza"})
	req, ok := s.Get("U1")
	require.True(t, ok)
	assert.Equal(t, ActionForget, req.Action)
	assert.Equal(t, "pizza", req.Text)
	assert.Equal(t, c.Now(), req.CreatedAt)

	s.Delete("U1")
	_, ok = s.Get("U1")
	assert.False(t, ok)
}

func TestPendingStore_LastRequestWins(t *testing.T) {
	t.Parallel()
	s, _ := newTestPendingStore(t, nil)

	s.Put("U1", PendingRequest{Action: ActionForget, Text: "pizza"})
	s.Put("U1", PendingRequest{Action: ActionUpdate, Fact: storage.Fact{Index: "tacos"}})

	req, ok := s.Get("U1")
	require.True(t, ok)
	assert.Equal(t, ActionUpdate, req.Action)
	assert.Equal(t, "tacos", req.Fact.Index)
	assert.Equal(t, 1, s.Len())
}

func TestPendingStore_Expiry(t *testing.T) {
	t.Parallel()
	s, c := newTestPendingStore(t, nil)

	s.Put("U1", PendingRequest{Action: ActionForget})
	c.Advance(5 * time.Minute)
	_, ok := s.Get("U1")
	assert.True(t, ok, "a request exactly at the TTL is still live")

	c.Advance(time.Second)
	_, ok = s.Get("U1")
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len(), "lookup does not remove stale requests")
}

func TestPendingStore_Sweep(t *testing.T) {
	t.Parallel()
	m := metrics.New(prometheus.NewRegistry())
	s, c := newTestPendingStore(t, m)

	s.Put("U1", PendingRequest{Action: ActionForget})
	c.Advance(4 * time.Minute)
	s.Put("U2", PendingRequest{Action: ActionUpdate})
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FactoidPending))

	c.Advance(2 * time.Minute)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FactoidPending))

	_, ok := s.Get("U2")
	assert.True(t, ok)
}

func TestPendingStore_StartStop(t *testing.T) {
	t.Parallel()
	s, _ := newTestPendingStore(t, nil)

	s.Start()
	s.Put("U1", PendingRequest{Action: ActionForget})
	s.Stop()

	assert.Equal(t, 1, s.Len())
}

func TestNewPendingStore_InvalidSchedule(t *testing.T) {
	t.Parallel()

	_, err := NewPendingStore(time.Minute, "every now and then", nil)
	assert.Error(t, err)
}

func TestAction_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "update", ActionUpdate.String())
	assert.Equal(t, "forget", ActionForget.String())
	assert.Equal(t, "unknown", Action(0).String())
}
