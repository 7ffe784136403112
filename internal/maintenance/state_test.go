package maintenance

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/lullabot-go/internal/r2client"
)

func init() {
	stateRetryDelay = time.Millisecond
}

// bucket is a single versioned object with scripted failures.
type bucket struct {
	mu      sync.Mutex
	body    []byte
	version int

	readErrs  []error // consumed one per Download
	reads     int
	onRead    func()
	conflicts int // PutObjectIfMatch calls to reject before accepting
	writeErr  error
}

func (b *bucket) etag() string { return "v" + strconv.Itoa(b.version) }

func (b *bucket) Download(context.Context, string) (io.ReadCloser, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.reads++
	if b.onRead != nil {
		b.onRead()
	}
	if len(b.readErrs) > 0 {
		err := b.readErrs[0]
		b.readErrs = b.readErrs[1:]
		return nil, "", err
	}
	if b.version == 0 {
		return nil, "", r2client.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b.body)), b.etag(), nil
}

func (b *bucket) PutObjectIfNotExists(_ context.Context, _ string, body io.Reader, _ string) (bool, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.writeErr != nil {
		return false, "", b.writeErr
	}
	if b.version > 0 {
		return false, "", nil
	}
	b.body, _ = io.ReadAll(body)
	b.version++
	return true, b.etag(), nil
}

func (b *bucket) PutObjectIfMatch(_ context.Context, _ string, body io.Reader, etag, _ string) (bool, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.writeErr != nil {
		return false, "", b.writeErr
	}
	if b.conflicts > 0 {
		// Someone else wrote first.
		b.conflicts--
		b.version++
		return false, "", nil
	}
	if etag != b.etag() {
		return false, "", nil
	}
	b.body, _ = io.ReadAll(body)
	b.version++
	return true, b.etag(), nil
}

func newStateStore(t *testing.T, b *bucket) *R2StateStore {
	t.Helper()
	s, err := NewR2StateStore(b, "snapshots/state.json", time.Second)
	require.NoError(t, err)
	return s
}

func TestNewR2StateStore_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewR2StateStore(nil, "snapshots/state.json", time.Second)
	assert.Error(t, err)
	_, err = NewR2StateStore(&bucket{}, "", time.Second)
	assert.Error(t, err)
}

func TestR2StateStore_LoadMissing(t *testing.T) {
	t.Parallel()

	state, found, err := newStateStore(t, &bucket{}).Load(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, State{}, state)
}

func TestR2StateStore_UpdateCreatesThenReplaces(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := &bucket{}
	s := newStateStore(t, b)

	require.NoError(t, s.Update(ctx, func(st *State) {
		st.Digest = "aaa"
		st.ETag = "snap-1"
	}))
	require.NoError(t, s.Update(ctx, func(st *State) {
		assert.Equal(t, "aaa", st.Digest, "update sees the previous state")
		st.Digest = "bbb"
		st.Bytes = 42
	}))

	state, found, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "bbb", state.Digest)
	assert.Equal(t, "snap-1", state.ETag)
	assert.Equal(t, int64(42), state.Bytes)
	assert.NotZero(t, state.UpdatedAt)
	assert.Equal(t, 2, b.version)
}

func TestR2StateStore_UpdateRetriesLostRace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := &bucket{}
	s := newStateStore(t, b)
	require.NoError(t, s.Update(ctx, func(st *State) { st.Digest = "aaa" }))

	b.conflicts = 1
	calls := 0
	require.NoError(t, s.Update(ctx, func(st *State) {
		calls++
		st.Digest = "bbb"
	}))
	assert.Equal(t, 2, calls)

	state, _, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bbb", state.Digest)
}

func TestR2StateStore_UpdateGivesUp(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := &bucket{}
	s := newStateStore(t, b)
	require.NoError(t, s.Update(ctx, func(st *State) {}))

	b.conflicts = stateAttempts
	err := s.Update(ctx, func(st *State) { st.Digest = "lost" })
	assert.ErrorIs(t, err, ErrStateConflict)
}

func TestR2StateStore_UpdateWriteError(t *testing.T) {
	t.Parallel()
	boom := errors.New("503 slow down")

	err := newStateStore(t, &bucket{writeErr: boom}).Update(context.Background(), func(*State) {})
	assert.ErrorIs(t, err, boom)
}

func TestR2StateStore_LoadRetries(t *testing.T) {
	t.Parallel()

	t.Run("recovers", func(t *testing.T) {
		t.Parallel()
		b := &bucket{readErrs: []error{errors.New("reset by peer")}}
		_, found, err := newStateStore(t, b).Load(context.Background())
		require.NoError(t, err)
		assert.False(t, found)
		assert.Equal(t, 2, b.reads)
	})

	t.Run("gives up", func(t *testing.T) {
		t.Parallel()
		b := &bucket{readErrs: []error{errors.New("a"), errors.New("b"), errors.New("c")}}
		_, _, err := newStateStore(t, b).Load(context.Background())
		assert.EqualError(t, err, "maintenance: read state: c")
		assert.Equal(t, stateAttempts, b.reads)
	})

	t.Run("canceled error is final", func(t *testing.T) {
		t.Parallel()
		b := &bucket{readErrs: []error{context.Canceled}}
		_, _, err := newStateStore(t, b).Load(context.Background())
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, b.reads)
	})

	t.Run("stops when context ends during backoff", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		b := &bucket{readErrs: []error{errors.New("temporary")}, onRead: cancel}
		_, _, err := newStateStore(t, b).Load(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, b.reads)
	})
}

func TestR2StateStore_RequestContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := newStateStore(t, &bucket{}).requestContext(context.Background())
	defer cancel()
	_, ok := ctx.Deadline()
	assert.True(t, ok)

	s, err := NewR2StateStore(&bucket{}, "snapshots/state.json", 0)
	require.NoError(t, err)
	ctx, cancel2 := s.requestContext(context.Background())
	defer cancel2()
	_, ok = ctx.Deadline()
	assert.False(t, ok)
}
