// Package maintenance runs the bot's periodic background jobs and keeps
// the state they share across restarts.
package maintenance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/garyellow/lullabot-go/internal/r2client"
)

const (
	stateContentType = "application/json"
	stateAttempts    = 3
)

// ErrStateConflict is returned when every compare-and-swap attempt lost to
// a concurrent writer.
var ErrStateConflict = errors.New("maintenance: state changed concurrently")

// stateRetryDelay is the base delay between failed reads; attempt n waits
// n times as long. Tests shorten it.
var stateRetryDelay = 100 * time.Millisecond

// State describes the most recently published snapshot.
type State struct {
	Digest      string `json:"digest"` // sha256 of the uncompressed database copy
	ETag        string `json:"etag"`
	Bytes       int64  `json:"bytes"`
	PublishedAt int64  `json:"published_at"`
	UpdatedAt   int64  `json:"updated_at"`
}

// ObjectClient is the conditional-write subset of *r2client.Client.
type ObjectClient interface {
	Download(ctx context.Context, key string) (io.ReadCloser, string, error)
	PutObjectIfNotExists(ctx context.Context, key string, body io.Reader, contentType string) (bool, string, error)
	PutObjectIfMatch(ctx context.Context, key string, body io.Reader, etag, contentType string) (bool, string, error)
}

// R2StateStore keeps State as a JSON object in the snapshot bucket. Writes
// use ETag preconditions, so two instances sharing a bucket never
// overwrite each other blindly.
type R2StateStore struct {
	client  ObjectClient
	key     string
	timeout time.Duration // per request; 0 means none
}

// NewR2StateStore creates a store for the object at key.
func NewR2StateStore(client ObjectClient, key string, timeout time.Duration) (*R2StateStore, error) {
	switch {
	case client == nil:
		return nil, errors.New("maintenance: object client is required")
	case key == "":
		return nil, errors.New("maintenance: state key is required")
	}
	return &R2StateStore{client: client, key: key, timeout: timeout}, nil
}

// Load returns the stored state. found is false when nothing has been
// recorded yet. Failed reads are retried; cancellation is returned at once.
func (s *R2StateStore) Load(ctx context.Context) (state State, found bool, err error) {
	state, _, found, err = s.read(ctx)
	return state, found, err
}

// Update reads the state, applies fn and writes it back if nobody else
// wrote in between. A lost race re-reads and re-applies fn.
func (s *R2StateStore) Update(ctx context.Context, fn func(*State)) error {
	for range stateAttempts {
		// etag is empty when the object does not exist yet.
		state, etag, _, err := s.read(ctx)
		if err != nil {
			return err
		}

		fn(&state)
		state.UpdatedAt = time.Now().UTC().Unix()

		written, err := s.write(ctx, state, etag)
		if err != nil {
			return err
		}
		if written {
			return nil
		}
	}
	return ErrStateConflict
}

// read fetches the object with retries and returns its ETag.
func (s *R2StateStore) read(ctx context.Context) (State, string, bool, error) {
	var lastErr error
	for attempt := 1; attempt <= stateAttempts; attempt++ {
		state, etag, found, err := s.readOnce(ctx)
		if err == nil {
			return state, etag, found, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return State{}, "", false, err
		}
		lastErr = err

		if attempt == stateAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return State{}, "", false, ctx.Err()
		case <-time.After(stateRetryDelay * time.Duration(attempt)):
		}
	}
	return State{}, "", false, lastErr
}

func (s *R2StateStore) readOnce(ctx context.Context) (State, string, bool, error) {
	ctx, cancel := s.requestContext(ctx)
	defer cancel()

	body, etag, err := s.client.Download(ctx, s.key)
	if errors.Is(err, r2client.ErrNotFound) {
		return State{}, "", false, nil
	}
	if err != nil {
		return State{}, "", false, fmt.Errorf("maintenance: read state: %w", err)
	}
	defer body.Close()

	var state State
	if err := json.NewDecoder(body).Decode(&state); err != nil {
		return State{}, "", false, fmt.Errorf("maintenance: decode state: %w", err)
	}
	return state, etag, true, nil
}

// write stores state if the object still has etag, or creates it when
// etag is empty. It reports false when the precondition failed.
func (s *R2StateStore) write(ctx context.Context, state State, etag string) (bool, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return false, fmt.Errorf("maintenance: encode state: %w", err)
	}

	ctx, cancel := s.requestContext(ctx)
	defer cancel()

	var ok bool
	if etag == "" {
		ok, _, err = s.client.PutObjectIfNotExists(ctx, s.key, bytes.NewReader(data), stateContentType)
	} else {
		ok, _, err = s.client.PutObjectIfMatch(ctx, s.key, bytes.NewReader(data), etag, stateContentType)
	}
	if err != nil {
		return false, fmt.Errorf("maintenance: write state: %w", err)
	}
	return ok, nil
}

func (s *R2StateStore) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
