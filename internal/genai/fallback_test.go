package genai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/garyellow/lullabot-go/internal/metrics"
)

// mockCompleter returns results[i] on call i, repeating the last one.
type mockCompleter struct {
	provider Provider
	model    string
	results  []error
	reply    string

	mu     sync.Mutex
	calls  int
	models []string
	closed bool
}

func (m *mockCompleter) Complete(_ context.Context, req CompletionRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.models = append(m.models, req.Model)
	i := min(m.calls, len(m.results)-1)
	m.calls++
	if i >= 0 && m.results[i] != nil {
		return "", m.results[i]
	}
	return m.reply, nil
}

func (m *mockCompleter) Provider() Provider { return m.provider }
func (m *mockCompleter) Model() string      { return m.model }
func (m *mockCompleter) Close() error {
	m.closed = true
	return nil
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestFallbackCompleter_PrimarySuccess(t *testing.T) {
	t.Parallel()
	m := metrics.New(prometheus.NewRegistry())
	primary := &mockCompleter{provider: ProviderOpenAI, model: "gpt", reply: "hi there"}
	secondary := &mockCompleter{provider: ProviderGemini, model: "gemini", reply: "unused"}

	f := newFallbackCompleter(fastRetry(), m, primary, secondary)
	got, err := f.Complete(context.Background(), CompletionRequest{Message: "hello", Model: "gpt-override"})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "hi there" {
		t.Errorf("Complete() = %q", got)
	}
	if secondary.calls != 0 {
		t.Errorf("secondary called %d times", secondary.calls)
	}
	if primary.models[0] != "gpt-override" {
		t.Errorf("primary model = %q, want the request override", primary.models[0])
	}
	if got := testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("openai", "success")); got != 1 {
		t.Errorf("success count = %v", got)
	}
}

func TestFallbackCompleter_RetryThenSuccess(t *testing.T) {
	t.Parallel()
	primary := &mockCompleter{
		provider: ProviderOpenAI,
		results:  []error{errors.New("service unavailable"), nil},
		reply:    "second time lucky",
	}

	got, err := newFallbackCompleter(fastRetry(), nil, primary).Complete(context.Background(), CompletionRequest{Message: "hi"})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "second time lucky" || primary.calls != 2 {
		t.Errorf("got %q after %d calls", got, primary.calls)
	}
}

func TestFallbackCompleter_FallsBackAfterRetries(t *testing.T) {
	t.Parallel()
	primary := &mockCompleter{provider: ProviderOpenAI, results: []error{errors.New("overloaded")}}
	secondary := &mockCompleter{provider: ProviderAnthropic, model: "claude", reply: "from claude"}

	f := newFallbackCompleter(fastRetry(), nil, primary, secondary)
	got, err := f.Complete(context.Background(), CompletionRequest{Message: "hi", Model: "gpt-override"})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "from claude" {
		t.Errorf("Complete() = %q", got)
	}
	if primary.calls != 2 {
		t.Errorf("primary calls = %d, want 2", primary.calls)
	}
	if secondary.models[0] != "" {
		t.Errorf("fallback model override = %q, want empty", secondary.models[0])
	}
}

func TestFallbackCompleter_QuotaSkipsRetry(t *testing.T) {
	t.Parallel()
	primary := &mockCompleter{provider: ProviderGemini, results: []error{errors.New("quota exceeded")}}
	secondary := &mockCompleter{provider: ProviderOpenAI, reply: "ok"}

	if _, err := newFallbackCompleter(fastRetry(), nil, primary, secondary).Complete(context.Background(), CompletionRequest{}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if primary.calls != 1 {
		t.Errorf("primary calls = %d, want 1", primary.calls)
	}
}

func TestFallbackCompleter_PermanentErrorStops(t *testing.T) {
	t.Parallel()
	primary := &mockCompleter{
		provider: ProviderOpenAI,
		results:  []error{&LLMError{Err: errors.New("bad key"), StatusCode: http.StatusUnauthorized}},
	}
	secondary := &mockCompleter{provider: ProviderGemini, reply: "unused"}

	_, err := newFallbackCompleter(fastRetry(), nil, primary, secondary).Complete(context.Background(), CompletionRequest{})
	if err == nil {
		t.Fatal("expected error")
	}
	if primary.calls != 1 || secondary.calls != 0 {
		t.Errorf("calls = %d/%d, want 1/0", primary.calls, secondary.calls)
	}
}

func TestFallbackCompleter_AllFail(t *testing.T) {
	t.Parallel()
	primary := &mockCompleter{provider: ProviderOpenAI, results: []error{errors.New("unavailable")}}
	secondary := &mockCompleter{provider: ProviderGemini, results: []error{errors.New("unavailable")}}

	_, err := newFallbackCompleter(fastRetry(), nil, primary, secondary).Complete(context.Background(), CompletionRequest{})
	if err == nil || !strings.Contains(err.Error(), "all providers failed") {
		t.Fatalf("Complete() error = %v", err)
	}
}

func TestFallbackCompleter_CanceledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	primary := &mockCompleter{provider: ProviderOpenAI, reply: "unused"}

	_, err := newFallbackCompleter(fastRetry(), nil, primary).Complete(ctx, CompletionRequest{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Complete() error = %v, want context.Canceled", err)
	}
	if primary.calls != 0 {
		t.Errorf("primary called %d times", primary.calls)
	}
}

func TestFallbackCompleter_Empty(t *testing.T) {
	t.Parallel()
	var f *FallbackCompleter
	if _, err := f.Complete(context.Background(), CompletionRequest{}); err == nil {
		t.Error("nil completer should fail")
	}
	if err := f.Close(); err != nil {
		t.Errorf("Close() on nil = %v", err)
	}
}

func TestFallbackCompleter_Close(t *testing.T) {
	t.Parallel()
	a := &mockCompleter{provider: ProviderOpenAI}
	b := &mockCompleter{provider: ProviderGemini}

	if err := newFallbackCompleter(fastRetry(), nil, a, b).Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if !a.closed || !b.closed {
		t.Error("every completer should be closed")
	}
}
