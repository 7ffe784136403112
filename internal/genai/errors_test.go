package genai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openai/openai-go/v3"
)

func TestClassifyError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		err      error
		expected ErrorAction
	}{
		{"nil error", nil, ActionFail},
		{"context canceled", context.Canceled, ActionFail},
		{"context deadline exceeded", fmt.Errorf("call: %w", context.DeadlineExceeded), ActionRetry},

		{"LLMError 429", &LLMError{Err: errors.New("slow down"), StatusCode: http.StatusTooManyRequests}, ActionRetry},
		{"LLMError 500", &LLMError{Err: errors.New("boom"), StatusCode: http.StatusInternalServerError}, ActionRetry},
		{"LLMError 400", &LLMError{Err: errors.New("bad"), StatusCode: http.StatusBadRequest}, ActionFail},
		{"LLMError 401", &LLMError{Err: errors.New("who"), StatusCode: http.StatusUnauthorized}, ActionFail},
		{
			"LLMError 429 quota",
			&LLMError{Err: errors.New("You exceeded your current quota"), StatusCode: http.StatusTooManyRequests},
			ActionFallback,
		},

		{"quota exhausted", errors.New("quota exceeded for model"), ActionFallback},
		{"insufficient quota", errors.New("insufficient_quota"), ActionFallback},
		{"billing", errors.New("billing hard limit reached"), ActionFallback},

		{"rate limit", errors.New("rate limit reached"), ActionRetry},
		{"resource exhausted", errors.New("RESOURCE_EXHAUSTED"), ActionRetry},
		{"service unavailable", errors.New("service unavailable"), ActionRetry},
		{"overloaded", errors.New("overloaded_error"), ActionRetry},
		{"connection reset", errors.New("connection reset by peer"), ActionRetry},

		{"invalid request", errors.New("invalid request body"), ActionFail},
		{"unauthorized", errors.New("unauthorized"), ActionFail},
		{"forbidden", errors.New("permission denied"), ActionFail},
		{"not found", errors.New("model not found"), ActionFail},

		{"unknown error", errors.New("something unexpected happened"), ActionRetry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ClassifyError(tt.err); got != tt.expected {
				t.Errorf("ClassifyError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestClassifyStatusCode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		code     int
		expected ErrorAction
	}{
		{http.StatusTooManyRequests, ActionRetry},
		{http.StatusRequestTimeout, ActionRetry},
		{http.StatusConflict, ActionRetry},
		{http.StatusInternalServerError, ActionRetry},
		{http.StatusBadGateway, ActionRetry},
		{http.StatusServiceUnavailable, ActionRetry},

		{http.StatusBadRequest, ActionFail},
		{http.StatusUnauthorized, ActionFail},
		{http.StatusForbidden, ActionFail},
		{http.StatusNotFound, ActionFail},
		{http.StatusUnprocessableEntity, ActionFail},

		{0, ActionRetry},
		{999, ActionRetry},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			t.Parallel()
			if got := classifyStatusCode(tt.code); got != tt.expected {
				t.Errorf("classifyStatusCode(%d) = %v, want %v", tt.code, got, tt.expected)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		headers  http.Header
		expected time.Duration
	}{
		{"empty headers", http.Header{}, 0},
		{"retry-after-ms", http.Header{"Retry-After-Ms": []string{"1500"}}, 1500 * time.Millisecond},
		{"retry-after seconds", http.Header{"Retry-After": []string{"5"}}, 5 * time.Second},
		{
			"retry-after-ms wins",
			http.Header{"Retry-After-Ms": []string{"500"}, "Retry-After": []string{"5"}},
			500 * time.Millisecond,
		},
		{"invalid value", http.Header{"Retry-After": []string{"soon"}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ParseRetryAfter(tt.headers); got != tt.expected {
				t.Errorf("ParseRetryAfter() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestWrapSDKError(t *testing.T) {
	t.Parallel()

	t.Run("nil", func(t *testing.T) {
		t.Parallel()
		if wrapSDKError(nil, ProviderOpenAI, "m") != nil {
			t.Error("nil error should stay nil")
		}
	})

	t.Run("openai status and retry-after", func(t *testing.T) {
		t.Parallel()
		sdkErr := &openai.Error{
			StatusCode: http.StatusTooManyRequests,
			Request:    httptest.NewRequest(http.MethodPost, "https://api.openai.com/v1/chat/completions", nil),
			Response: &http.Response{
				StatusCode: http.StatusTooManyRequests,
				Header:     http.Header{"Retry-After": []string{"2"}},
			},
		}
		err := wrapSDKError(fmt.Errorf("chat completion failed: %w", sdkErr), ProviderOpenAI, "gpt-4o-mini")

		var llmErr *LLMError
		if !errors.As(err, &llmErr) {
			t.Fatalf("expected *LLMError, got %T", err)
		}
		if llmErr.StatusCode != http.StatusTooManyRequests {
			t.Errorf("StatusCode = %d", llmErr.StatusCode)
		}
		if llmErr.RetryAfter != 2*time.Second {
			t.Errorf("RetryAfter = %v", llmErr.RetryAfter)
		}
		if llmErr.Model != "gpt-4o-mini" || llmErr.Provider != ProviderOpenAI {
			t.Errorf("provider/model = %s/%s", llmErr.Provider, llmErr.Model)
		}
	})

	t.Run("plain error", func(t *testing.T) {
		t.Parallel()
		err := wrapSDKError(errors.New("dial tcp: connection refused"), ProviderGemini, "gemini-2.5-flash")

		var llmErr *LLMError
		if !errors.As(err, &llmErr) || llmErr.StatusCode != 0 {
			t.Fatalf("expected status-less *LLMError, got %v", err)
		}
		if ClassifyError(err) != ActionRetry {
			t.Error("connection errors should retry")
		}
	})
}

func TestLLMError(t *testing.T) {
	t.Parallel()

	err := &LLMError{Err: errors.New("test error"), StatusCode: 429, Provider: ProviderGemini}
	if !errors.Is(err, err.Err) {
		t.Error("Unwrap should return underlying error")
	}
	if got, want := err.Error(), "gemini: test error (status: 429)"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	err = &LLMError{Err: errors.New("test error"), Provider: ProviderAnthropic}
	if got, want := err.Error(), "anthropic: test error"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestStatusLabel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err      error
		expected string
	}{
		{nil, "success"},
		{context.DeadlineExceeded, "timeout"},
		{context.Canceled, "canceled"},
		{&LLMError{Err: errors.New("x"), StatusCode: 429}, "rate_limit"},
		{&LLMError{Err: errors.New("x"), StatusCode: 503}, "server_error"},
		{&LLMError{Err: errors.New("x"), StatusCode: 403}, "auth_error"},
		{&LLMError{Err: errors.New("x"), StatusCode: 400}, "invalid_request"},
		{errors.New("quota exceeded"), "quota_exhausted"},
		{errors.New("flaky"), "transient_error"},
		{errors.New("model not found"), "error"},
	}

	for _, tt := range tests {
		if got := statusLabel(tt.err); got != tt.expected {
			t.Errorf("statusLabel(%v) = %q, want %q", tt.err, got, tt.expected)
		}
	}
}

func TestErrorActionString(t *testing.T) {
	t.Parallel()
	tests := []struct {
		action   ErrorAction
		expected string
	}{
		{ActionRetry, "retry"},
		{ActionFallback, "fallback"},
		{ActionFail, "fail"},
		{ErrorAction(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.action.String(); got != tt.expected {
			t.Errorf("ErrorAction.String() = %v, want %v", got, tt.expected)
		}
	}
}
