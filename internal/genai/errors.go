package genai

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"
)

// ErrorAction is what the fallback chain does after a failed attempt.
type ErrorAction int

const (
	// ActionRetry retries the same model after a backoff.
	ActionRetry ErrorAction = iota
	// ActionFallback moves on to the next model in the chain.
	ActionFallback
	// ActionFail stops immediately.
	ActionFail
)

func (a ErrorAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionFallback:
		return "fallback"
	case ActionFail:
		return "fail"
	default:
		return "unknown"
	}
}

// LLMError carries the provider and HTTP details of a failed call.
type LLMError struct {
	Err        error
	StatusCode int
	Provider   Provider
	Model      string

	// RetryAfter is the server's requested wait, zero when absent.
	RetryAfter time.Duration
}

func (e *LLMError) Error() string {
	if e.StatusCode > 0 {
		return string(e.Provider) + ": " + e.Err.Error() + " (status: " + strconv.Itoa(e.StatusCode) + ")"
	}
	return string(e.Provider) + ": " + e.Err.Error()
}

func (e *LLMError) Unwrap() error {
	return e.Err
}

// ClassifyError decides how the chain reacts to err:
//   - transient failures (429, 5xx, timeouts, network) retry
//   - quota exhaustion falls back to the next model
//   - permanent failures (400, 401, 403, 404, 422) and cancellation fail
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionFail
	}

	if errors.Is(err, context.Canceled) {
		return ActionFail
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ActionRetry
	}

	errStr := strings.ToLower(err.Error())

	// Quota exhaustion is reported as 429 by most providers, so it is
	// checked before the status code.
	if containsAny(errStr, "quota", "daily limit", "monthly limit", "billing", "insufficient_quota") {
		return ActionFallback
	}

	var llmErr *LLMError
	if errors.As(err, &llmErr) && llmErr.StatusCode > 0 {
		return classifyStatusCode(llmErr.StatusCode)
	}

	switch {
	case containsAny(errStr, "rate limit", "too many requests", "resource_exhausted", "429"):
		return ActionRetry
	case containsAny(errStr, "unavailable", "503", "502", "500", "504",
		"internal server error", "bad gateway", "gateway timeout", "overloaded", "capacity"):
		return ActionRetry
	case containsAny(errStr, "408", "409", "timeout", "deadline", "connection"):
		return ActionRetry
	case containsAny(errStr, "400", "invalid", "bad request", "malformed",
		"401", "unauthorized", "unauthenticated",
		"403", "forbidden", "permission denied",
		"404", "not found",
		"422", "unprocessable"):
		return ActionFail
	default:
		return ActionRetry
	}
}

func classifyStatusCode(statusCode int) ErrorAction {
	switch {
	case statusCode == http.StatusTooManyRequests,
		statusCode == http.StatusRequestTimeout,
		statusCode == http.StatusConflict,
		statusCode >= 500 && statusCode < 600:
		return ActionRetry
	case statusCode >= 400 && statusCode < 500:
		return ActionFail
	default:
		return ActionRetry
	}
}

// ParseRetryAfter reads the wait a provider requested, preferring
// retry-after-ms over retry-after (seconds or HTTP date). Returns 0 when
// neither is usable.
func ParseRetryAfter(headers http.Header) time.Duration {
	if msStr := headers.Get("retry-after-ms"); msStr != "" {
		if ms, err := strconv.Atoi(msStr); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}

	if secStr := headers.Get("retry-after"); secStr != "" {
		if sec, err := strconv.Atoi(secStr); err == nil && sec > 0 {
			return time.Duration(sec) * time.Second
		}
		if t, err := http.ParseTime(secStr); err == nil {
			return time.Until(t)
		}
	}

	return 0
}

// wrapSDKError converts an SDK error into an *LLMError, lifting the status
// code and Retry-After header where the SDK exposes them.
func wrapSDKError(err error, provider Provider, model string) error {
	if err == nil {
		return nil
	}
	e := &LLMError{Err: err, Provider: provider, Model: model}

	var openaiErr *openai.Error
	var anthropicErr *anthropic.Error
	var geminiErr genai.APIError
	switch {
	case errors.As(err, &openaiErr):
		e.StatusCode = openaiErr.StatusCode
		if openaiErr.Response != nil {
			e.RetryAfter = ParseRetryAfter(openaiErr.Response.Header)
		}
	case errors.As(err, &anthropicErr):
		e.StatusCode = anthropicErr.StatusCode
		if anthropicErr.Response != nil {
			e.RetryAfter = ParseRetryAfter(anthropicErr.Response.Header)
		}
	case errors.As(err, &geminiErr):
		e.StatusCode = geminiErr.Code
	}
	return e
}

// statusLabel maps err to a metrics status label.
func statusLabel(err error) string {
	if err == nil {
		return "success"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}

	var llmErr *LLMError
	if errors.As(err, &llmErr) {
		switch {
		case llmErr.StatusCode == http.StatusTooManyRequests:
			return "rate_limit"
		case llmErr.StatusCode >= 500:
			return "server_error"
		case llmErr.StatusCode == http.StatusUnauthorized || llmErr.StatusCode == http.StatusForbidden:
			return "auth_error"
		case llmErr.StatusCode == http.StatusBadRequest:
			return "invalid_request"
		}
	}

	switch ClassifyError(err) {
	case ActionFallback:
		return "quota_exhausted"
	case ActionRetry:
		return "transient_error"
	default:
		return "error"
	}
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
