package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/garyellow/lullabot-go/internal/metrics"
)

// FallbackCompleter walks a chain of models. Each model is retried on
// transient errors; quota errors and exhausted retries move on to the next
// model. Permanent errors stop the chain.
type FallbackCompleter struct {
	chain       []completer
	retryConfig RetryConfig
	metrics     *metrics.Metrics
}

// newFallbackCompleter creates a completer over chain, tried in order.
func newFallbackCompleter(cfg RetryConfig, m *metrics.Metrics, chain ...completer) *FallbackCompleter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &FallbackCompleter{chain: chain, retryConfig: cfg, metrics: m}
}

// Complete implements Completer. req.Model applies to the first model only.
func (f *FallbackCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if f == nil || len(f.chain) == 0 {
		return "", errors.New("no completion provider configured")
	}

	var lastErr error
	for i, c := range f.chain {
		if i > 0 {
			req.Model = ""
			slog.InfoContext(ctx, "falling back to next model",
				"provider", c.Provider(),
				"model", c.Model(),
				"previous_error", lastErr)
		}

		text, err := f.completeWithRetry(ctx, c, req)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if ClassifyError(err) == ActionFail {
			return "", err
		}
	}

	return "", fmt.Errorf("all providers failed: %w", lastErr)
}

func (f *FallbackCompleter) completeWithRetry(ctx context.Context, c completer, req CompletionRequest) (string, error) {
	var lastErr error

	for attempt := range f.retryConfig.MaxAttempts {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		start := time.Now()
		text, err := c.Complete(ctx, req)
		f.metrics.RecordLLMRequest(string(c.Provider()), statusLabel(err), time.Since(start).Seconds())
		if err == nil {
			return text, nil
		}

		lastErr = err
		action := ClassifyError(err)
		slog.WarnContext(ctx, "completion attempt failed",
			"provider", c.Provider(),
			"model", c.Model(),
			"attempt", attempt+1,
			"action", action,
			"error", err)

		if action != ActionRetry || attempt == f.retryConfig.MaxAttempts-1 {
			break
		}

		backoff := CalculateBackoff(attempt+1, f.retryConfig.InitialDelay, f.retryConfig.MaxDelay)
		var llmErr *LLMError
		if errors.As(err, &llmErr) && llmErr.RetryAfter > backoff {
			backoff = min(llmErr.RetryAfter, f.retryConfig.MaxDelay)
		}

		if !HasSufficientBudget(ctx, backoff) {
			return "", fmt.Errorf("timeout during retry: %w", lastErr)
		}
		if err := Sleep(ctx, backoff); err != nil {
			return "", err
		}
	}

	return "", lastErr
}

// Close closes every model in the chain.
func (f *FallbackCompleter) Close() error {
	if f == nil {
		return nil
	}
	var errs []error
	for _, c := range f.chain {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
