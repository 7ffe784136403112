package genai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/garyellow/lullabot-go/internal/metrics"
	"github.com/garyellow/lullabot-go/internal/sliceutil"
)

// NewCompleter builds the fallback chain from cfg: every model of every
// configured provider, in provider order. It returns nil when no provider
// has an API key.
func NewCompleter(ctx context.Context, cfg LLMConfig, m *metrics.Metrics) (*FallbackCompleter, error) {
	var chain []completer

	for _, provider := range cfg.ConfiguredProviders() {
		pc := cfg.GetProviderConfig(provider)
		models := sliceutil.Deduplicate(pc.Models, func(m string) string { return m })
		if len(models) == 0 {
			models = []string{""}
		}

		for _, model := range models {
			c, err := newProviderCompleter(ctx, provider, *pc, model)
			if err != nil {
				slog.WarnContext(ctx, "failed to create completer",
					"provider", provider,
					"model", model,
					"error", err)
				continue
			}
			chain = append(chain, c)
		}
	}

	if len(chain) == 0 {
		slog.InfoContext(ctx, "no LLM provider configured")
		return nil, nil //nolint:nilnil // conversational replies are disabled without a provider
	}

	slog.InfoContext(ctx, "completer configured",
		"primary", chain[0].Provider(),
		"model", chain[0].Model(),
		"chain_size", len(chain))

	return newFallbackCompleter(cfg.RetryConfig, m, chain...), nil
}

func newProviderCompleter(ctx context.Context, provider Provider, pc ProviderConfig, model string) (completer, error) {
	switch provider {
	case ProviderOpenAI:
		return newOpenAICompleter(pc.APIKey, pc.BaseURL, model)
	case ProviderGemini:
		return newGeminiCompleter(ctx, pc.APIKey, model)
	case ProviderAnthropic:
		return newAnthropicCompleter(pc.APIKey, model)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}
