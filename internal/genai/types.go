// Package genai generates conversational replies through LLM APIs.
//
// Architecture:
//   - OpenAI (and OpenAI-compatible endpoints): github.com/openai/openai-go/v3
//   - Gemini: google.golang.org/genai
//   - Anthropic: github.com/anthropics/anthropic-sdk-go
//
// Fallback strategy:
//  1. Model retry: the same model retried with exponential backoff
//  2. Model chain: the next model in the provider's model list
//  3. Provider chain: the next provider in LLM_PROVIDERS
package genai

import (
	"context"
	"time"

	"github.com/garyellow/lullabot-go/internal/sliceutil"
)

// Provider identifies an LLM API.
type Provider string

const (
	// ProviderOpenAI is OpenAI's chat completions API, or any compatible
	// endpoint when a base URL is configured.
	ProviderOpenAI Provider = "openai"
	// ProviderGemini is Google's Gemini API.
	ProviderGemini Provider = "gemini"
	// ProviderAnthropic is Anthropic's messages API.
	ProviderAnthropic Provider = "anthropic"
)

func (p Provider) String() string {
	return string(p)
}

// Role is the speaker of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest asks for the assistant's next turn.
type CompletionRequest struct {
	// System is the system prompt.
	System string

	// History holds earlier turns, oldest first. Message is appended after it.
	History []Message
	Message string

	// Model overrides the first model in the chain when set. Fallback
	// models always use their configured names.
	Model       string
	Temperature float64
	MaxTokens   int
}

// Messages returns History followed by the new user turn.
func (r CompletionRequest) Messages() []Message {
	msgs := make([]Message, 0, len(r.History)+1)
	msgs = append(msgs, r.History...)
	return append(msgs, Message{Role: RoleUser, Content: r.Message})
}

// Completer produces a reply for a conversation.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// completer is one model of one provider.
type completer interface {
	Completer
	Provider() Provider
	Model() string
	Close() error
}

// RetryConfig defines retry behavior for one model.
// Uses Full Jitter exponential backoff.
type RetryConfig struct {
	// MaxAttempts includes the initial attempt.
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// ProviderConfig holds configuration for a single provider.
type ProviderConfig struct {
	APIKey string

	// BaseURL points the OpenAI provider at a compatible endpoint.
	BaseURL string

	// Models is tried in order; the first is primary.
	Models []string
}

// LLMConfig holds configuration for all providers.
type LLMConfig struct {
	// Providers is the fallback order. Providers without an API key are
	// skipped.
	Providers []Provider

	OpenAI    ProviderConfig
	Gemini    ProviderConfig
	Anthropic ProviderConfig

	RetryConfig RetryConfig
}

// Default model chains. The first element is primary.
var (
	DefaultOpenAIModels    = []string{"gpt-4o-mini", "gpt-4.1-mini"}
	DefaultGeminiModels    = []string{"gemini-2.5-flash", "gemini-2.5-flash-lite"}
	DefaultAnthropicModels = []string{"claude-3-5-haiku-latest"}

	DefaultProviders = []Provider{ProviderOpenAI, ProviderGemini, ProviderAnthropic}
)

const (
	DefaultMaxRetryAttempts  = 2
	DefaultInitialRetryDelay = 500 * time.Millisecond
	DefaultMaxRetryDelay     = 3 * time.Second

	// DefaultMaxTokens applies when a request leaves MaxTokens unset.
	// Anthropic requires an explicit limit.
	DefaultMaxTokens = 1024
)

// HasProvider reports whether p has an API key.
func (c *LLMConfig) HasProvider(p Provider) bool {
	pc := c.GetProviderConfig(p)
	return pc != nil && pc.APIKey != ""
}

// GetProviderConfig returns the configuration for p, or nil if unknown.
func (c *LLMConfig) GetProviderConfig(p Provider) *ProviderConfig {
	switch p {
	case ProviderOpenAI:
		return &c.OpenAI
	case ProviderGemini:
		return &c.Gemini
	case ProviderAnthropic:
		return &c.Anthropic
	default:
		return nil
	}
}

// ConfiguredProviders lists providers with API keys in c.Providers order.
func (c *LLMConfig) ConfiguredProviders() []Provider {
	providers := sliceutil.Deduplicate(c.Providers, func(p Provider) Provider { return p })
	result := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if c.HasProvider(p) {
			result = append(result, p)
		}
	}
	return result
}

// DefaultLLMConfig returns the default chains and retry policy. API keys
// must be provided separately.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Providers:   DefaultProviders,
		OpenAI:      ProviderConfig{Models: DefaultOpenAIModels},
		Gemini:      ProviderConfig{Models: DefaultGeminiModels},
		Anthropic:   ProviderConfig{Models: DefaultAnthropicModels},
		RetryConfig: DefaultRetryConfig(),
	}
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  DefaultMaxRetryAttempts,
		InitialDelay: DefaultInitialRetryDelay,
		MaxDelay:     DefaultMaxRetryDelay,
	}
}

func maxTokens(req CompletionRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return DefaultMaxTokens
}
