package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// openaiCompleter calls the chat completions API. With a base URL it works
// against any OpenAI-compatible endpoint.
type openaiCompleter struct {
	client openai.Client
	model  string
}

func newOpenAICompleter(apiKey, baseURL, model string) (*openaiCompleter, error) {
	if apiKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if model == "" {
		model = DefaultOpenAIModels[0]
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// Retries are driven by the fallback chain.
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &openaiCompleter{client: openai.NewClient(opts...), model: model}, nil
}

func (c *openaiCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages() {
		if m.Role == RoleAssistant {
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		} else {
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:     model,
		Messages:  msgs,
		MaxTokens: openai.Int(int64(maxTokens(req))),
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", wrapSDKError(fmt.Errorf("chat completion failed: %w", err), ProviderOpenAI, model)
	}
	if len(resp.Choices) == 0 {
		return "", &LLMError{Err: errors.New("empty response"), Provider: ProviderOpenAI, Model: model}
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *openaiCompleter) Provider() Provider { return ProviderOpenAI }
func (c *openaiCompleter) Model() string      { return c.model }
func (c *openaiCompleter) Close() error       { return nil }
