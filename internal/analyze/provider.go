package analyze

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Provider is a single-call text-analysis backend. It takes the built
// instruction pair and returns the raw JSON payload plus token usage.
type Provider interface {
	Complete(ctx context.Context, system, user string) (body string, tokensIn, tokensOut int, err error)
}

// openAIProvider calls the OpenAI chat completions API in JSON mode.
type openAIProvider struct {
	client openai.Client
	model  string
}

func newOpenAIProvider(apiKey, baseURL, model string, timeout time.Duration) *openAIProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
		option.WithMaxRetries(1),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &openAIProvider{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (p *openAIProvider) Complete(ctx context.Context, system, user string) (string, int, int, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(0.3),
		MaxTokens:   openai.Int(300),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return "", 0, 0, fmt.Errorf("analyze: provider call: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", 0, 0, fmt.Errorf("analyze: provider returned no content")
	}

	return resp.Choices[0].Message.Content,
		int(resp.Usage.PromptTokens),
		int(resp.Usage.CompletionTokens),
		nil
}
