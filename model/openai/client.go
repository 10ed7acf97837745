// Package openai implements model.Adapter on top of the OpenAI Chat
// Completions API via github.com/openai/openai-go, adapted from the
// teacher's features/model/openai client (itself reworked onto the SDK
// pinned in this module's go.mod).
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	codemodel "github.com/codeforge-ai/orchestrator/model"
)

type (
	// ChatClient captures the subset of the openai-go client used by the
	// adapter.
	ChatClient interface {
		New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
	}

	// Options configures the adapter.
	Options struct {
		DefaultModel      string
		USDPerInputToken  float64
		USDPerOutputToken float64
	}

	// Client implements model.Adapter via OpenAI Chat Completions.
	Client struct {
		chat ChatClient
		opts Options
	}
)

// New builds an Adapter from chat and opts.
func New(chat ChatClient, opts Options) (*Client, error) {
	if chat == nil {
		return nil, errors.New("openai: chat client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("openai: default model is required")
	}
	return &Client{chat: chat, opts: opts}, nil
}

// NewFromAPIKey builds an Adapter using the default openai-go HTTP client.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return New(&client.Chat.Completions, Options{DefaultModel: defaultModel})
}

// Invoke implements model.Adapter with a single chat completion call; see
// the equivalent note in model/anthropic about the tool-call loop being out
// of the orchestration core's scope.
func (c *Client) Invoke(ctx context.Context, req codemodel.Request) (codemodel.Response, error) {
	if req.UserPrompt == "" {
		return codemodel.Response{}, errors.New("openai: user prompt is required")
	}
	if !req.Deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, req.Deadline)
		defer cancel()
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.UserPrompt))

	params := openai.ChatCompletionNewParams{
		Model:    c.opts.DefaultModel,
		Messages: messages,
	}
	resp, err := c.chat.New(ctx, params)
	if err != nil {
		if isRateLimited(err) {
			return codemodel.Response{}, fmt.Errorf("%w: %w", codemodel.ErrRateLimited, err)
		}
		return codemodel.Response{}, fmt.Errorf("openai: chat completions: %w", err)
	}
	return translate(resp, c.opts), nil
}

func translate(resp *openai.ChatCompletion, opts Options) codemodel.Response {
	var text string
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}
	out := codemodel.Response{Text: text}
	if resp.Usage.TotalTokens != 0 {
		out.TokensIn = int(resp.Usage.PromptTokens)
		out.TokensOut = int(resp.Usage.CompletionTokens)
		out.Cost = float64(out.TokensIn)*opts.USDPerInputToken + float64(out.TokensOut)*opts.USDPerOutputToken
	}
	return out
}

func isRateLimited(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
