// Package anthropic implements model.Adapter on top of the Anthropic Claude
// Messages API, adapted from the teacher's features/model/anthropic client.
package anthropic

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/codeforge-ai/orchestrator/model"
)

type (
	// MessagesClient captures the subset of the Anthropic SDK used by the
	// adapter, so tests can substitute a fake.
	MessagesClient interface {
		New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
	}

	// Options configures the adapter's default/high/small model tiers, its
	// max-token default, and per-token pricing.
	Options struct {
		DefaultModel string
		HighModel    string
		SmallModel   string
		MaxTokens    int
		// USDPerInputToken and USDPerOutputToken let the adapter estimate a
		// dollar Cost for CostAccount without depending on a separate
		// pricing service.
		USDPerInputToken  float64
		USDPerOutputToken float64
	}

	// Client implements model.Adapter via Anthropic Claude Messages.
	Client struct {
		msg  MessagesClient
		opts Options
	}
)

// New builds an Adapter from msg and opts.
func New(msg MessagesClient, opts Options) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropic: messages client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("anthropic: default model is required")
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}
	return &Client{msg: msg, opts: opts}, nil
}

// NewFromAPIKey builds an Adapter using the default Anthropic HTTP client.
func NewFromAPIKey(apiKey string, opts Options) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&ac.Messages, opts)
}

// Invoke implements model.Adapter. The agent's model-driven tool use against
// the task's isolated container is expected to happen inside the Messages
// call's tool-call loop in a full deployment; this adapter issues a single
// completion and returns the assistant's final text, leaving multi-turn
// tool-call orchestration to a richer planner loop layered on top when
// needed (out of scope for the orchestration core per spec.md §1).
func (c *Client) Invoke(ctx context.Context, req model.Request) (model.Response, error) {
	if req.UserPrompt == "" {
		return model.Response{}, errors.New("anthropic: user prompt is required")
	}
	if !req.Deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, req.Deadline)
		defer cancel()
	}

	params := sdk.MessageNewParams{
		MaxTokens: int64(c.opts.MaxTokens),
		Model:     sdk.Model(c.resolveModel(req.ModelTier)),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.UserPrompt)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: req.SystemPrompt}}
	}

	msg, err := c.msg.New(ctx, params)
	if err != nil {
		if isRateLimited(err) {
			return model.Response{}, fmt.Errorf("%w: %w", model.ErrRateLimited, err)
		}
		return model.Response{}, fmt.Errorf("anthropic: messages.new: %w", err)
	}
	return translate(msg, c.opts), nil
}

func (c *Client) resolveModel(tier string) string {
	switch tier {
	case "high-reasoning":
		if c.opts.HighModel != "" {
			return c.opts.HighModel
		}
	case "small":
		if c.opts.SmallModel != "" {
			return c.opts.SmallModel
		}
	}
	return c.opts.DefaultModel
}

func translate(msg *sdk.Message, opts Options) model.Response {
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	resp := model.Response{Text: text}
	if u := msg.Usage; u.InputTokens != 0 || u.OutputTokens != 0 {
		resp.TokensIn = int(u.InputTokens)
		resp.TokensOut = int(u.OutputTokens)
		resp.Cost = float64(u.InputTokens)*opts.USDPerInputToken + float64(u.OutputTokens)*opts.USDPerOutputToken
	}
	return resp
}

func isRateLimited(err error) bool {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
