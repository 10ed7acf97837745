// Package bedrock implements model.Adapter on top of Amazon Bedrock's
// Converse API, adapted (much reduced) from the teacher's
// features/model/bedrock client, which wraps the same
// bedrockruntime.Client.
package bedrock

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"

	"github.com/codeforge-ai/orchestrator/model"
)

type (
	// ConverseClient captures the subset of bedrockruntime.Client used by
	// the adapter.
	ConverseClient interface {
		Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	}

	// Options configures the adapter.
	Options struct {
		DefaultModelID    string
		HighModelID       string
		SmallModelID      string
		MaxTokens         int32
		USDPerInputToken  float64
		USDPerOutputToken float64
	}

	// Client implements model.Adapter via Bedrock Converse.
	Client struct {
		rt   ConverseClient
		opts Options
	}
)

// New builds an Adapter from rt and opts.
func New(rt ConverseClient, opts Options) (*Client, error) {
	if rt == nil {
		return nil, errors.New("bedrock: runtime client is required")
	}
	if opts.DefaultModelID == "" {
		return nil, errors.New("bedrock: default model id is required")
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}
	return &Client{rt: rt, opts: opts}, nil
}

// Invoke implements model.Adapter with a single Converse call; see the
// equivalent note in model/anthropic about the tool-call loop being out of
// the orchestration core's scope.
func (c *Client) Invoke(ctx context.Context, req model.Request) (model.Response, error) {
	if req.UserPrompt == "" {
		return model.Response{}, errors.New("bedrock: user prompt is required")
	}
	if !req.Deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, req.Deadline)
		defer cancel()
	}

	input := &bedrockruntime.ConverseInput{
		ModelId: strPtr(c.resolveModel(req.ModelTier)),
		Messages: []types.Message{
			{
				Role:    types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: req.UserPrompt}},
			},
		},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens: int32Ptr(c.opts.MaxTokens),
		},
	}
	if req.SystemPrompt != "" {
		input.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: req.SystemPrompt}}
	}

	out, err := c.rt.Converse(ctx, input)
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ThrottlingException" {
			return model.Response{}, fmt.Errorf("%w: %w", model.ErrRateLimited, err)
		}
		return model.Response{}, fmt.Errorf("bedrock: converse: %w", err)
	}
	return translate(out, c.opts), nil
}

func (c *Client) resolveModel(tier string) string {
	switch tier {
	case "high-reasoning":
		if c.opts.HighModelID != "" {
			return c.opts.HighModelID
		}
	case "small":
		if c.opts.SmallModelID != "" {
			return c.opts.SmallModelID
		}
	}
	return c.opts.DefaultModelID
}

func translate(out *bedrockruntime.ConverseOutput, opts Options) model.Response {
	resp := model.Response{}
	if msg, ok := out.Output.(*types.ConverseOutputMemberMessage); ok {
		for _, block := range msg.Value.Content {
			if text, ok := block.(*types.ContentBlockMemberText); ok {
				resp.Text += text.Value
			}
		}
	}
	if out.Usage != nil {
		resp.TokensIn = int(aws32(out.Usage.InputTokens))
		resp.TokensOut = int(aws32(out.Usage.OutputTokens))
		resp.Cost = float64(resp.TokensIn)*opts.USDPerInputToken + float64(resp.TokensOut)*opts.USDPerOutputToken
	}
	return resp
}

func strPtr(s string) *string { return &s }
func int32Ptr(v int32) *int32 { return &v }
func aws32(v int32) int32     { return v }
