package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"

	contractx "github.com/tanpawarit/chative-retail-assistant/agent/contract"
)

type OpenAIOptions struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// OpenAIClient calls an OpenAI-compatible chat completions endpoint through
// the official SDK.
type OpenAIClient struct {
	client *openaisdk.Client
	opts   OpenAIOptions
}

var _ contractx.ModelClient = (*OpenAIClient)(nil)

func NewOpenAIClient(client *openaisdk.Client, opts OpenAIOptions) (*OpenAIClient, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: openai client is nil", contractx.ErrValidation)
	}
	opts.Model = strings.TrimSpace(opts.Model)
	if opts.Model == "" {
		return nil, fmt.Errorf("%w: model is required", contractx.ErrValidation)
	}
	return &OpenAIClient{client: client, opts: opts}, nil
}

func (c *OpenAIClient) Call(ctx context.Context, messages []contractx.ChatMessage, tools []contractx.ToolSchema) (contractx.ModelResponse, error) {
	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(c.opts.Model),
		Messages: toOpenAIMessages(messages),
	}
	if c.opts.Temperature >= 0 {
		params.Temperature = openaisdk.Float(float64(c.opts.Temperature))
	}
	if c.opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openaisdk.Int(int64(c.opts.MaxTokens))
	}
	for _, t := range tools {
		params.Tools = append(params.Tools, openaisdk.ChatCompletionToolParam{
			Function: openaisdk.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openaisdk.String(t.Description),
				Parameters:  openaisdk.FunctionParameters(t.JSONSchema()),
			},
		})
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return contractx.ModelResponse{}, err
		}
		return contractx.ModelResponse{}, fmt.Errorf("%w: model=%s: %v", contractx.ErrModelInvoke, c.opts.Model, err)
	}
	if completion == nil || len(completion.Choices) == 0 {
		return contractx.ModelResponse{}, fmt.Errorf("%w: model=%s returned no choices", contractx.ErrEmptyResponse, c.opts.Model)
	}

	msg := completion.Choices[0].Message
	resp := contractx.ModelResponse{Content: msg.Content}
	for _, call := range msg.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, contractx.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return resp, nil
}

func toOpenAIMessages(messages []contractx.ChatMessage) []openaisdk.ChatCompletionMessageParamUnion {
	out := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case contractx.RoleSystem:
			out = append(out, openaisdk.SystemMessage(m.Content))
		case contractx.RoleAssistant:
			out = append(out, openaisdk.AssistantMessage(m.Content))
		default:
			out = append(out, openaisdk.UserMessage(m.Content))
		}
	}
	return out
}
