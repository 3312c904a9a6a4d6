package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/chative-retail-assistant/agent/contract"
)

// ChatModel adapts an eino tool-calling chat model to contract.ModelClient.
type ChatModel struct {
	model einomodel.ToolCallingChatModel
	name  string
}

var _ contractx.ModelClient = (*ChatModel)(nil)

func NewChatModel(m einomodel.ToolCallingChatModel, name string) *ChatModel {
	return &ChatModel{model: m, name: strings.TrimSpace(name)}
}

func (c *ChatModel) Call(ctx context.Context, messages []contractx.ChatMessage, tools []contractx.ToolSchema) (contractx.ModelResponse, error) {
	if c == nil || c.model == nil {
		return contractx.ModelResponse{}, fmt.Errorf("%w: chat model is nil", contractx.ErrModelInvoke)
	}

	target := c.model
	if len(tools) > 0 {
		bound, err := c.model.WithTools(ToolInfos(tools))
		if err != nil {
			return contractx.ModelResponse{}, fmt.Errorf("%w: bind tools: %v", contractx.ErrModelInvoke, err)
		}
		target = bound
	}

	out, err := target.Generate(ctx, toSchemaMessages(messages))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return contractx.ModelResponse{}, err
		}
		return contractx.ModelResponse{}, fmt.Errorf("%w: model=%s: %v", contractx.ErrModelInvoke, c.name, err)
	}
	if out == nil {
		return contractx.ModelResponse{}, fmt.Errorf("%w: model=%s", contractx.ErrEmptyResponse, c.name)
	}

	resp := contractx.ModelResponse{Content: out.Content}
	for _, call := range out.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, contractx.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return resp, nil
}

// ToolInfos converts tool schemas to eino tool descriptors.
func ToolInfos(tools []contractx.ToolSchema) []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		params := make(map[string]*schema.ParameterInfo, len(t.Params))
		for _, p := range t.Params {
			params[p.Name] = &schema.ParameterInfo{
				Type:     schema.DataType(p.Type),
				Desc:     p.Description,
				Required: p.Required,
			}
		}
		infos = append(infos, &schema.ToolInfo{
			Name:        t.Name,
			Desc:        t.Description,
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		})
	}
	return infos
}

func toSchemaMessages(messages []contractx.ChatMessage) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		var role schema.RoleType
		switch m.Role {
		case contractx.RoleSystem:
			role = schema.System
		case contractx.RoleAssistant:
			role = schema.Assistant
		default:
			role = schema.User
		}
		out = append(out, &schema.Message{Role: role, Content: m.Content})
	}
	return out
}
