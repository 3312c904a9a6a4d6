package orchestratornode

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/chative-retail-assistant/agent/contract"
	statex "github.com/tanpawarit/chative-retail-assistant/agent/state"
	logx "github.com/tanpawarit/chative-retail-assistant/pkg/logger"
)

const (
	maxContextProducts = 3
	apologyPrefix      = "I apologize, but I encountered an error: "
)

// GenerateResponse appends exactly one assistant message: the model reply,
// or an apology carrying the failure.
func GenerateResponse(
	ctx context.Context,
	st *statex.ConversationState,
	model contractx.ModelClient,
	systemPrompt string,
) (*statex.ConversationState, error) {
	if st == nil {
		return nil, fmt.Errorf("%w: conversation state is nil", contractx.ErrValidation)
	}

	reply, err := respond(ctx, st, model, systemPrompt)
	if err != nil {
		logx.Error().Err(err).Str("session_id", st.SessionID).Msg("response generation failed")
		st.SetError(err)
		st.AppendMessage(statex.RoleAssistant, apologyPrefix+err.Error())
		return st, nil
	}

	st.AppendMessage(statex.RoleAssistant, reply)
	return st, nil
}

func respond(ctx context.Context, st *statex.ConversationState, model contractx.ModelClient, systemPrompt string) (string, error) {
	if model == nil {
		return "", fmt.Errorf("%w: response model is not configured", contractx.ErrModelInvoke)
	}

	messages := make([]contractx.ChatMessage, 0, len(st.Messages)+1)
	messages = append(messages, contractx.ChatMessage{Role: contractx.RoleSystem, Content: BuildSystemPrompt(systemPrompt, st.Context)})
	for _, m := range st.Messages {
		role := contractx.RoleUser
		if m.Role == statex.RoleAssistant {
			role = contractx.RoleAssistant
		}
		messages = append(messages, contractx.ChatMessage{Role: role, Content: m.Content})
	}

	resp, err := model.Call(ctx, messages, nil)
	if err != nil {
		return "", err
	}
	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		return "", contractx.ErrEmptyResponse
	}
	return reply, nil
}

// BuildSystemPrompt appends retrieved products and tool results to base.
func BuildSystemPrompt(base string, tc statex.TurnContext) string {
	var parts []string

	if len(tc.Products) > 0 {
		parts = append(parts, fmt.Sprintf("Found %d relevant products:", len(tc.Products)))
		for i, p := range tc.Products {
			if i >= maxContextProducts {
				break
			}
			parts = append(parts, fmt.Sprintf("- %s (SKU: %s) - $%.2f - Stock: %d", p.Name, p.SKU, p.Price, p.CurrentStock))
		}
	}

	if len(tc.ToolResults) > 0 {
		parts = append(parts, "\nTool execution results:")
		for _, rec := range tc.ToolResults {
			parts = append(parts, fmt.Sprintf("- %s: %s", rec.Tool, summarize(rec.Result)))
		}
	}

	if len(parts) == 0 {
		return base
	}
	return base + "\n\nContext:\n" + strings.Join(parts, "\n")
}

func summarize(result map[string]any) string {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprint(result)
	}
	return string(raw)
}
