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

// ToolExecution asks the tool-planning model which tools to run and runs
// them in order. An invocation with unparseable arguments is skipped; the
// remaining invocations still run.
func ToolExecution(
	ctx context.Context,
	st *statex.ConversationState,
	model contractx.ModelClient,
	tools contractx.ToolExecutor,
	systemPrompt string,
) (*statex.ConversationState, error) {
	if st == nil {
		return nil, fmt.Errorf("%w: conversation state is nil", contractx.ErrValidation)
	}
	if model == nil || tools == nil {
		st.SetError(fmt.Errorf("tool execution failed: %w: tool planner is not configured", contractx.ErrModelInvoke))
		return st, nil
	}

	userText, _ := st.LastUserText()
	resp, err := model.Call(ctx, []contractx.ChatMessage{
		{Role: contractx.RoleSystem, Content: systemPrompt},
		{Role: contractx.RoleUser, Content: userText},
	}, tools.Schemas())
	if err != nil {
		logx.Error().Err(err).Str("session_id", st.SessionID).Msg("tool planning call failed")
		st.SetError(fmt.Errorf("tool execution failed: %w", err))
		return st, nil
	}

	for _, call := range resp.ToolCalls {
		if ctx.Err() != nil {
			break
		}

		args, err := parseArguments(call.Arguments)
		if err != nil {
			logx.Warn().Err(err).Str("tool", call.Name).Str("session_id", st.SessionID).Msg("skipping tool call with malformed arguments")
			st.SetError(fmt.Errorf("tool execution failed: %s: %w", call.Name, err))
			continue
		}

		result := tools.Execute(ctx, call.Name, args, st)
		if ctx.Err() != nil {
			break
		}
		st.RecordToolCall(statex.ToolCallRecord{Tool: call.Name, Args: args, Result: result})
	}

	logx.Info().Str("session_id", st.SessionID).Int("count", len(st.ToolCalls)).Msg("executed tool calls")
	return st, nil
}

func parseArguments(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}
	args := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrToolArguments, err)
	}
	return args, nil
}
