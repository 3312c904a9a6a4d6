package contract

import (
	"time"

	statex "github.com/tanpawarit/chative-retail-assistant/agent/state"
)

type ChatRole string

const (
	RoleSystem    ChatRole = "system"
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// ToolCall is a tool invocation requested by the model. Arguments is the raw
// JSON-encoded argument object.
type ToolCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type ModelResponse struct {
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
	ParamNumber  ParamType = "number"
	ParamBoolean ParamType = "boolean"
)

type ToolParam struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Description string    `json:"description"`
	Required    bool      `json:"required,omitempty"`
	Default     any       `json:"default,omitempty"`
	Minimum     *float64  `json:"minimum,omitempty"`
}

// ToolSchema describes a callable tool independent of any model SDK.
type ToolSchema struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Params      []ToolParam `json:"params"`
}

// JSONSchema renders the parameters as a JSON Schema object.
func (s ToolSchema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Params))
	required := make([]any, 0, len(s.Params))
	for _, p := range s.Params {
		prop := map[string]any{
			"type":        string(p.Type),
			"description": p.Description,
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		if p.Minimum != nil {
			prop["minimum"] = *p.Minimum
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

type ImageRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	Image     string `json:"image"`
}

type ImageResult struct {
	Response  string                  `json:"response"`
	Context   statex.TurnContext      `json:"context"`
	ToolCalls []statex.ToolCallRecord `json:"tool_calls,omitempty"`
}

// TurnObservation is emitted once per processed turn.
type TurnObservation struct {
	SessionID string
	Intent    statex.Intent
	Duration  time.Duration
	ToolCalls []string
	Error     string
	At        time.Time
}

type Activity struct {
	Timestamp time.Time `json:"timestamp"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
}

// MetricsSnapshot is the dashboard view of recent turns.
type MetricsSnapshot struct {
	TotalQueries    int        `json:"total_queries"`
	AvgResponseTime float64    `json:"avg_response_time"`
	ToolCallsCount  int        `json:"tool_calls_count"`
	RecentActivity  []Activity `json:"recent_activity"`
	ErrorCount      int        `json:"error_count"`
	SuccessRate     float64    `json:"success_rate"`
}

// EmptyMetrics is reported when no metrics provider is available.
func EmptyMetrics() MetricsSnapshot {
	return MetricsSnapshot{
		RecentActivity: []Activity{},
		SuccessRate:    100,
	}
}
