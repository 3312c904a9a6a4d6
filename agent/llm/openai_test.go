package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contractx "github.com/tanpawarit/chative-retail-assistant/agent/contract"
)

const completionWithToolCall = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-test",
  "choices": [{
    "index": 0,
    "finish_reason": "tool_calls",
    "message": {
      "role": "assistant",
      "content": "",
      "tool_calls": [{
        "id": "call-1",
        "type": "function",
        "function": {"name": "calculate_reorder_point", "arguments": "{\"sku\":\"SKU001\"}"}
      }]
    }
  }]
}`

func newTestOpenAIClient(t *testing.T, handler http.HandlerFunc) *openaisdk.Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := openaisdk.NewClient(
		option.WithAPIKey("test-key"),
		option.WithBaseURL(srv.URL+"/"),
		option.WithMaxRetries(0),
	)
	return &client
}

func TestNewOpenAIClientValidates(t *testing.T) {
	_, err := NewOpenAIClient(nil, OpenAIOptions{Model: "m"})
	assert.ErrorIs(t, err, contractx.ErrValidation)

	client := openaisdk.NewClient(option.WithAPIKey("k"))
	_, err = NewOpenAIClient(&client, OpenAIOptions{Model: "  "})
	assert.ErrorIs(t, err, contractx.ErrValidation)
}

func TestOpenAIClientCall(t *testing.T) {
	var body map[string]any
	client := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionWithToolCall)
	})

	m, err := NewOpenAIClient(client, OpenAIOptions{Model: "gpt-test", Temperature: 0.2, MaxTokens: 256})
	require.NoError(t, err)

	resp, err := m.Call(context.Background(), []contractx.ChatMessage{
		{Role: contractx.RoleSystem, Content: "sys"},
		{Role: contractx.RoleUser, Content: "reorder SKU001"},
	}, []contractx.ToolSchema{inventoryTool})
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "calculate_reorder_point", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"sku":"SKU001"}`, resp.ToolCalls[0].Arguments)

	assert.Equal(t, "gpt-test", body["model"])
	assert.EqualValues(t, 256, body["max_completion_tokens"])
	msgs, _ := body["messages"].([]any)
	assert.Len(t, msgs, 2)
	tools, _ := body["tools"].([]any)
	assert.Len(t, tools, 1)
}

func TestOpenAIClientCallServerError(t *testing.T) {
	client := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
	})

	m, err := NewOpenAIClient(client, OpenAIOptions{Model: "gpt-test", Temperature: -1})
	require.NoError(t, err)

	_, err = m.Call(context.Background(), []contractx.ChatMessage{{Role: contractx.RoleUser, Content: "hi"}}, nil)
	assert.ErrorIs(t, err, contractx.ErrModelInvoke)
}

func TestOpenAIClientCallNoChoices(t *testing.T) {
	client := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","created":1,"model":"gpt-test","choices":[]}`)
	})

	m, err := NewOpenAIClient(client, OpenAIOptions{Model: "gpt-test"})
	require.NoError(t, err)

	_, err = m.Call(context.Background(), nil, nil)
	assert.ErrorIs(t, err, contractx.ErrEmptyResponse)
}
