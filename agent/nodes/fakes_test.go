package orchestratornode

import (
	"context"
	"time"

	contractx "github.com/tanpawarit/chative-retail-assistant/agent/contract"
	inventoryx "github.com/tanpawarit/chative-retail-assistant/agent/inventory"
	statex "github.com/tanpawarit/chative-retail-assistant/agent/state"
)

var testNow = time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type fakeModel struct {
	resp     contractx.ModelResponse
	err      error
	messages [][]contractx.ChatMessage
	tools    [][]contractx.ToolSchema
}

func (f *fakeModel) Call(_ context.Context, messages []contractx.ChatMessage, tools []contractx.ToolSchema) (contractx.ModelResponse, error) {
	f.messages = append(f.messages, messages)
	f.tools = append(f.tools, tools)
	if f.err != nil {
		return contractx.ModelResponse{}, f.err
	}
	return f.resp, nil
}

type fakeRetriever struct {
	products []inventoryx.Product
	err      error
	queries  []string
	topK     int
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string, topK int) ([]inventoryx.Product, error) {
	f.queries = append(f.queries, query)
	f.topK = topK
	if f.err != nil {
		return nil, f.err
	}
	return f.products, nil
}

type executedCall struct {
	name string
	args map[string]any
}

type fakeTools struct {
	calls   []executedCall
	results map[string]map[string]any
	onCall  func()
}

func (f *fakeTools) Execute(_ context.Context, name string, args map[string]any, _ *statex.ConversationState) map[string]any {
	f.calls = append(f.calls, executedCall{name: name, args: args})
	if f.onCall != nil {
		f.onCall()
	}
	if r, ok := f.results[name]; ok {
		return r
	}
	return map[string]any{"success": true}
}

func (f *fakeTools) Schemas() []contractx.ToolSchema {
	return []contractx.ToolSchema{{Name: "query_inventory", Description: "Query inventory"}}
}

func stateWith(messages ...statex.Message) *statex.ConversationState {
	st := statex.NewConversationState("session-1", testNow)
	st.Messages = append(st.Messages, messages...)
	return st
}

func user(text string) statex.Message {
	return statex.Message{Role: statex.RoleUser, Content: text}
}
