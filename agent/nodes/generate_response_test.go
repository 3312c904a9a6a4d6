package orchestratornode

import (
	"context"
	"errors"
	"strings"
	"testing"

	contractx "github.com/tanpawarit/chative-retail-assistant/agent/contract"
	inventoryx "github.com/tanpawarit/chative-retail-assistant/agent/inventory"
	statex "github.com/tanpawarit/chative-retail-assistant/agent/state"
)

const responsePrompt = "You are a helpful retail inventory assistant."

func TestGenerateResponseAppendsReply(t *testing.T) {
	t.Parallel()

	model := &fakeModel{resp: contractx.ModelResponse{Content: "  Hello! How can I help?  "}}
	st := stateWith(user("hi"))

	st, err := GenerateResponse(context.Background(), st, model, responsePrompt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last, _ := st.LastMessage()
	if last.Role != statex.RoleAssistant || last.Content != "Hello! How can I help?" {
		t.Fatalf("unexpected last message: %+v", last)
	}

	sent := model.messages[0]
	if sent[0].Content != responsePrompt {
		t.Fatalf("system prompt without context must be the base prompt, got %q", sent[0].Content)
	}
	if len(sent) != 2 || sent[1].Role != contractx.RoleUser {
		t.Fatalf("history not forwarded: %+v", sent)
	}
	if model.tools[0] != nil {
		t.Fatal("response generation must not offer tools")
	}
}

func TestGenerateResponseFailureAppendsApology(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		model *fakeModel
	}{
		{name: "model error", model: &fakeModel{err: errors.New("upstream 500")}},
		{name: "empty reply", model: &fakeModel{resp: contractx.ModelResponse{Content: "   "}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			st, err := GenerateResponse(context.Background(), stateWith(user("hello")), tc.model, responsePrompt)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(st.Messages) != 2 {
				t.Fatalf("expected exactly one appended message, got %d", len(st.Messages))
			}
			if !strings.HasPrefix(st.Messages[1].Content, "I apologize, but I encountered an error: ") {
				t.Fatalf("unexpected apology: %q", st.Messages[1].Content)
			}
			if st.Error == "" {
				t.Fatal("expected error on state")
			}
		})
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	t.Parallel()

	tc := statex.TurnContext{
		Products: []inventoryx.Product{
			{SKU: "A", Name: "Alpha", Price: 10, CurrentStock: 1},
			{SKU: "B", Name: "Beta", Price: 20.5, CurrentStock: 2},
			{SKU: "C", Name: "Gamma", Price: 30, CurrentStock: 3},
			{SKU: "D", Name: "Delta", Price: 40, CurrentStock: 4},
		},
		ToolResults: []statex.ToolCallRecord{
			{Tool: "query_inventory", Result: map[string]any{"success": true}},
		},
	}

	got := BuildSystemPrompt("base", tc)
	want := "base\n\nContext:\n" +
		"Found 4 relevant products:\n" +
		"- Alpha (SKU: A) - $10.00 - Stock: 1\n" +
		"- Beta (SKU: B) - $20.50 - Stock: 2\n" +
		"- Gamma (SKU: C) - $30.00 - Stock: 3\n" +
		"\nTool execution results:\n" +
		`- query_inventory: {"success":true}`
	if got != want {
		t.Fatalf("unexpected prompt:\n%s\nwant:\n%s", got, want)
	}
}
