package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inventoryx "github.com/tanpawarit/chative-retail-assistant/agent/inventory"
)

func TestParseIntent(t *testing.T) {
	t.Parallel()

	cases := map[string]Intent{
		"greeting": IntentGreeting,
		" RAG ":    IntentRAG,
		"tool":     IntentTool,
		"direct":   IntentDirect,
		"unknown":  IntentUnknown,
		"":         IntentUnknown,
		"banana":   IntentUnknown,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseIntent(in), "ParseIntent(%q)", in)
	}
}

func TestTrimHistoryDropsOldest(t *testing.T) {
	t.Parallel()

	st := NewConversationState("s", time.Now())
	for i := 0; i < 7; i++ {
		st.AppendMessage(RoleUser, string(rune('a'+i)))
	}

	st.TrimHistory(4)
	require.Len(t, st.Messages, 4)
	assert.Equal(t, "d", st.Messages[0].Content)
	assert.Equal(t, "g", st.Messages[3].Content)

	st.TrimHistory(0)
	assert.Len(t, st.Messages, 4)
}

func TestBeginTurnKeepsHistory(t *testing.T) {
	t.Parallel()

	st := sampleState("s")
	st.Error = "boom"

	st.BeginTurn()

	assert.Len(t, st.Messages, 2)
	assert.Equal(t, "s", st.SessionID)
	assert.Equal(t, IntentUnknown, st.CurrentIntent)
	assert.False(t, st.NeedsRAG)
	assert.Empty(t, st.Error)
	assert.Nil(t, st.ToolCalls)
	assert.Nil(t, st.Context.Products)
	assert.Nil(t, st.Context.ProductsCache)
}

func TestLastUserText(t *testing.T) {
	t.Parallel()

	st := NewConversationState("s", time.Now())
	_, ok := st.LastUserText()
	assert.False(t, ok)

	st.AppendMessage(RoleUser, "first")
	st.AppendMessage(RoleAssistant, "reply")
	text, ok := st.LastUserText()
	require.True(t, ok)
	assert.Equal(t, "first", text)

	last, ok := st.LastMessage()
	require.True(t, ok)
	assert.Equal(t, RoleAssistant, last.Role)
}

func TestSetErrorKeepsFirst(t *testing.T) {
	t.Parallel()

	st := NewConversationState("s", time.Now())
	st.SetError(nil)
	assert.Empty(t, st.Error)

	st.SetError(assert.AnError)
	st.SetError(ErrCorruptState)
	assert.Equal(t, assert.AnError.Error(), st.Error)
}

func TestMarshalRoundTripPreservesEmptyProducts(t *testing.T) {
	t.Parallel()

	st := NewConversationState("s", time.Now())
	st.Context.Products = nil
	blob, err := st.Marshal()
	require.NoError(t, err)
	loaded, err := UnmarshalConversationState(blob)
	require.NoError(t, err)
	assert.Nil(t, loaded.Context.Products)

	st.Context.Products = []inventoryx.Product{}
	blob, err = st.Marshal()
	require.NoError(t, err)
	loaded, err = UnmarshalConversationState(blob)
	require.NoError(t, err)
	assert.NotNil(t, loaded.Context.Products)
	assert.Empty(t, loaded.Context.Products)
}

func TestUnmarshalConversationStateRejectsCorruptBlobs(t *testing.T) {
	t.Parallel()

	_, err := UnmarshalConversationState([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrCorruptState)

	_, err = UnmarshalConversationState([]byte(`{"session_id":""}`))
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = UnmarshalConversationState([]byte(`{"session_id":"s","messages":[{"role":"system","content":"x"}]}`))
	assert.ErrorIs(t, err, ErrCorruptState)

	st, err := UnmarshalConversationState([]byte(`{"session_id":"s","current_intent":"weird"}`))
	require.NoError(t, err)
	assert.Equal(t, IntentUnknown, st.CurrentIntent)
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	st := sampleState("s")
	clone, err := st.Clone()
	require.NoError(t, err)

	clone.Messages[0].Content = "changed"
	clone.ToolCalls[0].Args["sku"] = "other"
	clone.Context.Products[0].CurrentStock = 0

	assert.Equal(t, "Find wireless mouse", st.Messages[0].Content)
	assert.Equal(t, "SKU-1", st.ToolCalls[0].Args["sku"])
	assert.Equal(t, 45, st.Context.Products[0].CurrentStock)
}
