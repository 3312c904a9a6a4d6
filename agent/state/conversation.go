package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	inventoryx "github.com/tanpawarit/chative-retail-assistant/agent/inventory"
)

// Intent is the coarse category assigned to a user turn.
type Intent string

const (
	IntentGreeting Intent = "greeting"
	IntentRAG      Intent = "rag"
	IntentTool     Intent = "tool"
	IntentDirect   Intent = "direct"
	IntentUnknown  Intent = "unknown"
)

func (i Intent) Valid() bool {
	switch i {
	case IntentGreeting, IntentRAG, IntentTool, IntentDirect, IntentUnknown:
		return true
	default:
		return false
	}
}

// ParseIntent maps any unrecognised literal to IntentUnknown.
func ParseIntent(raw string) Intent {
	i := Intent(strings.ToLower(strings.TrimSpace(raw)))
	if !i.Valid() {
		return IntentUnknown
	}
	return i
}

func (i *Intent) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = ParseIntent(raw)
	return nil
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ToolCallRecord is one executed tool invocation.
type ToolCallRecord struct {
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args"`
	Result map[string]any `json:"result"`
}

// Succeeded reports the result's success flag.
func (r ToolCallRecord) Succeeded() bool {
	ok, _ := r.Result["success"].(bool)
	return ok
}

// TurnContext holds the per-turn artifacts shared between orchestrator
// branches and tools. Products is nil when retrieval did not run and empty
// when it ran and found nothing or failed.
type TurnContext struct {
	Products      []inventoryx.Product `json:"products"`
	RAGQuery      string               `json:"rag_query,omitempty"`
	ToolResults   []ToolCallRecord     `json:"tool_results,omitempty"`
	ProductsCache *ProductsCache       `json:"products_cache,omitempty"`
	SalesCache    *SalesCache          `json:"sales_cache,omitempty"`
}

// ConversationState is the unit of persisted dialog state.
type ConversationState struct {
	SessionID     string           `json:"session_id"`
	Messages      []Message        `json:"messages"`
	Context       TurnContext      `json:"context"`
	ToolCalls     []ToolCallRecord `json:"tool_calls"`
	CurrentIntent Intent           `json:"current_intent"`
	NeedsRAG      bool             `json:"needs_rag"`
	NeedsTool     bool             `json:"needs_tool"`
	Error         string           `json:"error,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

var (
	ErrNilConversationState = errors.New("conversation state is nil")
	ErrCorruptState         = errors.New("conversation state is corrupt")
)

func NewConversationState(sessionID string, now time.Time) *ConversationState {
	return &ConversationState{
		SessionID:     sessionID,
		Messages:      make([]Message, 0, 8),
		CurrentIntent: IntentUnknown,
		CreatedAt:     now.UTC(),
		UpdatedAt:     now.UTC(),
	}
}

func (s *ConversationState) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// BeginTurn clears everything that is decided fresh each turn. Messages and
// identity are left untouched.
func (s *ConversationState) BeginTurn() {
	s.CurrentIntent = IntentUnknown
	s.NeedsRAG = false
	s.NeedsTool = false
	s.Error = ""
	s.ToolCalls = nil
	s.Context = TurnContext{}
}

func (s *ConversationState) AppendMessage(role Role, content string) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content})
}

// LastMessage returns the most recent message, if any.
func (s *ConversationState) LastMessage() (Message, bool) {
	if s == nil || len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// LastUserText returns the content of the most recent user message.
func (s *ConversationState) LastUserText() (string, bool) {
	if s == nil {
		return "", false
	}
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i].Content, true
		}
	}
	return "", false
}

// TrimHistory keeps at most limit messages, dropping the oldest first.
// A non-positive limit leaves the history untouched.
func (s *ConversationState) TrimHistory(limit int) {
	if limit <= 0 || len(s.Messages) <= limit {
		return
	}
	kept := make([]Message, limit)
	copy(kept, s.Messages[len(s.Messages)-limit:])
	s.Messages = kept
}

// SetError records a non-fatal failure. The first error of a turn wins so
// that the root cause is not hidden by follow-up failures.
func (s *ConversationState) SetError(err error) {
	if err == nil || s.Error != "" {
		return
	}
	s.Error = err.Error()
}

// RecordToolCall appends rec to both the audit list and the turn context.
func (s *ConversationState) RecordToolCall(rec ToolCallRecord) {
	s.ToolCalls = append(s.ToolCalls, rec)
	s.Context.ToolResults = append(s.Context.ToolResults, rec)
}

func (s *ConversationState) Validate() error {
	if s == nil {
		return ErrNilConversationState
	}
	if strings.TrimSpace(s.SessionID) == "" {
		return ErrInvalidSession
	}
	if !s.CurrentIntent.Valid() {
		return fmt.Errorf("%w: intent %q", ErrCorruptState, s.CurrentIntent)
	}
	for i, m := range s.Messages {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return fmt.Errorf("%w: message %d has role %q", ErrCorruptState, i, m.Role)
		}
	}
	return nil
}

// Marshal serializes the state into the blob persisted by a Store.
func (s *ConversationState) Marshal() ([]byte, error) {
	if s == nil {
		return nil, ErrNilConversationState
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal conversation state: %w", err)
	}
	return payload, nil
}

func UnmarshalConversationState(blob []byte) (*ConversationState, error) {
	var st ConversationState
	if err := json.Unmarshal(blob, &st); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if st.CurrentIntent == "" {
		st.CurrentIntent = IntentUnknown
	}
	if err := st.Validate(); err != nil {
		return nil, err
	}
	return &st, nil
}

// Clone returns a deep copy made through the persisted representation.
func (s *ConversationState) Clone() (*ConversationState, error) {
	blob, err := s.Marshal()
	if err != nil {
		return nil, err
	}
	var out ConversationState
	if err := json.Unmarshal(blob, &out); err != nil {
		return nil, fmt.Errorf("clone conversation state: %w", err)
	}
	return &out, nil
}
