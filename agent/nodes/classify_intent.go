package orchestratornode

import (
	"fmt"
	"regexp"
	"strings"

	contractx "github.com/tanpawarit/chative-retail-assistant/agent/contract"
	statex "github.com/tanpawarit/chative-retail-assistant/agent/state"
)

const maxGreetingWords = 5

var (
	greetingPattern = regexp.MustCompile(`\b(hello|hi|hey|good morning|good afternoon)\b`)

	// Tool keywords are checked before catalog keywords, so "low stock
	// laptops" routes to tools.
	toolKeywords = []string{
		"create order",
		"purchase order",
		"reorder point",
		"calculate reorder",
		"low stock",
		"inventory status",
		"stock level",
	}

	catalogKeywords = []string{
		"product",
		"find",
		"search",
		"category",
		"price",
		"electronics",
		"clothing",
		"supplier",
		"sku",
		"jacket",
		"laptop",
		"headphones",
		"smartphone",
	}
)

// ClassifyIntent sets the turn intent from keyword heuristics over the
// latest user message.
func ClassifyIntent(st *statex.ConversationState) (*statex.ConversationState, error) {
	if st == nil {
		return nil, fmt.Errorf("%w: conversation state is nil", contractx.ErrValidation)
	}

	intent := Classify(st)
	st.CurrentIntent = intent
	st.NeedsTool = intent == statex.IntentTool
	st.NeedsRAG = intent == statex.IntentRAG
	return st, nil
}

func Classify(st *statex.ConversationState) statex.Intent {
	last, ok := st.LastMessage()
	if !ok || last.Role != statex.RoleUser {
		return statex.IntentDirect
	}

	text := strings.ToLower(last.Content)
	if greetingPattern.MatchString(text) && len(strings.Fields(text)) <= maxGreetingWords {
		return statex.IntentGreeting
	}
	if containsAny(text, toolKeywords) {
		return statex.IntentTool
	}
	if containsAny(text, catalogKeywords) {
		return statex.IntentRAG
	}
	return statex.IntentDirect
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
