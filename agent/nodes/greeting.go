package orchestratornode

import (
	"fmt"

	contractx "github.com/tanpawarit/chative-retail-assistant/agent/contract"
	statex "github.com/tanpawarit/chative-retail-assistant/agent/state"
)

func Greeting(st *statex.ConversationState) (*statex.ConversationState, error) {
	if st == nil {
		return nil, fmt.Errorf("%w: conversation state is nil", contractx.ErrValidation)
	}
	st.CurrentIntent = statex.IntentGreeting
	return st, nil
}
