package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	contractx "github.com/tanpawarit/chative-retail-assistant/agent/contract"
	nodex "github.com/tanpawarit/chative-retail-assistant/agent/nodes"
	promptx "github.com/tanpawarit/chative-retail-assistant/agent/prompt"
	statex "github.com/tanpawarit/chative-retail-assistant/agent/state"
	logx "github.com/tanpawarit/chative-retail-assistant/pkg/logger"
)

type Config struct {
	RetrievalTopK int `envconfig:"RETRIEVAL_TOP_K" default:"5"`
}

// Dependencies are the collaborators of one turn. Only ResponseModel is
// required; a missing retriever or tool planner surfaces as a turn error.
type Dependencies struct {
	ToolModel     contractx.ModelClient
	ResponseModel contractx.ModelClient
	Tools         contractx.ToolExecutor
	Retriever     contractx.Retriever
	Prompts       promptx.PromptSet
}

// Orchestrator runs the per-turn state machine:
// classify_intent -> {greeting | rag_retrieval | tool_execution | direct} -> generate_response.
// It is safe for concurrent use across sessions.
type Orchestrator struct {
	toolModel     contractx.ModelClient
	responseModel contractx.ModelClient
	tools         contractx.ToolExecutor
	retriever     contractx.Retriever
	prompts       promptx.PromptSet
	topK          int

	now func() time.Time
}

func New(deps Dependencies, cfg Config) (*Orchestrator, error) {
	if deps.ResponseModel == nil {
		return nil, errors.New("response model is required")
	}
	prompts := deps.Prompts
	if prompts == (promptx.PromptSet{}) {
		prompts = promptx.LoadPromptSet()
	}
	if err := prompts.Validate(); err != nil {
		return nil, err
	}
	topK := cfg.RetrievalTopK
	if topK <= 0 {
		topK = nodex.DefaultRetrievalTopK
	}

	return &Orchestrator{
		toolModel:     deps.ToolModel,
		responseModel: deps.ResponseModel,
		tools:         deps.Tools,
		retriever:     deps.Retriever,
		prompts:       prompts,
		topK:          topK,
		now:           time.Now,
	}, nil
}

// Process runs one turn over a deep copy of st. If the turn cannot complete,
// st is returned unchanged apart from Error.
func (o *Orchestrator) Process(ctx context.Context, st *statex.ConversationState) (out *statex.ConversationState) {
	if st == nil {
		return nil
	}

	working, err := st.Clone()
	if err != nil {
		return failed(st, err)
	}

	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("session_id", st.SessionID).Interface("panic", r).Msg("orchestrator panicked")
			out = failed(st, fmt.Errorf("orchestrator panic: %v", r))
		}
	}()

	result, err := o.run(ctx, working)
	if err != nil {
		logx.Error().Err(err).Str("session_id", st.SessionID).Msg("orchestrator turn aborted")
		return failed(st, err)
	}
	if result == nil {
		return failed(st, fmt.Errorf("%w: orchestrator produced no state", contractx.ErrValidation))
	}

	logx.Debug().
		Str("session_id", result.SessionID).
		Str("intent", string(result.CurrentIntent)).
		Int("tool_calls", len(result.ToolCalls)).
		Msg("turn processed")
	return result
}

// run executes classify_intent, the branch chosen for the intent, then
// generate_response.
func (o *Orchestrator) run(ctx context.Context, st *statex.ConversationState) (*statex.ConversationState, error) {
	st, err := nodex.ClassifyIntent(st)
	if err != nil {
		return nil, err
	}

	switch st.CurrentIntent {
	case statex.IntentGreeting:
		st, err = nodex.Greeting(st)
	case statex.IntentRAG:
		st, err = nodex.RAGRetrieval(ctx, st, o.retriever, o.topK, o.now)
	case statex.IntentTool:
		st, err = nodex.ToolExecution(ctx, st, o.toolModel, o.tools, o.prompts.ToolCalling)
	case statex.IntentDirect, statex.IntentUnknown:
	}
	if err != nil {
		return nil, err
	}

	return nodex.GenerateResponse(ctx, st, o.responseModel, o.prompts.Response)
}

func failed(original *statex.ConversationState, err error) *statex.ConversationState {
	out, cloneErr := original.Clone()
	if cloneErr != nil {
		out = original
	}
	out.Error = err.Error()
	return out
}
