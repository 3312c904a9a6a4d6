package contract

import (
	"context"

	inventoryx "github.com/tanpawarit/chative-retail-assistant/agent/inventory"
	statex "github.com/tanpawarit/chative-retail-assistant/agent/state"
)

// ModelClient sends role-tagged messages, optionally with tool schemas, and
// returns text and/or requested tool calls.
type ModelClient interface {
	Call(ctx context.Context, messages []ChatMessage, tools []ToolSchema) (ModelResponse, error)
}

// Retriever returns up to topK catalog records ranked by relevance.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]inventoryx.Product, error)
}

// ToolExecutor runs a named tool. The returned map always carries a
// "success" bool. Tools may read and update st's context cache.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args map[string]any, st *statex.ConversationState) map[string]any
	Schemas() []ToolSchema
}

// ImageWorkflow handles turns that carry an image attachment.
type ImageWorkflow interface {
	Process(ctx context.Context, req ImageRequest) (ImageResult, error)
}

type MetricsProvider interface {
	Snapshot(ctx context.Context) (MetricsSnapshot, error)
}

type TurnObserver interface {
	ObserveTurn(obs TurnObservation)
}
