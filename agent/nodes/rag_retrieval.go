package orchestratornode

import (
	"context"
	"fmt"
	"time"

	contractx "github.com/tanpawarit/chative-retail-assistant/agent/contract"
	inventoryx "github.com/tanpawarit/chative-retail-assistant/agent/inventory"
	statex "github.com/tanpawarit/chative-retail-assistant/agent/state"
	logx "github.com/tanpawarit/chative-retail-assistant/pkg/logger"
)

const DefaultRetrievalTopK = 5

// RAGRetrieval fetches catalog context for the latest user message. A
// retrieval failure is recorded on the state and leaves an empty product list.
func RAGRetrieval(
	ctx context.Context,
	st *statex.ConversationState,
	retriever contractx.Retriever,
	topK int,
	now func() time.Time,
) (*statex.ConversationState, error) {
	if st == nil {
		return nil, fmt.Errorf("%w: conversation state is nil", contractx.ErrValidation)
	}
	if topK <= 0 {
		topK = DefaultRetrievalTopK
	}

	query, _ := st.LastUserText()
	st.Context.RAGQuery = query

	if retriever == nil {
		st.SetError(fmt.Errorf("rag retrieval failed: %w: retriever is not configured", contractx.ErrRetrieval))
		st.Context.Products = []inventoryx.Product{}
		return st, nil
	}

	products, err := retriever.Retrieve(ctx, query, topK)
	if err != nil {
		logx.Error().Err(err).Str("session_id", st.SessionID).Msg("rag retrieval failed")
		st.SetError(fmt.Errorf("rag retrieval failed: %w", err))
		st.Context.Products = []inventoryx.Product{}
		return st, nil
	}
	if products == nil {
		products = []inventoryx.Product{}
	}

	st.Context.Products = products
	if len(products) > 0 {
		statex.UpdateProductsCache(st, products, statex.SourceRAG, statex.ProductFilter{Query: query}, now())
	}
	logx.Info().Str("session_id", st.SessionID).Int("count", len(products)).Msg("retrieved catalog context")
	return st, nil
}
