package orchestratornode

import (
	"context"
	"errors"
	"testing"

	contractx "github.com/tanpawarit/chative-retail-assistant/agent/contract"
	inventoryx "github.com/tanpawarit/chative-retail-assistant/agent/inventory"
	statex "github.com/tanpawarit/chative-retail-assistant/agent/state"
)

func TestRAGRetrievalStoresProductsAndCache(t *testing.T) {
	t.Parallel()

	retriever := &fakeRetriever{products: []inventoryx.Product{{SKU: "J-1", Name: "Jacket", Price: 59.5, CurrentStock: 4}}}
	st, err := RAGRetrieval(context.Background(), stateWith(user("find a jacket")), retriever, 0, fixedClock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if retriever.topK != DefaultRetrievalTopK {
		t.Fatalf("topK = %d", retriever.topK)
	}
	if st.Context.RAGQuery != "find a jacket" || len(st.Context.Products) != 1 {
		t.Fatalf("unexpected context: %+v", st.Context)
	}
	cache := st.Context.ProductsCache
	if cache == nil || cache.Source != statex.SourceRAG || cache.FilterApplied.Query != "find a jacket" || !cache.Timestamp.Equal(testNow) {
		t.Fatalf("unexpected products cache: %+v", cache)
	}
	if st.Error != "" {
		t.Fatalf("unexpected error on state: %s", st.Error)
	}
}

func TestRAGRetrievalFailureLeavesEmptyProducts(t *testing.T) {
	t.Parallel()

	retriever := &fakeRetriever{err: errors.New("index offline")}
	st, err := RAGRetrieval(context.Background(), stateWith(user("find a jacket")), retriever, 5, fixedClock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Context.Products == nil || len(st.Context.Products) != 0 {
		t.Fatalf("products must be empty but present, got %#v", st.Context.Products)
	}
	if st.Context.ProductsCache != nil {
		t.Fatal("failed retrieval must not populate the cache")
	}
	if st.Error == "" {
		t.Fatal("expected error on state")
	}
}

func TestRAGRetrievalWithoutRetriever(t *testing.T) {
	t.Parallel()

	st, err := RAGRetrieval(context.Background(), stateWith(user("laptop")), nil, 5, fixedClock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Error == "" {
		t.Fatal("expected error on state")
	}

	if _, err := RAGRetrieval(context.Background(), nil, nil, 5, fixedClock); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("nil state err = %v", err)
	}
}
