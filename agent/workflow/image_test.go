package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contractx "github.com/tanpawarit/chative-retail-assistant/agent/contract"
	inventoryx "github.com/tanpawarit/chative-retail-assistant/agent/inventory"
	"github.com/tanpawarit/chative-retail-assistant/agent/tool"
)

type fakeIdentifier struct {
	id  Identification
	err error
}

func (f fakeIdentifier) Identify(context.Context, string, string) (Identification, error) {
	return f.id, f.err
}

type fakeRetriever struct {
	products []inventoryx.Product
	err      error
	query    string
	topK     int
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string, topK int) ([]inventoryx.Product, error) {
	f.query, f.topK = query, topK
	return f.products, f.err
}

var catalog = []inventoryx.Product{
	{SKU: "SKU-1", Name: "Wireless Mouse", Category: "Electronics", Price: 25, CurrentStock: 50, ReorderLevel: 10, Supplier: "Acme"},
	{SKU: "SKU-2", Name: "Ergonomic Mouse", Category: "Electronics", Price: 40, CurrentStock: 3, ReorderLevel: 10, Supplier: "Acme"},
}

type countingSource struct {
	inventoryx.StaticSource
	productLoads int
	salesLoads   int
}

func (s *countingSource) LoadProducts(ctx context.Context) ([]inventoryx.Product, error) {
	s.productLoads++
	return s.StaticSource.LoadProducts(ctx)
}

func (s *countingSource) LoadSales(ctx context.Context) ([]inventoryx.Sale, error) {
	s.salesLoads++
	return s.StaticSource.LoadSales(ctx)
}

func newSource() *countingSource {
	return &countingSource{StaticSource: inventoryx.StaticSource{
		Products: catalog,
		Sales: []inventoryx.Sale{
			{SKU: "SKU-2", Quantity: 2, Timestamp: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
			{SKU: "SKU-2", Quantity: 4, Timestamp: time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)},
		},
	}}
}

func newExecutor(t *testing.T) *tool.Executor {
	t.Helper()
	return newExecutorWith(t, newSource())
}

func newExecutorWith(t *testing.T, src inventoryx.DataSource) *tool.Executor {
	t.Helper()

	now := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	x, err := tool.NewExecutor(tool.Dependencies{
		Source: src,
		Now:    func() time.Time { return now },
	})
	require.NoError(t, err)
	return x
}

func TestNewImageWorkflowRequiresCollaborators(t *testing.T) {
	_, err := NewImageWorkflow(nil, &fakeRetriever{}, newExecutor(t), Config{})
	assert.Error(t, err)
	_, err = NewImageWorkflow(fakeIdentifier{}, nil, newExecutor(t), Config{})
	assert.Error(t, err)
	_, err = NewImageWorkflow(fakeIdentifier{}, &fakeRetriever{}, nil, Config{})
	assert.Error(t, err)
}

func TestImageWorkflowChecksStockForMatches(t *testing.T) {
	retriever := &fakeRetriever{products: catalog}
	w, err := NewImageWorkflow(fakeIdentifier{id: Identification{
		ProductName: "Wireless Mouse",
		Category:    "Electronics",
		Color:       "black",
		Confidence:  0.9,
	}}, retriever, newExecutor(t), Config{})
	require.NoError(t, err)

	res, err := w.Process(context.Background(), contractx.ImageRequest{SessionID: "s1", Image: "x"})
	require.NoError(t, err)

	assert.Equal(t, "Wireless Mouse Electronics black", retriever.query)
	assert.Equal(t, DefaultMaxMatches, retriever.topK)

	// one inventory lookup per match plus a reorder calculation for the low one
	require.Len(t, res.ToolCalls, 3)
	assert.Equal(t, tool.ToolQueryInventory, res.ToolCalls[0].Tool)
	assert.Equal(t, tool.ToolQueryInventory, res.ToolCalls[1].Tool)
	assert.Equal(t, tool.ToolCalculateReorderPoint, res.ToolCalls[2].Tool)
	assert.Equal(t, "SKU-2", res.ToolCalls[2].Args["sku"])

	assert.Contains(t, res.Response, "I identified: Wireless Mouse")
	assert.Contains(t, res.Response, "Ergonomic Mouse (SKU: SKU-2) is running low")
	assert.Contains(t, res.Response, "Would you like me to create a purchase order")
	assert.NotContains(t, res.Response, lowConfidenceDisclaimer)
	assert.Len(t, res.Context.Products, 2)
	assert.Equal(t, res.ToolCalls, res.Context.ToolResults)
}

func TestImageWorkflowReusesMatchedProducts(t *testing.T) {
	src := newSource()
	w, err := NewImageWorkflow(fakeIdentifier{id: Identification{ProductName: "Mouse", Confidence: 0.8}},
		&fakeRetriever{products: catalog}, newExecutorWith(t, src), Config{})
	require.NoError(t, err)

	res, err := w.Process(context.Background(), contractx.ImageRequest{SessionID: "s1", Image: "x"})
	require.NoError(t, err)
	require.Len(t, res.ToolCalls, 3)

	assert.Zero(t, src.productLoads, "matches already cover every sku lookup")
	assert.Equal(t, 1, src.salesLoads)

	require.NotNil(t, res.Context.SalesCache)
	assert.Equal(t, "SKU-2", res.Context.SalesCache.SKUFilter)
	assert.Len(t, res.Context.SalesCache.Data, 2)
	assert.Nil(t, res.Context.ProductsCache)
}

func TestImageWorkflowNoMatches(t *testing.T) {
	w, err := NewImageWorkflow(fakeIdentifier{id: Identification{ProductName: "Kayak", Category: "Sports & Outdoors"}},
		&fakeRetriever{err: errors.New("index offline")}, newExecutor(t), Config{})
	require.NoError(t, err)

	res, err := w.Process(context.Background(), contractx.ImageRequest{Image: "x"})
	require.NoError(t, err)

	assert.Contains(t, res.Response, "Not Found in Inventory Catalog")
	assert.Contains(t, res.Response, "Show similar products in Sports & Outdoors?")
	assert.Empty(t, res.ToolCalls)
}

func TestImageWorkflowLowConfidence(t *testing.T) {
	w, err := NewImageWorkflow(fakeIdentifier{id: Identification{ProductName: "Mouse", Confidence: 0.1}},
		&fakeRetriever{products: catalog[:1]}, newExecutor(t), Config{MaxMatches: 1})
	require.NoError(t, err)

	res, err := w.Process(context.Background(), contractx.ImageRequest{Image: "x"})
	require.NoError(t, err)

	assert.Contains(t, res.Response, lowConfidenceDisclaimer)
	assert.Contains(t, res.Response, "All matched products have adequate stock levels.")
}

func TestImageWorkflowIdentificationFailure(t *testing.T) {
	w, err := NewImageWorkflow(fakeIdentifier{err: ErrUnreadableIdentification}, &fakeRetriever{}, newExecutor(t), Config{})
	require.NoError(t, err)

	_, err = w.Process(context.Background(), contractx.ImageRequest{Image: "x"})
	assert.ErrorIs(t, err, ErrUnreadableIdentification)
}
