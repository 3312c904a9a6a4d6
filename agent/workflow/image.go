package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/chative-retail-assistant/agent/contract"
	inventoryx "github.com/tanpawarit/chative-retail-assistant/agent/inventory"
	statex "github.com/tanpawarit/chative-retail-assistant/agent/state"
	"github.com/tanpawarit/chative-retail-assistant/agent/tool"
	logx "github.com/tanpawarit/chative-retail-assistant/pkg/logger"
)

const (
	DefaultMaxMatches       = 5
	MinConfidenceThreshold  = 0.3
	lowConfidenceDisclaimer = "I'm not fully certain about this identification, so please double-check the matches below."
)

type Config struct {
	VisionModel string `envconfig:"VISION_MODEL"`
	MaxMatches  int    `envconfig:"MAX_MATCHES" default:"5"`
}

// ImageWorkflow answers photo questions: identify the product, find it in the
// catalog, then check stock and reorder needs for every match.
type ImageWorkflow struct {
	identifier Identifier
	retriever  contractx.Retriever
	tools      contractx.ToolExecutor
	maxMatches int
	now        func() time.Time
}

var _ contractx.ImageWorkflow = (*ImageWorkflow)(nil)

func NewImageWorkflow(identifier Identifier, retriever contractx.Retriever, tools contractx.ToolExecutor, cfg Config) (*ImageWorkflow, error) {
	if identifier == nil {
		return nil, errors.New("image workflow: identifier is required")
	}
	if retriever == nil {
		return nil, errors.New("image workflow: retriever is required")
	}
	if tools == nil {
		return nil, errors.New("image workflow: tool executor is required")
	}
	maxMatches := cfg.MaxMatches
	if maxMatches <= 0 {
		maxMatches = DefaultMaxMatches
	}
	return &ImageWorkflow{
		identifier: identifier,
		retriever:  retriever,
		tools:      tools,
		maxMatches: maxMatches,
		now:        time.Now,
	}, nil
}

type matchStatus struct {
	product inventoryx.Product
	reorder *tool.ReorderRecommendation
}

func (w *ImageWorkflow) Process(ctx context.Context, req contractx.ImageRequest) (contractx.ImageResult, error) {
	id, err := w.identifier.Identify(ctx, req.Text, req.Image)
	if err != nil {
		return contractx.ImageResult{}, fmt.Errorf("image analysis failed: %w", err)
	}
	logx.Info().
		Str("session_id", req.SessionID).
		Str("product", id.ProductName).
		Str("category", id.Category).
		Float64("confidence", id.Confidence).
		Msg("product identified from image")

	query := searchQuery(id)
	products, err := w.retriever.Retrieve(ctx, query, w.maxMatches)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return contractx.ImageResult{}, ctxErr
		}
		logx.Warn().Err(err).Str("query", query).Msg("catalog search failed for image")
		products = nil
	}

	turnCtx := statex.TurnContext{Products: products, RAGQuery: query}
	if len(products) == 0 {
		return contractx.ImageResult{Response: noMatchResponse(id), Context: turnCtx}, nil
	}

	// tools read the matches and cache what they load on a scratch state
	// shared by this request
	scratch := statex.NewConversationState(req.SessionID, w.now())
	scratch.Context.Products = products
	var calls []statex.ToolCallRecord
	record := func(name string, args map[string]any) map[string]any {
		result := w.tools.Execute(ctx, name, args, scratch)
		calls = append(calls, statex.ToolCallRecord{Tool: name, Args: args, Result: result})
		return result
	}

	matches := make([]matchStatus, 0, len(products))
	for _, p := range products {
		if err := ctx.Err(); err != nil {
			return contractx.ImageResult{}, err
		}
		record(tool.ToolQueryInventory, map[string]any{"sku": p.SKU})

		m := matchStatus{product: p}
		if p.IsLowStock() {
			result := record(tool.ToolCalculateReorderPoint, map[string]any{"sku": p.SKU})
			m.reorder = decodeRecommendation(result)
		}
		matches = append(matches, m)
	}

	turnCtx.ToolResults = calls
	turnCtx.ProductsCache = scratch.Context.ProductsCache
	turnCtx.SalesCache = scratch.Context.SalesCache
	return contractx.ImageResult{
		Response:  matchResponse(id, matches),
		Context:   turnCtx,
		ToolCalls: calls,
	}, nil
}

func searchQuery(id Identification) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{id.ProductName, id.Category, id.Color} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

func decodeRecommendation(result map[string]any) *tool.ReorderRecommendation {
	if ok, _ := result["success"].(bool); !ok {
		return nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil
	}
	var out tool.ReorderPointResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out.Recommendations
}

func matchResponse(id Identification, matches []matchStatus) string {
	var b strings.Builder
	b.WriteString("Product Identification Results\n\n")
	fmt.Fprintf(&b, "I identified: %s\n", id.ProductName)
	if id.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", id.Category)
	}
	if id.Confidence < MinConfidenceThreshold {
		b.WriteString(lowConfidenceDisclaimer + "\n")
	}

	b.WriteString("\nMatching Products in Inventory:\n\n")
	var low []matchStatus
	for i, m := range matches {
		p := m.product
		status := tool.StatusOK
		if p.IsLowStock() {
			status = tool.StatusLowStock
			low = append(low, m)
		}
		fmt.Fprintf(&b, "%d. %s (SKU: %s)\n", i+1, p.Name, p.SKU)
		fmt.Fprintf(&b, "   - Price: $%.2f\n", p.Price)
		fmt.Fprintf(&b, "   - Current Stock: %d units\n", p.CurrentStock)
		fmt.Fprintf(&b, "   - Reorder Level: %d units\n", p.ReorderLevel)
		fmt.Fprintf(&b, "   - Status: %s\n", status)
		fmt.Fprintf(&b, "   - Supplier: %s\n\n", p.Supplier)
	}

	if len(low) == 0 {
		b.WriteString("All matched products have adequate stock levels.")
		return b.String()
	}

	b.WriteString("Recommendations:\n\n")
	for _, m := range low {
		p := m.product
		if m.reorder == nil {
			fmt.Fprintf(&b, "%s (SKU: %s) is below reorder level\n\n", p.Name, p.SKU)
			continue
		}
		fmt.Fprintf(&b, "%s (SKU: %s) is running low:\n", p.Name, p.SKU)
		fmt.Fprintf(&b, "   - Days until stockout: %d\n", m.reorder.DaysUntilStockout)
		fmt.Fprintf(&b, "   - Suggested order quantity: %d units\n", m.reorder.OrderQuantity)
		fmt.Fprintf(&b, "   - Urgency: %s\n\n", m.reorder.Urgency)
	}
	b.WriteString("Would you like me to create a purchase order for any of these items?")
	return b.String()
}

func noMatchResponse(id Identification) string {
	var b strings.Builder
	b.WriteString("Product Identified\n\n")
	b.WriteString("I can see this product in the image:\n")
	fmt.Fprintf(&b, "- Product: %s\n", id.ProductName)
	if id.Category != "" {
		fmt.Fprintf(&b, "- Category: %s\n", id.Category)
	}
	if id.Description != "" {
		fmt.Fprintf(&b, "- Description: %s\n", id.Description)
	}
	b.WriteString("\nNot Found in Inventory Catalog\n\n")
	b.WriteString("This product doesn't match anything in our current inventory.\n\n")
	b.WriteString("Options:\n1. Try searching with different keywords?\n")
	if id.Category != "" {
		fmt.Fprintf(&b, "2. Show similar products in %s?\n", id.Category)
	}
	b.WriteString("3. Add as new product to track?\n\nWhat would you like to do?")
	return b.String()
}
