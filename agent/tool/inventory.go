package tool

import (
	"context"
	"fmt"
	"math"
	"time"

	inventoryx "github.com/tanpawarit/chative-retail-assistant/agent/inventory"
	statex "github.com/tanpawarit/chative-retail-assistant/agent/state"
)

const (
	maxListedProducts = 20

	StatusLowStock = "LOW STOCK"
	StatusOK       = "OK"

	UrgencyHigh   = "HIGH"
	UrgencyMedium = "MEDIUM"
	UrgencyLow    = "LOW"
)

type queryInventoryArgs struct {
	SKU       string `json:"sku"`
	Category  string `json:"category"`
	LowStock  bool   `json:"low_stock"`
	Threshold int    `json:"threshold"`
}

type InventoryItem struct {
	SKU          string  `json:"sku"`
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	Price        float64 `json:"price"`
	CurrentStock int     `json:"current_stock"`
	ReorderLevel int     `json:"reorder_level"`
	Supplier     string  `json:"supplier"`
	Status       string  `json:"status"`
}

type InventorySummary struct {
	TotalItems          int     `json:"total_items"`
	LowStockItems       int     `json:"low_stock_items"`
	OutOfStockItems     int     `json:"out_of_stock_items"`
	TotalInventoryValue float64 `json:"total_inventory_value"`
}

type QueryInventoryResult struct {
	Success  bool              `json:"success"`
	Message  string            `json:"message"`
	Summary  *InventorySummary `json:"summary,omitempty"`
	Products []InventoryItem   `json:"products"`
}

func (x *Executor) queryInventory(ctx context.Context, raw map[string]any, st *statex.ConversationState) (any, error) {
	args := queryInventoryArgs{Threshold: statex.DefaultLowStockThreshold}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}

	products, err := x.loadProducts(ctx, st,
		statex.ProductQuery{SKU: args.SKU, Category: args.Category, LowStock: args.LowStock, Threshold: args.Threshold},
		statex.ProductFilter{SKU: args.SKU, Category: args.Category, LowStock: args.LowStock, Threshold: args.Threshold},
	)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return QueryInventoryResult{Message: "No products found in inventory", Products: []InventoryItem{}}, nil
	}

	filtered := make([]inventoryx.Product, 0, len(products))
	for _, p := range products {
		if args.SKU != "" && p.SKU != args.SKU {
			continue
		}
		if args.Category != "" && !p.InCategory(args.Category) {
			continue
		}
		if args.LowStock && p.CurrentStock > args.Threshold {
			continue
		}
		filtered = append(filtered, p)
	}

	summary := InventorySummary{TotalItems: len(filtered)}
	var value float64
	items := make([]InventoryItem, 0, min(len(filtered), maxListedProducts))
	for i, p := range filtered {
		if p.IsLowStock() {
			summary.LowStockItems++
		}
		if p.CurrentStock == 0 {
			summary.OutOfStockItems++
		}
		value += p.Price * float64(p.CurrentStock)

		if i >= maxListedProducts {
			continue
		}
		status := StatusOK
		if p.IsLowStock() {
			status = StatusLowStock
		}
		items = append(items, InventoryItem{
			SKU:          p.SKU,
			Name:         p.Name,
			Category:     p.Category,
			Price:        p.Price,
			CurrentStock: p.CurrentStock,
			ReorderLevel: p.ReorderLevel,
			Supplier:     p.Supplier,
			Status:       status,
		})
	}
	summary.TotalInventoryValue = round2(value)

	return QueryInventoryResult{
		Success:  true,
		Message:  fmt.Sprintf("Found %d products", len(filtered)),
		Summary:  &summary,
		Products: items,
	}, nil
}

type reorderArgs struct {
	SKU                   string  `json:"sku"`
	LeadTimeDays          int     `json:"lead_time_days"`
	SafetyStockMultiplier float64 `json:"safety_stock_multiplier"`
}

type ProductRef struct {
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Supplier string `json:"supplier"`
}

type ProductSnapshot struct {
	SKU                 string `json:"sku"`
	Name                string `json:"name"`
	CurrentStock        int    `json:"current_stock"`
	CurrentReorderLevel int    `json:"current_reorder_level"`
}

type StockStatus struct {
	CurrentStock        int `json:"current_stock"`
	CurrentReorderLevel int `json:"current_reorder_level"`
}

type SalesAnalysis struct {
	TotalSales        int     `json:"total_sales"`
	TotalQuantitySold int     `json:"total_quantity_sold"`
	DaysOfHistory     int     `json:"days_of_history"`
	AverageDailySales float64 `json:"average_daily_sales"`
}

type ReorderCalculation struct {
	LeadTimeDays            int     `json:"lead_time_days"`
	SafetyStockMultiplier   float64 `json:"safety_stock_multiplier"`
	RecommendedReorderPoint int     `json:"recommended_reorder_point"`
	SafetyStock             int     `json:"safety_stock"`
}

type ReorderRecommendation struct {
	ReorderPoint      int    `json:"reorder_point"`
	OrderQuantity     int    `json:"order_quantity"`
	DaysUntilStockout int    `json:"days_until_stockout"`
	Urgency           string `json:"urgency"`
	Action            string `json:"action"`
}

type ReorderPointResult struct {
	Success         bool                   `json:"success"`
	Message         string                 `json:"message"`
	Product         any                    `json:"product,omitempty"`
	CurrentStatus   *StockStatus           `json:"current_status,omitempty"`
	SalesAnalysis   *SalesAnalysis         `json:"sales_analysis,omitempty"`
	Calculation     *ReorderCalculation    `json:"calculation,omitempty"`
	Recommendations *ReorderRecommendation `json:"recommendations,omitempty"`
}

func (x *Executor) calculateReorderPoint(ctx context.Context, raw map[string]any, st *statex.ConversationState) (any, error) {
	args := reorderArgs{LeadTimeDays: 7, SafetyStockMultiplier: 1.5}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}

	products, err := x.loadProducts(ctx, st, statex.ProductQuery{SKU: args.SKU}, statex.ProductFilter{SKU: args.SKU})
	if err != nil {
		return nil, err
	}
	product, ok := inventoryx.FindBySKU(products, args.SKU)
	if !ok {
		return ReorderPointResult{Message: "Product not found: " + args.SKU}, nil
	}

	sales, err := x.loadSales(ctx, st, args.SKU)
	if err != nil {
		return nil, err
	}
	if len(sales) == 0 {
		return ReorderPointResult{
			Message: fmt.Sprintf("No sales history found for %s. Using default reorder point.", args.SKU),
			Product: ProductSnapshot{
				SKU:                 product.SKU,
				Name:                product.Name,
				CurrentStock:        product.CurrentStock,
				CurrentReorderLevel: product.ReorderLevel,
			},
		}, nil
	}

	plan := computeReorder(product, sales, args.LeadTimeDays, args.SafetyStockMultiplier)

	return ReorderPointResult{
		Success: true,
		Message: "Reorder point calculated for " + product.Name,
		Product: ProductRef{
			SKU:      product.SKU,
			Name:     product.Name,
			Category: product.Category,
			Supplier: product.Supplier,
		},
		CurrentStatus: &StockStatus{
			CurrentStock:        product.CurrentStock,
			CurrentReorderLevel: product.ReorderLevel,
		},
		SalesAnalysis: &plan.analysis,
		Calculation: &ReorderCalculation{
			LeadTimeDays:            args.LeadTimeDays,
			SafetyStockMultiplier:   args.SafetyStockMultiplier,
			RecommendedReorderPoint: plan.recommendation.ReorderPoint,
			SafetyStock:             plan.safetyStock,
		},
		Recommendations: &plan.recommendation,
	}, nil
}

type reorderPlan struct {
	analysis       SalesAnalysis
	safetyStock    int
	recommendation ReorderRecommendation
}

// computeReorder derives the reorder point from the sales of one product.
// sales must be non-empty.
func computeReorder(p inventoryx.Product, sales []inventoryx.Sale, leadTimeDays int, multiplier float64) reorderPlan {
	first, last := sales[0].Timestamp, sales[0].Timestamp
	quantity := 0
	for _, s := range sales {
		quantity += s.Quantity
		if s.Timestamp.Before(first) {
			first = s.Timestamp
		}
		if s.Timestamp.After(last) {
			last = s.Timestamp
		}
	}
	days := int(last.Sub(first)/(24*time.Hour)) + 1

	avgDaily := float64(quantity) / float64(max(days, 1))
	leadDemand := avgDaily * float64(leadTimeDays)
	safety := leadDemand * (multiplier - 1)
	rop := int(leadDemand + safety)

	urgency, action := UrgencyLow, "Stock level is adequate"
	switch {
	case p.CurrentStock <= rop:
		urgency, action = UrgencyHigh, "Order immediately to avoid stockout"
	case float64(p.CurrentStock) <= float64(rop)*1.5:
		urgency, action = UrgencyMedium, "Consider ordering soon"
	}

	return reorderPlan{
		analysis: SalesAnalysis{
			TotalSales:        len(sales),
			TotalQuantitySold: quantity,
			DaysOfHistory:     days,
			AverageDailySales: round2(avgDaily),
		},
		safetyStock: int(safety),
		recommendation: ReorderRecommendation{
			ReorderPoint:      rop,
			OrderQuantity:     int(avgDaily * 30),
			DaysUntilStockout: int(float64(p.CurrentStock) / math.Max(avgDaily, 0.1)),
			Urgency:           urgency,
			Action:            action,
		},
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
