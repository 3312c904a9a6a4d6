package tool

import (
	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/chative-retail-assistant/agent/contract"
	"github.com/tanpawarit/chative-retail-assistant/agent/llm"
)

const (
	ToolQueryInventory        = "query_inventory"
	ToolCalculateReorderPoint = "calculate_reorder_point"
	ToolCreatePurchaseOrder   = "create_purchase_order"
)

func floatPtr(v float64) *float64 { return &v }

// Schemas returns the built-in inventory tools in a fixed order.
func Schemas() []contractx.ToolSchema {
	return []contractx.ToolSchema{
		{
			Name:        ToolQueryInventory,
			Description: "Query current inventory levels for products. Can filter by SKU, category, or low stock status.",
			Params: []contractx.ToolParam{
				{Name: "sku", Type: contractx.ParamString, Description: "Product SKU to query specific product"},
				{Name: "category", Type: contractx.ParamString, Description: "Filter by product category"},
				{Name: "low_stock", Type: contractx.ParamBoolean, Description: "If true, return only low stock items"},
				{Name: "threshold", Type: contractx.ParamInteger, Description: "Stock threshold for low stock filter", Default: 10, Minimum: floatPtr(0)},
			},
		},
		{
			Name:        ToolCalculateReorderPoint,
			Description: "Calculate optimal reorder point for a product based on historical sales data and lead time.",
			Params: []contractx.ToolParam{
				{Name: "sku", Type: contractx.ParamString, Description: "Product SKU", Required: true},
				{Name: "lead_time_days", Type: contractx.ParamInteger, Description: "Supplier lead time in days", Default: 7, Minimum: floatPtr(0)},
				{Name: "safety_stock_multiplier", Type: contractx.ParamNumber, Description: "Safety stock multiplier (e.g., 1.5 for 50% buffer)", Default: 1.5, Minimum: floatPtr(0)},
			},
		},
		{
			Name:        ToolCreatePurchaseOrder,
			Description: "Create a purchase order for restocking inventory.",
			Params: []contractx.ToolParam{
				{Name: "sku", Type: contractx.ParamString, Description: "Product SKU to order", Required: true},
				{Name: "quantity", Type: contractx.ParamInteger, Description: "Quantity to order", Required: true},
				{Name: "expected_delivery_date", Type: contractx.ParamString, Description: "Expected delivery date in ISO format (YYYY-MM-DD)"},
			},
		},
	}
}

// ToolInfos renders the built-in schemas for eino chat models.
func ToolInfos() []*schema.ToolInfo {
	return llm.ToolInfos(Schemas())
}
