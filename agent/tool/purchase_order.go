package tool

import (
	"context"
	"strings"
	"time"

	inventoryx "github.com/tanpawarit/chative-retail-assistant/agent/inventory"
	statex "github.com/tanpawarit/chative-retail-assistant/agent/state"
	logx "github.com/tanpawarit/chative-retail-assistant/pkg/logger"
)

const (
	defaultDeliveryLead = 7 * 24 * time.Hour
	unitCostRatio       = 0.6
)

type purchaseOrderArgs struct {
	SKU                  string `json:"sku"`
	Quantity             int    `json:"quantity"`
	ExpectedDeliveryDate string `json:"expected_delivery_date"`
}

type PurchaseOrderInfo struct {
	POID             string                 `json:"po_id"`
	Status           inventoryx.OrderStatus `json:"status"`
	OrderDate        string                 `json:"order_date"`
	ExpectedDelivery string                 `json:"expected_delivery"`
}

type OrderDetails struct {
	Quantity  int     `json:"quantity"`
	UnitCost  float64 `json:"unit_cost"`
	TotalCost float64 `json:"total_cost"`
}

type InventoryImpact struct {
	CurrentStock        int    `json:"current_stock"`
	StockAfterDelivery  int    `json:"stock_after_delivery"`
	ReorderLevel        int    `json:"reorder_level"`
	StatusAfterDelivery string `json:"status_after_delivery"`
}

type PurchaseOrderResult struct {
	Success         bool               `json:"success"`
	Message         string             `json:"message"`
	PurchaseOrder   *PurchaseOrderInfo `json:"purchase_order,omitempty"`
	Product         *ProductRef        `json:"product,omitempty"`
	OrderDetails    *OrderDetails      `json:"order_details,omitempty"`
	InventoryImpact *InventoryImpact   `json:"inventory_impact,omitempty"`
	NextSteps       []string           `json:"next_steps,omitempty"`
	Saved           bool               `json:"saved"`
}

func (x *Executor) createPurchaseOrder(ctx context.Context, raw map[string]any, st *statex.ConversationState) (any, error) {
	var args purchaseOrderArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}

	products, err := x.loadProducts(ctx, st, statex.ProductQuery{SKU: args.SKU}, statex.ProductFilter{SKU: args.SKU})
	if err != nil {
		return nil, err
	}
	product, ok := inventoryx.FindBySKU(products, args.SKU)
	if !ok {
		return PurchaseOrderResult{Message: "Product not found: " + args.SKU}, nil
	}
	if args.Quantity <= 0 {
		return PurchaseOrderResult{Message: "Quantity must be positive"}, nil
	}

	orderDate := x.now().UTC()
	delivery := orderDate.Add(defaultDeliveryLead)
	if requested := strings.TrimSpace(args.ExpectedDeliveryDate); requested != "" {
		if parsed, err := inventoryx.ParseTimestamp(requested); err == nil {
			delivery = parsed
		} else {
			logx.Warn().Str("expected_delivery_date", requested).Msg("invalid delivery date, using default lead time")
		}
	}

	po := inventoryx.PurchaseOrder{
		POID:             purchaseOrderID(orderDate, x.newID()),
		SKU:              product.SKU,
		Quantity:         args.Quantity,
		Supplier:         product.Supplier,
		OrderDate:        orderDate,
		ExpectedDelivery: delivery,
		Status:           inventoryx.OrderPending,
	}

	saved := true
	if err := x.recorder.Record(ctx, po); err != nil {
		saved = false
		logx.Error().Err(err).Str("po_id", po.POID).Msg("failed to record purchase order")
	}

	unitCost := product.Price * unitCostRatio
	afterDelivery := product.CurrentStock + args.Quantity
	statusAfter := "LOW"
	if afterDelivery > product.ReorderLevel {
		statusAfter = StatusOK
	}

	return PurchaseOrderResult{
		Success: true,
		Message: "Purchase order created successfully",
		PurchaseOrder: &PurchaseOrderInfo{
			POID:             po.POID,
			Status:           po.Status,
			OrderDate:        po.OrderDate.Format(time.RFC3339),
			ExpectedDelivery: po.ExpectedDelivery.Format(time.RFC3339),
		},
		Product: &ProductRef{
			SKU:      product.SKU,
			Name:     product.Name,
			Category: product.Category,
			Supplier: product.Supplier,
		},
		OrderDetails: &OrderDetails{
			Quantity:  args.Quantity,
			UnitCost:  round2(unitCost),
			TotalCost: round2(unitCost * float64(args.Quantity)),
		},
		InventoryImpact: &InventoryImpact{
			CurrentStock:        product.CurrentStock,
			StockAfterDelivery:  afterDelivery,
			ReorderLevel:        product.ReorderLevel,
			StatusAfterDelivery: statusAfter,
		},
		NextSteps: []string{
			"PO submitted to supplier for approval",
			"Expected delivery: " + po.ExpectedDelivery.Format("2006-01-02"),
			"You will receive notification when order is shipped",
		},
		Saved: saved,
	}, nil
}

// purchaseOrderID formats PO-YYYYMMDD-<first 8 chars of id>.
func purchaseOrderID(at time.Time, id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return "PO-" + at.Format("20060102") + "-" + id
}
