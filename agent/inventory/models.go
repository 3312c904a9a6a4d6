package inventory

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Product is a catalog record.
type Product struct {
	SKU          string  `json:"sku"`
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	Price        float64 `json:"price"`
	CurrentStock int     `json:"current_stock"`
	ReorderLevel int     `json:"reorder_level"`
	Supplier     string  `json:"supplier"`
	Description  string  `json:"description,omitempty"`
	ImageURL     string  `json:"image_url,omitempty"`
}

// IsLowStock reports whether stock has reached the product's reorder level.
func (p Product) IsLowStock() bool {
	return p.CurrentStock <= p.ReorderLevel
}

func (p Product) InCategory(category string) bool {
	return strings.EqualFold(strings.TrimSpace(p.Category), strings.TrimSpace(category))
}

type Channel string

const (
	ChannelRetail    Channel = "retail"
	ChannelOnline    Channel = "online"
	ChannelWholesale Channel = "wholesale"
)

// Sale is one line of sales history.
type Sale struct {
	SaleID    string    `json:"sale_id"`
	SKU       string    `json:"sku"`
	Quantity  int       `json:"quantity"`
	SalePrice float64   `json:"sale_price"`
	Timestamp time.Time `json:"timestamp"`
	Channel   Channel   `json:"channel"`
}

// timestampLayouts are accepted when decoding sales history; exports from
// other tools often omit the zone.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (s *Sale) UnmarshalJSON(data []byte) error {
	type alias Sale
	aux := struct {
		*alias
		Timestamp string `json:"timestamp"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Timestamp == "" {
		s.Timestamp = time.Time{}
		return nil
	}
	ts, err := ParseTimestamp(aux.Timestamp)
	if err != nil {
		return err
	}
	s.Timestamp = ts
	return nil
}

// ParseTimestamp parses an ISO-8601 timestamp, treating zone-less values as UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", raw)
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderApproved  OrderStatus = "approved"
	OrderShipped   OrderStatus = "shipped"
	OrderReceived  OrderStatus = "received"
	OrderCancelled OrderStatus = "cancelled"
)

type PurchaseOrder struct {
	POID             string      `json:"po_id"`
	SKU              string      `json:"sku"`
	Quantity         int         `json:"quantity"`
	Supplier         string      `json:"supplier"`
	OrderDate        time.Time   `json:"order_date"`
	ExpectedDelivery time.Time   `json:"expected_delivery"`
	Status           OrderStatus `json:"status"`
}

// FindBySKU returns the first product with the given sku.
func FindBySKU(products []Product, sku string) (Product, bool) {
	for _, p := range products {
		if p.SKU == sku {
			return p, true
		}
	}
	return Product{}, false
}

// SalesForSKU returns the subset of sales recorded against sku.
func SalesForSKU(sales []Sale, sku string) []Sale {
	out := make([]Sale, 0, len(sales))
	for _, s := range sales {
		if s.SKU == sku {
			out = append(out, s)
		}
	}
	return out
}
