package state

import (
	"time"

	inventoryx "github.com/tanpawarit/chative-retail-assistant/agent/inventory"
)

// CacheSource tags where cached data came from.
type CacheSource string

const (
	SourceRAG      CacheSource = "rag"
	SourceTool     CacheSource = "tool"
	SourceFullLoad CacheSource = "full_load"
)

const (
	DefaultLowStockThreshold    = 10
	DefaultMaxUnfilteredRecords = 50
)

// ProductFilter describes the scope a products cache entry was built for.
type ProductFilter struct {
	Query     string `json:"query,omitempty"`
	SKU       string `json:"sku,omitempty"`
	Category  string `json:"category,omitempty"`
	LowStock  bool   `json:"low_stock,omitempty"`
	Threshold int    `json:"threshold"`
}

type ProductsCache struct {
	Data          []inventoryx.Product `json:"data"`
	Source        CacheSource          `json:"source"`
	Timestamp     time.Time            `json:"timestamp"`
	FilterApplied ProductFilter        `json:"filter_applied"`
}

// SalesCache holds sales history; an empty SKUFilter means all skus.
type SalesCache struct {
	Data      []inventoryx.Sale `json:"data"`
	Source    CacheSource       `json:"source"`
	Timestamp time.Time         `json:"timestamp"`
	SKUFilter string            `json:"sku_filter,omitempty"`
}

// ProductQuery is the filter a tool wants to apply to product data.
// Threshold is compared as given; callers apply DefaultLowStockThreshold
// when the argument is absent.
type ProductQuery struct {
	SKU       string
	Category  string
	LowStock  bool
	Threshold int
}

// CachePolicy tunes reuse of unfiltered cache entries.
type CachePolicy struct {
	MaxUnfilteredRecords int
}

func (p CachePolicy) maxUnfiltered() int {
	if p.MaxUnfilteredRecords <= 0 {
		return DefaultMaxUnfilteredRecords
	}
	return p.MaxUnfilteredRecords
}

// ProductsFromContext returns cached products only when they are guaranteed
// to cover q. The products cache is tried first, then the raw products left
// by retrieval. A false result means the caller must load fresh data.
func ProductsFromContext(st *ConversationState, q ProductQuery, policy CachePolicy) ([]inventoryx.Product, bool) {
	if st == nil {
		return nil, false
	}
	if cache := st.Context.ProductsCache; cache != nil && covers(cache.Data, q, policy) {
		return cache.Data, true
	}
	if covers(st.Context.Products, q, policy) {
		return st.Context.Products, true
	}
	return nil, false
}

func covers(candidates []inventoryx.Product, q ProductQuery, policy CachePolicy) bool {
	if len(candidates) == 0 {
		return false
	}

	if q.SKU != "" {
		_, ok := inventoryx.FindBySKU(candidates, q.SKU)
		return ok
	}

	if q.Category != "" {
		for _, p := range candidates {
			if !p.InCategory(q.Category) {
				return false
			}
		}
		return true
	}

	if q.LowStock {
		for _, p := range candidates {
			if p.CurrentStock > q.Threshold {
				return false
			}
		}
		return true
	}

	return len(candidates) <= policy.maxUnfiltered()
}

// SalesFromContext returns cached sales only when the cache was built for
// exactly the requested sku filter.
func SalesFromContext(st *ConversationState, sku string) ([]inventoryx.Sale, bool) {
	if st == nil || st.Context.SalesCache == nil {
		return nil, false
	}
	cache := st.Context.SalesCache
	if cache.SKUFilter != sku {
		return nil, false
	}
	return cache.Data, true
}

// UpdateProductsCache overwrites the products cache entry.
func UpdateProductsCache(st *ConversationState, products []inventoryx.Product, source CacheSource, filter ProductFilter, now time.Time) {
	if st == nil {
		return
	}
	st.Context.ProductsCache = &ProductsCache{
		Data:          products,
		Source:        source,
		Timestamp:     now.UTC(),
		FilterApplied: filter,
	}
}

// UpdateSalesCache overwrites the sales cache entry.
func UpdateSalesCache(st *ConversationState, sales []inventoryx.Sale, source CacheSource, skuFilter string, now time.Time) {
	if st == nil {
		return
	}
	st.Context.SalesCache = &SalesCache{
		Data:      sales,
		Source:    source,
		Timestamp: now.UTC(),
		SKUFilter: skuFilter,
	}
}
