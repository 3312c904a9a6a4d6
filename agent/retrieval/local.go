package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	contractx "github.com/tanpawarit/chative-retail-assistant/agent/contract"
	inventoryx "github.com/tanpawarit/chative-retail-assistant/agent/inventory"
	logx "github.com/tanpawarit/chative-retail-assistant/pkg/logger"
)

const (
	DefaultTopK      = 5
	DefaultCacheSize = 256
	DefaultCacheTTL  = time.Hour

	scoreName     = 3
	scoreCategory = 2
	scoreDesc     = 1
	scoreLowStock = 5
)

type Config struct {
	CacheSize int           `envconfig:"CACHE_SIZE" default:"256"`
	CacheTTL  time.Duration `envconfig:"CACHE_TTL" default:"1h"`
}

// LocalRetriever ranks catalog records by keyword overlap with the query.
type LocalRetriever struct {
	source inventoryx.DataSource
	cache  *expirable.LRU[string, []inventoryx.Product]
}

var _ contractx.Retriever = (*LocalRetriever)(nil)

func NewLocalRetriever(source inventoryx.DataSource, cfg Config) (*LocalRetriever, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: data source is required", contractx.ErrValidation)
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &LocalRetriever{
		source: source,
		cache:  expirable.NewLRU[string, []inventoryx.Product](size, nil, ttl),
	}, nil
}

func (r *LocalRetriever) Retrieve(ctx context.Context, query string, topK int) ([]inventoryx.Product, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	normalized := strings.ToLower(strings.TrimSpace(query))
	key := fmt.Sprintf("%d|%s", topK, normalized)

	if hit, ok := r.cache.Get(key); ok {
		logx.Debug().Str("query", query).Int("count", len(hit)).Msg("retrieval cache hit")
		return append([]inventoryx.Product(nil), hit...), nil
	}

	products, err := r.source.LoadProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrRetrieval, err)
	}

	results := Rank(products, normalized, topK)
	r.cache.Add(key, results)
	logx.Info().Str("query", query).Int("count", len(results)).Msg("retrieved products")
	return append([]inventoryx.Product(nil), results...), nil
}

// Purge drops every cached query result.
func (r *LocalRetriever) Purge() {
	r.cache.Purge()
}

type scored struct {
	product inventoryx.Product
	score   int
}

// Rank returns up to topK products with a positive score, best first. Ties
// keep catalog order.
func Rank(products []inventoryx.Product, query string, topK int) []inventoryx.Product {
	query = strings.ToLower(query)
	terms := strings.Fields(query)
	wantsLowStock := strings.Contains(query, "low stock") || strings.Contains(query, "running low")

	ranked := make([]scored, 0, len(products))
	for _, p := range products {
		score := 0
		if anyTermIn(terms, p.Name) {
			score += scoreName
		}
		if anyTermIn(terms, p.Category) {
			score += scoreCategory
		}
		if anyTermIn(terms, p.Description) {
			score += scoreDesc
		}
		if wantsLowStock && p.IsLowStock() {
			score += scoreLowStock
		}
		if score > 0 {
			ranked = append(ranked, scored{product: p, score: score})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	out := make([]inventoryx.Product, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, s.product)
	}
	return out
}

func anyTermIn(terms []string, field string) bool {
	if field == "" {
		return false
	}
	field = strings.ToLower(field)
	for _, t := range terms {
		if strings.Contains(field, t) {
			return true
		}
	}
	return false
}
