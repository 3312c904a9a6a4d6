package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	contractx "github.com/tanpawarit/chative-retail-assistant/agent/contract"
	inventoryx "github.com/tanpawarit/chative-retail-assistant/agent/inventory"
	statex "github.com/tanpawarit/chative-retail-assistant/agent/state"
	logx "github.com/tanpawarit/chative-retail-assistant/pkg/logger"
)

// Handler runs one tool. args have already passed schema validation. The
// returned value is encoded to a JSON object and must carry "success".
type Handler func(ctx context.Context, args map[string]any, st *statex.ConversationState) (any, error)

type registeredTool struct {
	schema    contractx.ToolSchema
	validator *gojsonschema.Schema
	handler   Handler
}

type Dependencies struct {
	Source      inventoryx.DataSource
	Recorder    OrderRecorder
	CachePolicy statex.CachePolicy
	Now         func() time.Time
	NewID       func() string
}

// Executor dispatches tool calls by name and implements contract.ToolExecutor.
type Executor struct {
	mu    sync.RWMutex
	tools map[string]registeredTool

	source   inventoryx.DataSource
	recorder OrderRecorder
	policy   statex.CachePolicy
	now      func() time.Time
	newID    func() string
}

var _ contractx.ToolExecutor = (*Executor)(nil)

// NewExecutor registers the built-in inventory tools.
func NewExecutor(deps Dependencies) (*Executor, error) {
	if deps.Source == nil {
		return nil, errors.New("tool executor: data source is required")
	}
	if deps.Recorder == nil {
		deps.Recorder = NopRecorder{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}

	x := &Executor{
		tools:    make(map[string]registeredTool),
		source:   deps.Source,
		recorder: deps.Recorder,
		policy:   deps.CachePolicy,
		now:      deps.Now,
		newID:    deps.NewID,
	}

	handlers := map[string]Handler{
		ToolQueryInventory:        x.queryInventory,
		ToolCalculateReorderPoint: x.calculateReorderPoint,
		ToolCreatePurchaseOrder:   x.createPurchaseOrder,
	}
	for _, s := range Schemas() {
		if err := x.Register(s, handlers[s.Name]); err != nil {
			return nil, err
		}
	}
	return x, nil
}

// Register adds or replaces a tool.
func (x *Executor) Register(s contractx.ToolSchema, h Handler) error {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return fmt.Errorf("%w: tool name is required", contractx.ErrValidation)
	}
	if h == nil {
		return fmt.Errorf("%w: tool=%s has no handler", contractx.ErrValidation, name)
	}
	validator, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(s.JSONSchema()))
	if err != nil {
		return fmt.Errorf("compile schema for tool=%s: %w", name, err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.tools[name] = registeredTool{schema: s, validator: validator, handler: h}
	return nil
}

func (x *Executor) Schemas() []contractx.ToolSchema {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make([]contractx.ToolSchema, 0, len(x.tools))
	for _, t := range x.tools {
		out = append(out, t.schema)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (x *Executor) Execute(ctx context.Context, name string, args map[string]any, st *statex.ConversationState) map[string]any {
	name = strings.TrimSpace(name)
	if name == "" {
		logx.Error().Msg("tool name is empty")
		return failure("Tool name is required")
	}

	x.mu.RLock()
	t, ok := x.tools[name]
	x.mu.RUnlock()
	if !ok {
		logx.Error().Str("tool", name).Msg("unknown tool")
		return failure("Unknown tool: " + name)
	}

	if args == nil {
		args = map[string]any{}
	}
	if err := validateArgs(t.validator, args); err != nil {
		logx.Warn().Str("tool", name).Err(err).Msg("tool arguments rejected")
		return failure(fmt.Sprintf("Invalid arguments for %s: %v", name, err))
	}

	out, err := t.handler(ctx, args, st)
	if err != nil {
		logx.Error().Str("tool", name).Err(err).Msg("tool execution failed")
		return failure("Error executing tool: " + err.Error())
	}

	result, err := toMap(out)
	if err != nil {
		logx.Error().Str("tool", name).Err(err).Msg("tool result encoding failed")
		return failure("Error executing tool: " + err.Error())
	}
	if _, ok := result["success"].(bool); !ok {
		result["success"] = false
	}
	logx.Info().Str("tool", name).Bool("success", result["success"].(bool)).Msg("tool executed")
	return result
}

func validateArgs(validator *gojsonschema.Schema, args map[string]any) error {
	res, err := validator.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return err
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", contractx.ErrToolArguments, strings.Join(msgs, "; "))
}

// decodeArgs copies validated args onto dst, which carries the defaults.
func decodeArgs(args map[string]any, dst any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", contractx.ErrToolArguments, err)
	}
	return nil
}

func toMap(v any) (map[string]any, error) {
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func failure(message string) map[string]any {
	return map[string]any{"success": false, "message": message}
}

// loadProducts serves q from the context cache when it is guaranteed to
// cover it and falls back to the data source otherwise.
func (x *Executor) loadProducts(ctx context.Context, st *statex.ConversationState, q statex.ProductQuery, filter statex.ProductFilter) ([]inventoryx.Product, error) {
	if cached, ok := statex.ProductsFromContext(st, q, x.policy); ok {
		logx.Debug().Int("count", len(cached)).Msg("products served from context cache")
		return cached, nil
	}

	products, err := x.source.LoadProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	if st != nil && len(products) > 0 {
		statex.UpdateProductsCache(st, products, statex.SourceFullLoad, filter, x.now())
	}
	return products, nil
}

func (x *Executor) loadSales(ctx context.Context, st *statex.ConversationState, sku string) ([]inventoryx.Sale, error) {
	if cached, ok := statex.SalesFromContext(st, sku); ok {
		logx.Debug().Str("sku", sku).Int("count", len(cached)).Msg("sales served from context cache")
		return inventoryx.SalesForSKU(cached, sku), nil
	}

	all, err := x.source.LoadSales(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sales: %w", err)
	}
	sales := inventoryx.SalesForSKU(all, sku)
	if st != nil && len(sales) > 0 {
		statex.UpdateSalesCache(st, sales, statex.SourceFullLoad, sku, x.now())
	}
	return sales, nil
}
