package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	inventoryx "github.com/tanpawarit/chative-retail-assistant/agent/inventory"
	qstashx "github.com/tanpawarit/chative-retail-assistant/pkg/qstash"
)

// OrderRecorder persists or forwards a created purchase order.
type OrderRecorder interface {
	Record(ctx context.Context, po inventoryx.PurchaseOrder) error
}

type NopRecorder struct{}

func (NopRecorder) Record(context.Context, inventoryx.PurchaseOrder) error { return nil }

// FileOrderRecorder appends orders to a JSON array on disk.
type FileOrderRecorder struct {
	mu   sync.Mutex
	path string
}

func NewFileOrderRecorder(dir string) *FileOrderRecorder {
	return &FileOrderRecorder{path: filepath.Join(dir, inventoryx.PurchaseOrdersFile)}
}

func (r *FileOrderRecorder) Record(ctx context.Context, po inventoryx.PurchaseOrder) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	orders, err := r.readLocked()
	if err != nil {
		return err
	}
	orders = append(orders, po)

	payload, err := json.MarshalIndent(orders, "", "  ")
	if err != nil {
		return fmt.Errorf("encode purchase orders: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create purchase order dir: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write purchase orders: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace purchase orders: %w", err)
	}
	return nil
}

// Orders returns every recorded order.
func (r *FileOrderRecorder) Orders() ([]inventoryx.PurchaseOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readLocked()
}

func (r *FileOrderRecorder) readLocked() ([]inventoryx.PurchaseOrder, error) {
	raw, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read purchase orders: %w", err)
	}
	var orders []inventoryx.PurchaseOrder
	if len(raw) == 0 {
		return orders, nil
	}
	if err := json.Unmarshal(raw, &orders); err != nil {
		return nil, fmt.Errorf("decode purchase orders: %w", err)
	}
	return orders, nil
}

// Publisher is the subset of the QStash client used for order events.
type Publisher interface {
	PublishJSON(ctx context.Context, payload any, dedupID string) (qstashx.PublishResult, error)
}

// QueueOrderRecorder publishes each order so downstream procurement systems
// can pick it up. The PO id doubles as the deduplication id.
type QueueOrderRecorder struct {
	publisher Publisher
}

func NewQueueOrderRecorder(p Publisher) *QueueOrderRecorder {
	return &QueueOrderRecorder{publisher: p}
}

func (r *QueueOrderRecorder) Record(ctx context.Context, po inventoryx.PurchaseOrder) error {
	if r == nil || r.publisher == nil {
		return errors.New("queue order recorder: publisher is nil")
	}
	if _, err := r.publisher.PublishJSON(ctx, po, po.POID); err != nil {
		return fmt.Errorf("publish purchase order %s: %w", po.POID, err)
	}
	return nil
}

// MultiRecorder records to every recorder and reports all failures.
type MultiRecorder []OrderRecorder

func (m MultiRecorder) Record(ctx context.Context, po inventoryx.PurchaseOrder) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, po); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
