package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	ProductsFile       = "products.json"
	SalesFile          = "sales_history.json"
	PurchaseOrdersFile = "purchase_orders.json"
)

// DataSource loads the full product catalog and sales history.
type DataSource interface {
	LoadProducts(ctx context.Context) ([]Product, error)
	LoadSales(ctx context.Context) ([]Sale, error)
}

// JSONDataSource reads records from JSON files under Dir. A missing file is
// an empty data set, not an error.
type JSONDataSource struct {
	Dir string
}

func NewJSONDataSource(dir string) *JSONDataSource {
	return &JSONDataSource{Dir: dir}
}

func (s *JSONDataSource) LoadProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	if err := readJSONFile(ctx, filepath.Join(s.Dir, ProductsFile), &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *JSONDataSource) LoadSales(ctx context.Context) ([]Sale, error) {
	var sales []Sale
	if err := readJSONFile(ctx, filepath.Join(s.Dir, SalesFile), &sales); err != nil {
		return nil, err
	}
	return sales, nil
}

func readJSONFile(ctx context.Context, path string, dst any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// StaticSource serves fixed in-memory data.
type StaticSource struct {
	Products []Product
	Sales    []Sale
}

func (s StaticSource) LoadProducts(ctx context.Context) ([]Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]Product(nil), s.Products...), nil
}

func (s StaticSource) LoadSales(ctx context.Context) ([]Sale, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]Sale(nil), s.Sales...), nil
}
