package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Catalog resolves active product and bundle definitions by SKU. Lookups take
// a Querier so they read through the caller's transaction.
type Catalog interface {
	FindProductBySKU(ctx context.Context, q Querier, sku string) (*Product, error)
	FindBundleBySKU(ctx context.Context, q Querier, sku string) (*Bundle, error)
}

// CatalogService is the Postgres-backed Catalog plus the maintenance
// operations used by seeding and the admin API.
type CatalogService interface {
	Catalog

	CreateProduct(ctx context.Context, in ProductInput) (*Product, error)
	CreateBundle(ctx context.Context, in BundleInput) (*Bundle, error)
	ListProducts(ctx context.Context) ([]Product, error)
	ListBundles(ctx context.Context) ([]Bundle, error)
	// DeactivateProduct soft-deletes a product. Stock rows and history are kept.
	DeactivateProduct(ctx context.Context, sku string) error
}

// ProductInput is used when creating a catalog product.
type ProductInput struct {
	SKU        string
	Type       ProductType
	Name       string
	BasePrice  decimal.Decimal
	Attributes ProductAttributes
}

// BundleInput is used when creating a bundle. Items reference product SKUs.
type BundleInput struct {
	SKU         string
	Name        string
	Description string
	Price       decimal.Decimal
	Items       []ItemRequest
}

type catalogService struct {
	pool *pgxpool.Pool
}

func NewCatalogService(pool *pgxpool.Pool) CatalogService {
	return &catalogService{pool: pool}
}

func (s *catalogService) FindProductBySKU(ctx context.Context, q Querier, sku string) (*Product, error) {
	return findProductBySKU(ctx, q, sku)
}

func (s *catalogService) FindBundleBySKU(ctx context.Context, q Querier, sku string) (*Bundle, error) {
	b := &Bundle{}
	err := q.QueryRow(ctx, `
		SELECT id, sku, name, description, price, is_active, created_at
		FROM bundles
		WHERE sku = $1 AND is_active = true
	`, sku).Scan(&b.ID, &b.SKU, &b.Name, &b.Description, &b.Price, &b.IsActive, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &SkuNotFoundError{SKU: sku}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load bundle %s: %w", sku, err)
	}

	items, err := bundleItems(ctx, q, b.ID)
	if err != nil {
		return nil, err
	}
	b.Items = items
	if component, ok := b.InactiveComponent(); ok {
		return nil, fmt.Errorf("bundle %s: component %s is inactive: %w", sku, component, &SkuNotFoundError{SKU: sku})
	}
	return b, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, in ProductInput) (*Product, error) {
	in.SKU = strings.TrimSpace(in.SKU)
	in.Name = strings.TrimSpace(in.Name)
	if in.SKU == "" || in.Name == "" {
		return nil, invalidInput("product sku and name are required")
	}
	if !validProductType(in.Type) {
		return nil, invalidInput("unknown product type %q", in.Type)
	}
	if in.BasePrice.IsNegative() {
		return nil, invalidInput("base price cannot be negative, got %s", in.BasePrice)
	}
	if !in.Attributes.IsZero() && in.Attributes.Type() != in.Type {
		return nil, invalidInput("attributes of type %s do not match product type %s", in.Attributes.Type(), in.Type)
	}

	var attrs *string
	if !in.Attributes.IsZero() {
		raw, err := json.Marshal(in.Attributes)
		if err != nil {
			return nil, fmt.Errorf("failed to encode attributes: %w", err)
		}
		str := string(raw)
		attrs = &str
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := ensureSKUFree(ctx, tx, "bundles", in.SKU); err != nil {
		return nil, err
	}

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO products (sku, type, name, base_price, attributes)
		VALUES ($1, $2, $3, $4, $5::jsonb)
		RETURNING id
	`, in.SKU, in.Type, in.Name, in.BasePrice, attrs).Scan(&id)
	if err != nil {
		if isPgCode(err, pgUniqueViolation) {
			return nil, invalidInput("sku %s already exists", in.SKU)
		}
		return nil, fmt.Errorf("failed to insert product: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit product creation: %w", err)
	}
	return findProductBySKU(ctx, s.pool, in.SKU)
}

func (s *catalogService) CreateBundle(ctx context.Context, in BundleInput) (*Bundle, error) {
	in.SKU = strings.TrimSpace(in.SKU)
	in.Name = strings.TrimSpace(in.Name)
	if in.SKU == "" || in.Name == "" {
		return nil, invalidInput("bundle sku and name are required")
	}
	if in.Price.IsNegative() {
		return nil, invalidInput("bundle price cannot be negative, got %s", in.Price)
	}
	if len(in.Items) == 0 {
		return nil, invalidInput("bundle %s must have at least one item", in.SKU)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := ensureSKUFree(ctx, tx, "products", in.SKU); err != nil {
		return nil, err
	}

	var bundleID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO bundles (sku, name, description, price)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, in.SKU, in.Name, in.Description, in.Price).Scan(&bundleID)
	if err != nil {
		if isPgCode(err, pgUniqueViolation) {
			return nil, invalidInput("sku %s already exists", in.SKU)
		}
		return nil, fmt.Errorf("failed to insert bundle: %w", err)
	}

	seen := make(map[int64]bool, len(in.Items))
	for i, item := range in.Items {
		if item.Quantity < 1 {
			return nil, invalidInput("bundle item %d: quantity must be at least 1", i+1)
		}
		product, err := findProductBySKU(ctx, tx, item.SKU)
		if err != nil {
			return nil, fmt.Errorf("bundle item %d: %w", i+1, err)
		}
		if seen[product.ID] {
			return nil, invalidInput("bundle item %d: product %s listed twice", i+1, product.SKU)
		}
		seen[product.ID] = true

		if _, err := tx.Exec(ctx, `
			INSERT INTO bundle_items (bundle_id, product_id, quantity, line_number)
			VALUES ($1, $2, $3, $4)
		`, bundleID, product.ID, item.Quantity, i+1); err != nil {
			return nil, fmt.Errorf("failed to insert bundle item %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit bundle creation: %w", err)
	}
	return s.FindBundleBySKU(ctx, s.pool, in.SKU)
}

func (s *catalogService) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+productColumns+" FROM products WHERE is_active = true ORDER BY sku")
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *catalogService) ListBundles(ctx context.Context) ([]Bundle, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, sku, name, description, price, is_active, created_at
		FROM bundles
		WHERE is_active = true
		ORDER BY sku
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query bundles: %w", err)
	}

	var bundles []Bundle
	for rows.Next() {
		var b Bundle
		if err := rows.Scan(&b.ID, &b.SKU, &b.Name, &b.Description, &b.Price, &b.IsActive, &b.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan bundle: %w", err)
		}
		bundles = append(bundles, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bundles: %w", err)
	}

	for i := range bundles {
		items, err := bundleItems(ctx, s.pool, bundles[i].ID)
		if err != nil {
			return nil, err
		}
		bundles[i].Items = items
	}
	return bundles, nil
}

func (s *catalogService) DeactivateProduct(ctx context.Context, sku string) error {
	tag, err := s.pool.Exec(ctx, "UPDATE products SET is_active = false WHERE sku = $1", sku)
	if err != nil {
		return fmt.Errorf("failed to deactivate product %s: %w", sku, err)
	}
	if tag.RowsAffected() == 0 {
		return &SkuNotFoundError{SKU: sku}
	}
	return nil
}

// ── Shared helpers ────────────────────────────────────────────────────────────

const productColumns = "id, sku, type, name, base_price, attributes, is_active, created_at"

func scanProduct(row pgx.Row) (*Product, error) {
	p := &Product{}
	var attrs []byte
	if err := row.Scan(&p.ID, &p.SKU, &p.Type, &p.Name, &p.BasePrice, &attrs, &p.IsActive, &p.CreatedAt); err != nil {
		return nil, err
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &p.Attributes); err != nil {
			return nil, fmt.Errorf("product %s: %w", p.SKU, err)
		}
	}
	return p, nil
}

func findProductBySKU(ctx context.Context, q Querier, sku string) (*Product, error) {
	p, err := scanProduct(q.QueryRow(ctx,
		"SELECT "+productColumns+" FROM products WHERE sku = $1 AND is_active = true", sku))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &SkuNotFoundError{SKU: sku}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product %s: %w", sku, err)
	}
	return p, nil
}

func bundleItems(ctx context.Context, q Querier, bundleID int64) ([]BundleItem, error) {
	rows, err := q.Query(ctx, `
		SELECT bi.line_number, bi.quantity,
		       p.id, p.sku, p.type, p.name, p.base_price, p.attributes, p.is_active, p.created_at
		FROM bundle_items bi
		JOIN products p ON p.id = bi.product_id
		WHERE bi.bundle_id = $1
		ORDER BY bi.line_number
	`, bundleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bundle items: %w", err)
	}
	defer rows.Close()

	var items []BundleItem
	for rows.Next() {
		var it BundleItem
		var attrs []byte
		p := &it.Product
		if err := rows.Scan(&it.LineNumber, &it.Quantity,
			&p.ID, &p.SKU, &p.Type, &p.Name, &p.BasePrice, &attrs, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bundle item: %w", err)
		}
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &p.Attributes); err != nil {
				return nil, fmt.Errorf("product %s: %w", p.SKU, err)
			}
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ensureSKUFree rejects a SKU already used in the other catalog table.
func ensureSKUFree(ctx context.Context, q Querier, table, sku string) error {
	var taken bool
	if err := q.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM "+table+" WHERE sku = $1)", sku).Scan(&taken); err != nil {
		return fmt.Errorf("failed to check sku %s: %w", sku, err)
	}
	if taken {
		return invalidInput("sku %s already exists", sku)
	}
	return nil
}
