package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// OrderService records completed sales against a store's stock.
type OrderService interface {
	// CreateOrder prices the items, decrements the store's stock for every
	// non-excluded product and persists the order, all in one transaction.
	CreateOrder(ctx context.Context, req OrderRequest, actor Actor) (*CustomerOrder, error)

	// Queries
	GetOrder(ctx context.Context, orderID int64) (*CustomerOrder, error)
	SearchOrders(ctx context.Context, filter OrderFilter) ([]CustomerOrder, error)
	// OrderSummary aggregates all orders, or one store's orders when storeID is non-nil.
	OrderSummary(ctx context.Context, storeID *int64) (*OrderSummary, error)
}

type orderService struct {
	pool     *pgxpool.Pool
	ledger   StockLedger
	resolver *BundleResolver
}

func NewOrderService(pool *pgxpool.Pool, ledger StockLedger, resolver *BundleResolver) OrderService {
	return &orderService{pool: pool, ledger: ledger, resolver: resolver}
}

func (s *orderService) CreateOrder(ctx context.Context, req OrderRequest, actor Actor) (*CustomerOrder, error) {
	if len(req.Items) == 0 {
		return nil, invalidInput("order must have at least one item")
	}
	if req.Discount.IsNegative() {
		return nil, invalidInput("discount cannot be negative, got %s", req.Discount)
	}
	req.CustomerPhone = strings.TrimSpace(req.CustomerPhone)
	req.CustomerName = strings.TrimSpace(req.CustomerName)

	var orderID int64
	err := s.ledger.InTx(ctx, func(tx pgx.Tx) error {
		store, err := lockStoreShared(ctx, tx, req.StoreID)
		if err != nil {
			return err
		}

		gross := decimal.Zero
		var lines []ResolvedLine
		for i, item := range req.Items {
			resolved, err := s.resolver.Resolve(ctx, tx, item.SKU, item.Quantity, item.ExcludedSKUs)
			if err != nil {
				return fmt.Errorf("item %d: %w", i+1, err)
			}
			gross = gross.Add(ItemPrice(resolved, item.Quantity))
			lines = append(lines, resolved...)
		}

		totals := TotalsByProduct(lines)
		keys := make([]StockKey, len(totals))
		for i, t := range totals {
			keys[i] = StockKey{StoreID: store.ID, ProductID: t.Product.ID}
		}
		locked, err := s.ledger.LockTx(ctx, tx, keys)
		if err != nil {
			return err
		}
		for i, t := range totals {
			if _, err := locked.Adjust(ctx, keys[i], -t.Quantity); err != nil {
				return err
			}
		}

		var customerID *int64
		if req.CustomerPhone != "" {
			c, err := findOrCreateCustomer(ctx, tx, req.CustomerName, req.CustomerPhone)
			if err != nil {
				return err
			}
			customerID = &c.ID
		}

		total := ApplyDiscount(gross, req.Discount)
		err = tx.QueryRow(ctx, `
			INSERT INTO customer_orders (store_id, processed_by, customer_id, total_amount, discount, status)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, store.ID, actor.userRef(), customerID, total, req.Discount, OrderStatusCompleted).Scan(&orderID)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		for i, l := range lines {
			var bundleID *int64
			if l.Bundle != nil {
				bundleID = &l.Bundle.ID
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO order_lines (order_id, line_number, product_id, bundle_id, unit_price, is_exclusion, quantity)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, orderID, i+1, l.Product.ID, bundleID, lineUnitPrice(l), l.IsExcluded, l.Quantity); err != nil {
				return fmt.Errorf("failed to insert order line %d: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetOrder(ctx, orderID)
}

func findOrCreateCustomer(ctx context.Context, tx pgx.Tx, name, phone string) (*Customer, error) {
	if name == "" {
		name = phone
	}
	c := &Customer{}
	err := tx.QueryRow(ctx, `
		INSERT INTO customers (name, phone) VALUES ($1, $2)
		ON CONFLICT (phone) DO UPDATE SET phone = EXCLUDED.phone
		RETURNING id, name, phone, created_at
	`, name, phone).Scan(&c.ID, &c.Name, &c.Phone, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve customer %s: %w", phone, err)
	}
	return c, nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *orderService) GetOrder(ctx context.Context, orderID int64) (*CustomerOrder, error) {
	return getOrder(ctx, s.pool, orderID)
}

func (s *orderService) SearchOrders(ctx context.Context, filter OrderFilter) ([]CustomerOrder, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, orderHeaderSelect+`
		WHERE ($1::text = '' OR c.name ILIKE '%' || $1 || '%')
		  AND ($2::text = '' OR c.phone LIKE '%' || $2 || '%')
		  AND (COALESCE(cardinality($3::bigint[]), 0) = 0 OR o.store_id = ANY($3))
		  AND ($4::boolean IS NULL OR o.reconciled = $4)
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $5
	`, strings.TrimSpace(filter.CustomerName), strings.TrimSpace(filter.CustomerPhone),
		filter.StoreIDs, filter.Reconciled, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (CustomerOrder, error) {
		o, err := scanOrderHeader(row)
		if err != nil {
			return CustomerOrder{}, err
		}
		return *o, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]int64, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	byOrder, err := orderLines(ctx, s.pool, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Lines = byOrder[orders[i].ID]
	}
	return orders, nil
}

func (s *orderService) OrderSummary(ctx context.Context, storeID *int64) (*OrderSummary, error) {
	sum := &OrderSummary{}
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE reconciled),
		       COALESCE(SUM(total_amount), 0),
		       COALESCE(SUM(total_amount) FILTER (WHERE reconciled), 0)
		FROM customer_orders
		WHERE ($1::bigint IS NULL OR store_id = $1)
	`, storeID).Scan(&sum.TotalOrders, &sum.ReconciledOrders, &sum.TotalAmount, &sum.ReconciledAmount)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize orders: %w", err)
	}
	sum.UnreconciledOrders = sum.TotalOrders - sum.ReconciledOrders
	sum.UnreconciledAmount = sum.TotalAmount.Sub(sum.ReconciledAmount)
	return sum, nil
}

// ── Shared helpers ────────────────────────────────────────────────────────────

const orderHeaderSelect = `
		SELECT o.id, o.store_id, o.processed_by, o.total_amount, o.discount, o.status, o.reconciled, o.created_at,
		       c.id, c.name, c.phone
		FROM customer_orders o
		LEFT JOIN customers c ON c.id = o.customer_id`

func scanOrderHeader(row pgx.Row) (*CustomerOrder, error) {
	o := &CustomerOrder{}
	var customerID *int64
	var customerName, customerPhone *string
	if err := row.Scan(&o.ID, &o.StoreID, &o.ProcessedBy, &o.TotalAmount, &o.Discount, &o.Status, &o.Reconciled, &o.CreatedAt,
		&customerID, &customerName, &customerPhone); err != nil {
		return nil, err
	}
	if customerID != nil {
		o.Customer = &Customer{ID: *customerID, Name: *customerName, Phone: *customerPhone}
	}
	return o, nil
}

func getOrder(ctx context.Context, q Querier, orderID int64) (*CustomerOrder, error) {
	o, err := scanOrderHeader(q.QueryRow(ctx, orderHeaderSelect+`
		WHERE o.id = $1
	`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("order id=%d: %w", orderID, ErrOrderNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %d: %w", orderID, err)
	}

	byOrder, err := orderLines(ctx, q, []int64{orderID})
	if err != nil {
		return nil, err
	}
	o.Lines = byOrder[orderID]
	return o, nil
}

// orderLines loads the lines of the given orders, keyed by order id.
func orderLines(ctx context.Context, q Querier, orderIDs []int64) (map[int64][]OrderLine, error) {
	rows, err := q.Query(ctx, `
		SELECT ol.order_id, ol.id, ol.line_number, p.id, p.sku, p.name,
		       ol.bundle_id, b.sku, ol.unit_price, ol.is_exclusion, ol.quantity
		FROM order_lines ol
		JOIN products p ON p.id = ol.product_id
		LEFT JOIN bundles b ON b.id = ol.bundle_id
		WHERE ol.order_id = ANY($1)
		ORDER BY ol.order_id, ol.line_number
	`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query order lines: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]OrderLine, len(orderIDs))
	for rows.Next() {
		var orderID int64
		var l OrderLine
		if err := rows.Scan(&orderID, &l.ID, &l.LineNumber, &l.ProductID, &l.SKU, &l.ProductName,
			&l.BundleID, &l.BundleSKU, &l.UnitPrice, &l.IsExclusion, &l.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		out[orderID] = append(out[orderID], l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order lines: %w", err)
	}
	return out, nil
}
