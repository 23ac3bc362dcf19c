package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StockLedger is the authoritative record of per-(store, product) quantities.
// Quantities never go negative; every transfer is appended to inventory_transfers.
type StockLedger interface {
	// Standalone operations (manage their own transactions).

	// GetQuantity returns the current quantity without locking. Absent rows read as 0.
	GetQuantity(ctx context.Context, storeID, productID int64) (int, error)
	// Adjust applies delta to one row and returns the new quantity.
	Adjust(ctx context.Context, storeID, productID int64, delta int) (int, error)
	// Transfer moves qty units of a product between two stores.
	Transfer(ctx context.Context, fromStoreID, toStoreID, productID int64, qty int, actor Actor) error
	// Restock adds qty units of a product to the master store.
	Restock(ctx context.Context, sku string, qty int, actor Actor) (*StockLevel, error)

	ListStoreStock(ctx context.Context, storeID int64, query string) ([]StockLevel, error)
	// InventoryView lists master stock for every active product, including products with none.
	InventoryView(ctx context.Context) ([]StockLevel, error)
	ListTransfers(ctx context.Context, filter TransferFilter) ([]InventoryTransfer, error)
	Audit(ctx context.Context, productID int64) (*StockAudit, error)

	// TX-scoped operations: work within a caller-provided transaction.

	// InTx runs fn in a transaction with a bounded lock wait.
	InTx(ctx context.Context, fn func(tx pgx.Tx) error) error
	// LockTx exclusively locks the rows for keys in lock order, creating missing rows at 0.
	LockTx(ctx context.Context, tx pgx.Tx, keys []StockKey) (*LockedStock, error)
}

type stockLedger struct {
	pool *pgxpool.Pool
	tx   txRunner
}

// NewStockLedger constructs a StockLedger. lockTimeout <= 0 selects DefaultLockTimeout.
func NewStockLedger(pool *pgxpool.Pool, lockTimeout time.Duration) StockLedger {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &stockLedger{pool: pool, tx: txRunner{pool: pool, lockTimeout: lockTimeout}}
}

// ── Standalone operations ─────────────────────────────────────────────────────

func (s *stockLedger) GetQuantity(ctx context.Context, storeID, productID int64) (int, error) {
	var qty int
	err := s.pool.QueryRow(ctx,
		"SELECT quantity FROM stock_levels WHERE store_id = $1 AND product_id = $2",
		storeID, productID,
	).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read stock level: %w", err)
	}
	return qty, nil
}

func (s *stockLedger) Adjust(ctx context.Context, storeID, productID int64, delta int) (int, error) {
	var after int
	err := s.InTx(ctx, func(tx pgx.Tx) error {
		key := StockKey{StoreID: storeID, ProductID: productID}
		locked, err := s.LockTx(ctx, tx, []StockKey{key})
		if err != nil {
			return err
		}
		after, err = locked.Adjust(ctx, key, delta)
		return err
	})
	if err != nil {
		return 0, err
	}
	return after, nil
}

func (s *stockLedger) Transfer(ctx context.Context, fromStoreID, toStoreID, productID int64, qty int, actor Actor) error {
	return s.InTx(ctx, func(tx pgx.Tx) error {
		locked, err := s.LockTx(ctx, tx, []StockKey{
			{StoreID: fromStoreID, ProductID: productID},
			{StoreID: toStoreID, ProductID: productID},
		})
		if err != nil {
			return err
		}
		_, err = locked.Transfer(ctx, fromStoreID, toStoreID, productID, qty, actor)
		return err
	})
}

func (s *stockLedger) Restock(ctx context.Context, sku string, qty int, actor Actor) (*StockLevel, error) {
	if qty < 1 {
		return nil, invalidInput("restock quantity must be positive, got %d", qty)
	}

	var level *StockLevel
	err := s.InTx(ctx, func(tx pgx.Tx) error {
		master, err := masterStore(ctx, tx)
		if err != nil {
			return err
		}
		product, err := findProductBySKU(ctx, tx, sku)
		if err != nil {
			return err
		}

		key := StockKey{StoreID: master.ID, ProductID: product.ID}
		locked, err := s.LockTx(ctx, tx, []StockKey{key})
		if err != nil {
			return err
		}
		after, err := locked.Adjust(ctx, key, qty)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO inventory_transfers (from_store_id, to_store_id, product_id, quantity, transferred_by)
			VALUES (NULL, $1, $2, $3, $4)
		`, master.ID, product.ID, qty, actor.userRef()); err != nil {
			return fmt.Errorf("failed to record restock of %s: %w", sku, err)
		}

		level = &StockLevel{
			StoreID:     master.ID,
			ProductID:   product.ID,
			SKU:         product.SKU,
			ProductName: product.Name,
			ProductType: product.Type,
			BasePrice:   product.BasePrice,
			Quantity:    after,
			UpdatedAt:   time.Now(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return level, nil
}

const stockLevelColumns = `
	sl.store_id, p.id, p.sku, p.name, p.type, p.base_price, sl.quantity, sl.updated_at`

func scanStockLevels(rows pgx.Rows) ([]StockLevel, error) {
	defer rows.Close()
	var levels []StockLevel
	for rows.Next() {
		var sl StockLevel
		if err := rows.Scan(&sl.StoreID, &sl.ProductID, &sl.SKU, &sl.ProductName, &sl.ProductType,
			&sl.BasePrice, &sl.Quantity, &sl.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock level: %w", err)
		}
		levels = append(levels, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stock levels: %w", err)
	}
	return levels, nil
}

// ListStoreStock returns positive stock rows for a store. A non-empty query
// matches product name, SKU or any attribute value, case-insensitively.
func (s *stockLedger) ListStoreStock(ctx context.Context, storeID int64, query string) ([]StockLevel, error) {
	if _, err := getStore(ctx, s.pool, storeID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT`+stockLevelColumns+`
		FROM stock_levels sl
		JOIN products p ON p.id = sl.product_id
		WHERE sl.store_id = $1
		  AND sl.quantity > 0
		  AND ($2::text = '' OR p.name ILIKE '%' || $2 || '%'
		               OR p.sku ILIKE '%' || $2 || '%'
		               OR COALESCE(p.attributes::text, '') ILIKE '%' || $2 || '%')
		ORDER BY p.name, p.sku
	`, storeID, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query store stock: %w", err)
	}
	return scanStockLevels(rows)
}

func (s *stockLedger) InventoryView(ctx context.Context) ([]StockLevel, error) {
	master, err := masterStore(ctx, s.pool)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT $1::bigint, p.id, p.sku, p.name, p.type, p.base_price,
		       COALESCE(sl.quantity, 0), COALESCE(sl.updated_at, p.created_at)
		FROM products p
		LEFT JOIN stock_levels sl ON sl.product_id = p.id AND sl.store_id = $1
		WHERE p.is_active = true
		ORDER BY p.sku
	`, master.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query inventory view: %w", err)
	}
	return scanStockLevels(rows)
}

func (s *stockLedger) ListTransfers(ctx context.Context, filter TransferFilter) ([]InventoryTransfer, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 200
	}

	rows, err := s.pool.Query(ctx, `
		SELECT t.id, t.from_store_id, t.to_store_id, t.product_id, p.sku, t.quantity,
		       t.transferred_by, t.transferred_at
		FROM inventory_transfers t
		JOIN products p ON p.id = t.product_id
		WHERE ($1::bigint = 0 OR t.from_store_id = $1 OR t.to_store_id = $1)
		  AND ($2::bigint = 0 OR t.product_id = $2)
		ORDER BY t.id DESC
		LIMIT $3
	`, filter.StoreID, filter.ProductID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer rows.Close()

	var transfers []InventoryTransfer
	for rows.Next() {
		var t InventoryTransfer
		if err := rows.Scan(&t.ID, &t.FromStoreID, &t.ToStoreID, &t.ProductID, &t.SKU, &t.Quantity,
			&t.TransferredBy, &t.TransferredAt); err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transfers: %w", err)
	}
	return transfers, nil
}

func (s *stockLedger) Audit(ctx context.Context, productID int64) (*StockAudit, error) {
	a := &StockAudit{ProductID: productID}
	err := s.pool.QueryRow(ctx, `
		SELECT p.sku,
		       (SELECT COALESCE(SUM(quantity), 0) FROM inventory_transfers
		         WHERE product_id = p.id AND from_store_id IS NULL),
		       (SELECT COALESCE(SUM(quantity), 0) FROM stock_levels WHERE product_id = p.id),
		       (SELECT COALESCE(SUM(quantity), 0) FROM order_lines
		         WHERE product_id = p.id AND is_exclusion = false)
		FROM products p
		WHERE p.id = $1
	`, productID).Scan(&a.SKU, &a.Restocked, &a.OnHand, &a.Sold)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &SkuNotFoundError{SKU: fmt.Sprintf("product id=%d", productID)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to audit product %d: %w", productID, err)
	}
	return a, nil
}

// ── TX-scoped operations ──────────────────────────────────────────────────────

func (s *stockLedger) InTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return s.tx.run(ctx, fn)
}

func (s *stockLedger) LockTx(ctx context.Context, tx pgx.Tx, keys []StockKey) (*LockedStock, error) {
	keys = sortedStockKeys(keys)
	if len(keys) == 0 {
		return &LockedStock{tx: tx, rows: map[StockKey]*lockedRow{}}, nil
	}

	storeIDs := make([]int64, len(keys))
	productIDs := make([]int64, len(keys))
	for i, k := range keys {
		storeIDs[i], productIDs[i] = k.StoreID, k.ProductID
	}

	// Materialize absent rows first so the lock below covers them too.
	_, err := tx.Exec(ctx, `
		INSERT INTO stock_levels (store_id, product_id, quantity)
		SELECT k.store_id, k.product_id, 0
		FROM unnest($1::bigint[], $2::bigint[]) AS k(store_id, product_id)
		ORDER BY k.store_id, k.product_id
		ON CONFLICT (store_id, product_id) DO NOTHING
	`, storeIDs, productIDs)
	if err != nil {
		if isPgCode(err, pgForeignKeyViolation) {
			return nil, stockRowFKError(err)
		}
		return nil, fmt.Errorf("failed to create stock rows: %w", err)
	}

	rows, err := tx.Query(ctx, `
		SELECT sl.store_id, sl.product_id, sl.quantity, p.sku
		FROM stock_levels sl
		JOIN products p ON p.id = sl.product_id
		WHERE (sl.store_id, sl.product_id) IN (
			SELECT k.store_id, k.product_id
			FROM unnest($1::bigint[], $2::bigint[]) AS k(store_id, product_id))
		ORDER BY sl.store_id, sl.product_id
		FOR UPDATE OF sl
	`, storeIDs, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to lock stock rows: %w", err)
	}
	defer rows.Close()

	locked := &LockedStock{tx: tx, rows: make(map[StockKey]*lockedRow, len(keys))}
	for rows.Next() {
		var k StockKey
		r := &lockedRow{}
		if err := rows.Scan(&k.StoreID, &k.ProductID, &r.quantity, &r.sku); err != nil {
			return nil, fmt.Errorf("failed to scan locked stock row: %w", err)
		}
		locked.rows[k] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to lock stock rows: %w", err)
	}
	if len(locked.rows) != len(keys) {
		return nil, fmt.Errorf("locked %d of %d stock rows", len(locked.rows), len(keys))
	}
	return locked, nil
}

// LockedStock is a set of stock rows exclusively locked by one transaction.
// Mutations go through it so the in-memory balances stay in step with the rows.
type LockedStock struct {
	tx   pgx.Tx
	rows map[StockKey]*lockedRow
}

type lockedRow struct {
	sku      string
	quantity int
}

// Quantity returns the locked balance for key, or 0 if key is not locked.
func (l *LockedStock) Quantity(key StockKey) int {
	if r, ok := l.rows[key]; ok {
		return r.quantity
	}
	return 0
}

// Adjust applies delta to a locked row and returns the new quantity. A result
// below zero fails with *InsufficientStockError and writes nothing.
func (l *LockedStock) Adjust(ctx context.Context, key StockKey, delta int) (int, error) {
	r, ok := l.rows[key]
	if !ok {
		return 0, fmt.Errorf("stock row store=%d product=%d is not locked", key.StoreID, key.ProductID)
	}

	after := r.quantity + delta
	if after < 0 {
		return 0, &InsufficientStockError{
			StoreID:   key.StoreID,
			SKU:       r.sku,
			Requested: -delta,
			Available: r.quantity,
		}
	}
	if delta == 0 {
		return after, nil
	}

	if _, err := l.tx.Exec(ctx, `
		UPDATE stock_levels SET quantity = $3, updated_at = NOW()
		WHERE store_id = $1 AND product_id = $2
	`, key.StoreID, key.ProductID, after); err != nil {
		return 0, fmt.Errorf("failed to update stock for %s in store %d: %w", r.sku, key.StoreID, err)
	}
	r.quantity = after
	return after, nil
}

// Transfer debits the source, credits the destination and appends the audit row.
func (l *LockedStock) Transfer(ctx context.Context, fromStoreID, toStoreID, productID int64, qty int, actor Actor) (StockMovement, error) {
	if qty < 1 {
		return StockMovement{}, invalidInput("transfer quantity must be positive, got %d", qty)
	}
	if fromStoreID == toStoreID {
		return StockMovement{}, invalidInput("cannot transfer stock from store %d to itself", fromStoreID)
	}

	from := StockKey{StoreID: fromStoreID, ProductID: productID}
	to := StockKey{StoreID: toStoreID, ProductID: productID}

	fromAfter, err := l.Adjust(ctx, from, -qty)
	if err != nil {
		return StockMovement{}, err
	}
	toAfter, err := l.Adjust(ctx, to, qty)
	if err != nil {
		return StockMovement{}, err
	}

	if _, err := l.tx.Exec(ctx, `
		INSERT INTO inventory_transfers (from_store_id, to_store_id, product_id, quantity, transferred_by)
		VALUES ($1, $2, $3, $4, $5)
	`, fromStoreID, toStoreID, productID, qty, actor.userRef()); err != nil {
		return StockMovement{}, fmt.Errorf("failed to record transfer: %w", err)
	}

	return StockMovement{
		ProductID:   productID,
		SKU:         l.rows[from].sku,
		Quantity:    qty,
		FromBalance: fromAfter,
		ToBalance:   toAfter,
	}, nil
}
