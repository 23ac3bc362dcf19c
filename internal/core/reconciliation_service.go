package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ReconciliationService closes out a store's unreconciled sales and can sweep
// its remaining stock back to the master store.
type ReconciliationService interface {
	// Reconcile marks every unreconciled order of the store as reconciled and
	// persists a ReconciliationLog. With sweepStock, every positive stock row of
	// the store is transferred back to the master store in the same transaction.
	Reconcile(ctx context.Context, storeID int64, sweepStock bool, actor Actor) (*ReconciliationReport, error)
	// History returns the store's reconciliation logs, newest first.
	History(ctx context.Context, storeID int64) ([]ReconciliationLog, error)
}

type reconciliationService struct {
	pool   *pgxpool.Pool
	ledger StockLedger
}

func NewReconciliationService(pool *pgxpool.Pool, ledger StockLedger) ReconciliationService {
	return &reconciliationService{pool: pool, ledger: ledger}
}

func (s *reconciliationService) Reconcile(ctx context.Context, storeID int64, sweepStock bool, actor Actor) (*ReconciliationReport, error) {
	var report *ReconciliationReport
	err := s.ledger.InTx(ctx, func(tx pgx.Tx) error {
		// The exclusive store lock waits for in-flight orders and allocations
		// on this store and blocks new ones until commit.
		store, err := lockStoreExclusive(ctx, tx, storeID)
		if err != nil {
			return err
		}
		if sweepStock && store.Type == StoreMaster {
			return invalidInput("the master store cannot return stock to itself")
		}

		report = &ReconciliationReport{
			StoreID:           store.ID,
			StoreName:         store.Name,
			ReconciledAt:      time.Now().UTC(),
			ReconciledBy:      actor.Username,
			TotalRevenue:      decimal.Zero,
			SoldItems:         []SoldItem{},
			InventoryReturned: sweepStock,
			ReturnedItems:     []ReturnedItem{},
		}

		if err := s.closeOrders(ctx, tx, store.ID, report); err != nil {
			return err
		}
		if sweepStock {
			if err := s.sweep(ctx, tx, store.ID, actor, report); err != nil {
				return err
			}
		}

		report.AssignedAdmins, err = assignedUsernames(ctx, tx, store.ID)
		if err != nil {
			return err
		}

		details, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("failed to encode reconciliation details: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO reconciliation_logs
			    (store_id, reconciled_by, total_revenue, total_items_sold, inventory_returned, details_json, reconciled_at)
			VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)
		`, store.ID, actor.userRef(), report.TotalRevenue, report.TotalItemsSold, sweepStock,
			string(details), report.ReconciledAt); err != nil {
			return fmt.Errorf("failed to insert reconciliation log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// closeOrders aggregates and flips every unreconciled order of the store.
func (s *reconciliationService) closeOrders(ctx context.Context, tx pgx.Tx, storeID int64, report *ReconciliationReport) error {
	rows, err := tx.Query(ctx, `
		SELECT id, total_amount
		FROM customer_orders
		WHERE store_id = $1 AND reconciled = false
		ORDER BY id
		FOR UPDATE
	`, storeID)
	if err != nil {
		return fmt.Errorf("failed to lock unreconciled orders: %w", err)
	}
	var orderIDs []int64
	for rows.Next() {
		var id int64
		var amount decimal.Decimal
		if err := rows.Scan(&id, &amount); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan order: %w", err)
		}
		orderIDs = append(orderIDs, id)
		report.TotalRevenue = report.TotalRevenue.Add(amount)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating unreconciled orders: %w", err)
	}
	if len(orderIDs) == 0 {
		return nil
	}

	byOrder, err := orderLines(ctx, tx, orderIDs)
	if err != nil {
		return err
	}
	var lines []OrderLine
	for _, id := range orderIDs {
		lines = append(lines, byOrder[id]...)
	}
	report.SoldItems, report.TotalItemsSold = SummarizeSales(lines)
	report.OrdersReconciled = len(orderIDs)

	if _, err := tx.Exec(ctx,
		"UPDATE customer_orders SET reconciled = true WHERE id = ANY($1) AND reconciled = false",
		orderIDs,
	); err != nil {
		return fmt.Errorf("failed to mark orders reconciled: %w", err)
	}
	return nil
}

// sweep transfers every positive stock row of the store back to the master store.
func (s *reconciliationService) sweep(ctx context.Context, tx pgx.Tx, storeID int64, actor Actor, report *ReconciliationReport) error {
	master, err := masterStore(ctx, tx)
	if err != nil {
		return err
	}

	rows, err := tx.Query(ctx, `
		SELECT p.id, p.sku, p.name
		FROM stock_levels sl
		JOIN products p ON p.id = sl.product_id
		WHERE sl.store_id = $1 AND sl.quantity > 0
		ORDER BY p.id
	`, storeID)
	if err != nil {
		return fmt.Errorf("failed to query store stock: %w", err)
	}
	type held struct {
		productID int64
		sku, name string
	}
	var products []held
	for rows.Next() {
		var h held
		if err := rows.Scan(&h.productID, &h.sku, &h.name); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan store stock: %w", err)
		}
		products = append(products, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating store stock: %w", err)
	}

	keys := make([]StockKey, 0, 2*len(products))
	for _, h := range products {
		keys = append(keys,
			StockKey{StoreID: storeID, ProductID: h.productID},
			StockKey{StoreID: master.ID, ProductID: h.productID})
	}
	locked, err := s.ledger.LockTx(ctx, tx, keys)
	if err != nil {
		return err
	}

	for _, h := range products {
		// Re-read under the lock; the unlocked scan above may be stale.
		qty := locked.Quantity(StockKey{StoreID: storeID, ProductID: h.productID})
		if qty <= 0 {
			continue
		}
		if _, err := locked.Transfer(ctx, storeID, master.ID, h.productID, qty, actor); err != nil {
			return err
		}
		report.ReturnedItems = append(report.ReturnedItems, ReturnedItem{SKU: h.sku, Name: h.name, Quantity: qty})
	}
	return nil
}

func (s *reconciliationService) History(ctx context.Context, storeID int64) ([]ReconciliationLog, error) {
	if _, err := getStore(ctx, s.pool, storeID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, store_id, reconciled_by, total_revenue, total_items_sold, inventory_returned, details_json, reconciled_at
		FROM reconciliation_logs
		WHERE store_id = $1
		ORDER BY reconciled_at DESC, id DESC
	`, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reconciliation history: %w", err)
	}
	defer rows.Close()

	logs := []ReconciliationLog{}
	for rows.Next() {
		var l ReconciliationLog
		var details []byte
		if err := rows.Scan(&l.ID, &l.StoreID, &l.ReconciledBy, &l.TotalRevenue, &l.TotalItemsSold,
			&l.InventoryReturned, &details, &l.ReconciledAt); err != nil {
			return nil, fmt.Errorf("failed to scan reconciliation log: %w", err)
		}
		if err := json.Unmarshal(details, &l.Details); err != nil {
			return nil, fmt.Errorf("reconciliation log %d: invalid details: %w", l.ID, err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
