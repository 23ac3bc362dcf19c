package core

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// AllocationService moves stock between the master store and a virtual store.
// Each call is all-or-nothing: bundle items are exploded, quantities summed per
// product, and every affected row is locked before anything is written.
type AllocationService interface {
	// Allocate moves the requested items from the master store into targetStoreID.
	Allocate(ctx context.Context, targetStoreID int64, items []ItemRequest, actor Actor) (*AllocationResult, error)
	// ReturnToMaster moves the requested items from sourceStoreID back to the master store.
	ReturnToMaster(ctx context.Context, sourceStoreID int64, items []ItemRequest, actor Actor) (*AllocationResult, error)
}

// AllocationResult lists one movement per distinct product.
type AllocationResult struct {
	FromStoreID int64           `json:"from_store_id"`
	ToStoreID   int64           `json:"to_store_id"`
	Movements   []StockMovement `json:"movements"`
}

type allocationService struct {
	ledger   StockLedger
	resolver *BundleResolver
}

func NewAllocationService(ledger StockLedger, resolver *BundleResolver) AllocationService {
	return &allocationService{ledger: ledger, resolver: resolver}
}

func (s *allocationService) Allocate(ctx context.Context, targetStoreID int64, items []ItemRequest, actor Actor) (*AllocationResult, error) {
	return s.move(ctx, targetStoreID, items, actor, true)
}

func (s *allocationService) ReturnToMaster(ctx context.Context, sourceStoreID int64, items []ItemRequest, actor Actor) (*AllocationResult, error) {
	return s.move(ctx, sourceStoreID, items, actor, false)
}

// move transfers items between the master store and storeID, toward storeID
// when outbound is true.
func (s *allocationService) move(ctx context.Context, storeID int64, items []ItemRequest, actor Actor, outbound bool) (*AllocationResult, error) {
	var result *AllocationResult
	err := s.ledger.InTx(ctx, func(tx pgx.Tx) error {
		master, err := masterStore(ctx, tx)
		if err != nil {
			return err
		}
		store, err := lockStoreShared(ctx, tx, storeID)
		if err != nil {
			return err
		}
		if store.ID == master.ID {
			return invalidInput("store %d is the master store", store.ID)
		}

		lines, err := s.resolver.ResolveAll(ctx, tx, items)
		if err != nil {
			return err
		}
		totals := TotalsByProduct(lines)

		from, to := master.ID, store.ID
		if !outbound {
			from, to = store.ID, master.ID
		}

		keys := make([]StockKey, 0, 2*len(totals))
		for _, t := range totals {
			keys = append(keys,
				StockKey{StoreID: from, ProductID: t.Product.ID},
				StockKey{StoreID: to, ProductID: t.Product.ID})
		}
		locked, err := s.ledger.LockTx(ctx, tx, keys)
		if err != nil {
			return err
		}

		result = &AllocationResult{FromStoreID: from, ToStoreID: to}
		for _, t := range totals {
			mv, err := locked.Transfer(ctx, from, to, t.Product.ID, t.Quantity, actor)
			if err != nil {
				return err
			}
			result.Movements = append(result.Movements, mv)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
