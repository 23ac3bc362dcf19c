package core_test

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"storefront-ledger/internal/core"
)

func TestAllocation_BundleExplosion(t *testing.T) {
	f := setupFixture(t)

	result, err := f.alloc.Allocate(f.ctx, f.downtown.ID, []core.ItemRequest{{SKU: "KIT-1", Quantity: 5}}, f.alice.Actor())
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if len(result.Movements) != 2 {
		t.Fatalf("Expected one movement per product, got %d", len(result.Movements))
	}
	if result.FromStoreID != f.master.ID || result.ToStoreID != f.downtown.ID {
		t.Errorf("Expected master -> downtown, got %d -> %d", result.FromStoreID, result.ToStoreID)
	}

	if got := f.qty(t, f.downtown, f.pencil); got != 5 {
		t.Errorf("Expected 5 pencils in downtown, got %d", got)
	}
	if got := f.qty(t, f.downtown, f.notebook); got != 10 {
		t.Errorf("Expected 10 notebooks in downtown, got %d", got)
	}
	if got := f.qty(t, f.master, f.notebook); got != 90 {
		t.Errorf("Expected 90 notebooks left in master, got %d", got)
	}
	f.assertBalanced(t, f.pencil, f.notebook)
}

func TestAllocation_ShortfallReportedOncePerProduct(t *testing.T) {
	f := setupFixture(t)

	// 40 kits need 80 notebooks, plus 30 loose ones: 110 requested against 100.
	_, err := f.alloc.Allocate(f.ctx, f.downtown.ID, []core.ItemRequest{
		{SKU: "KIT-1", Quantity: 40},
		{SKU: "NB-A5", Quantity: 30},
	}, f.alice.Actor())

	var stockErr *core.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("Expected InsufficientStockError, got %v", err)
	}
	if stockErr.SKU != "NB-A5" || stockErr.Requested != 110 || stockErr.Available != 100 {
		t.Errorf("Expected NB-A5 requested 110 available 100, got %+v", stockErr)
	}

	// Nothing moved, including the pencils that were available.
	if got := f.qty(t, f.master, f.pencil); got != 100 {
		t.Errorf("Expected master pencils untouched, got %d", got)
	}
	if got := f.qty(t, f.downtown, f.pencil); got != 0 {
		t.Errorf("Expected no pencils in downtown, got %d", got)
	}
}

func TestAllocation_UnknownSku(t *testing.T) {
	f := setupFixture(t)

	_, err := f.alloc.Allocate(f.ctx, f.downtown.ID, []core.ItemRequest{
		{SKU: "PEN-HB", Quantity: 1},
		{SKU: "GHOST", Quantity: 1},
	}, f.alice.Actor())
	if !errors.Is(err, core.ErrSkuNotFound) {
		t.Fatalf("Expected ErrSkuNotFound, got %v", err)
	}
	if got := f.qty(t, f.downtown, f.pencil); got != 0 {
		t.Errorf("Expected nothing allocated, got %d pencils", got)
	}
}

func TestAllocation_RejectsMasterAndUnknownStore(t *testing.T) {
	f := setupFixture(t)
	items := []core.ItemRequest{{SKU: "PEN-HB", Quantity: 1}}

	if _, err := f.alloc.Allocate(f.ctx, f.master.ID, items, f.alice.Actor()); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput when allocating to master, got %v", err)
	}
	if _, err := f.alloc.Allocate(f.ctx, 9999, items, f.alice.Actor()); !errors.Is(err, core.ErrStoreNotFound) {
		t.Errorf("Expected ErrStoreNotFound, got %v", err)
	}
}

func TestAllocation_ReturnToMaster(t *testing.T) {
	f := setupFixture(t)

	if _, err := f.alloc.Allocate(f.ctx, f.downtown.ID, []core.ItemRequest{{SKU: "KIT-1", Quantity: 2}}, f.alice.Actor()); err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	result, err := f.alloc.ReturnToMaster(f.ctx, f.downtown.ID, []core.ItemRequest{{SKU: "NB-A5", Quantity: 3}}, f.alice.Actor())
	if err != nil {
		t.Fatalf("ReturnToMaster failed: %v", err)
	}
	if result.FromStoreID != f.downtown.ID || result.ToStoreID != f.master.ID {
		t.Errorf("Expected downtown -> master, got %d -> %d", result.FromStoreID, result.ToStoreID)
	}
	if got := f.qty(t, f.downtown, f.notebook); got != 1 {
		t.Errorf("Expected 1 notebook left in downtown, got %d", got)
	}
	if got := f.qty(t, f.master, f.notebook); got != 99 {
		t.Errorf("Expected 99 notebooks in master, got %d", got)
	}

	if _, err := f.alloc.ReturnToMaster(f.ctx, f.downtown.ID, []core.ItemRequest{{SKU: "NB-A5", Quantity: 2}}, f.alice.Actor()); !errors.Is(err, core.ErrInsufficientStock) {
		t.Errorf("Expected ErrInsufficientStock returning more than held, got %v", err)
	}
	f.assertBalanced(t, f.pencil, f.notebook)
}

func TestAllocation_ConcurrentAllocationsAllSucceed(t *testing.T) {
	f := setupFixture(t)

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.alloc.Allocate(f.ctx, f.downtown.ID, []core.ItemRequest{{SKU: "PEN-HB", Quantity: 10}}, f.alice.Actor())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Allocation failed: %v", err)
		}
	}
	if got := f.qty(t, f.master, f.pencil); got != 0 {
		t.Errorf("Expected master drained to 0, got %d", got)
	}
	if got := f.qty(t, f.downtown, f.pencil); got != 100 {
		t.Errorf("Expected 100 in downtown, got %d", got)
	}
	f.assertBalanced(t, f.pencil)
}

func TestAllocation_OversubscriptionNeverGoesNegative(t *testing.T) {
	f := setupFixture(t)

	const workers = 20
	var ok, short atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.alloc.Allocate(f.ctx, f.downtown.ID, []core.ItemRequest{{SKU: "PEN-HB", Quantity: 10}}, f.alice.Actor())
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, core.ErrInsufficientStock):
				short.Add(1)
			default:
				t.Errorf("Unexpected allocation error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != 10 || short.Load() != 10 {
		t.Errorf("Expected 10 successes and 10 shortfalls, got %d and %d", ok.Load(), short.Load())
	}
	if got := f.qty(t, f.master, f.pencil); got != 0 {
		t.Errorf("Expected master at 0, got %d", got)
	}
	f.assertBalanced(t, f.pencil)
}

func TestAllocation_ConcurrentAllocationsToDistinctStores(t *testing.T) {
	f := setupFixture(t)

	const workers = 10
	stores := make([]*core.Store, workers)
	for i := range stores {
		st, err := f.stores.CreateStore(f.ctx, fmt.Sprintf("Pop-up %02d", i), core.StoreVirtual, nil)
		if err != nil {
			t.Fatalf("CreateStore failed: %v", err)
		}
		stores[i] = st
	}

	var successes atomic.Int32
	var wg sync.WaitGroup
	for _, st := range stores {
		wg.Add(1)
		go func(storeID int64) {
			defer wg.Done()
			_, err := f.alloc.Allocate(f.ctx, storeID, []core.ItemRequest{{SKU: "PEN-HB", Quantity: 10}}, f.alice.Actor())
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, core.ErrInsufficientStock):
			default:
				t.Errorf("Unexpected allocation error: %v", err)
			}
		}(st.ID)
	}
	wg.Wait()

	master := f.qty(t, f.master, f.pencil)
	if want := 100 - 10*int(successes.Load()); master != want {
		t.Errorf("Expected master at %d after %d successes, got %d", want, successes.Load(), master)
	}
	if successes.Load() != workers {
		t.Errorf("Expected all %d allocations to succeed, got %d", workers, successes.Load())
	}

	total := master
	for _, st := range stores {
		q := f.qty(t, st, f.pencil)
		if q != 0 && q != 10 {
			t.Errorf("Expected store %d to hold 0 or 10 pencils, got %d", st.ID, q)
		}
		total += q
	}
	if total != 100 {
		t.Errorf("Expected master plus virtual stores to hold 100, got %d", total)
	}
	f.assertBalanced(t, f.pencil)
}

func TestAllocation_BundleWithDeactivatedComponent(t *testing.T) {
	f := setupFixture(t)

	if err := f.catalog.DeactivateProduct(f.ctx, "NB-A5"); err != nil {
		t.Fatalf("DeactivateProduct failed: %v", err)
	}

	_, err := f.alloc.Allocate(f.ctx, f.downtown.ID, []core.ItemRequest{{SKU: "KIT-1", Quantity: 1}}, f.alice.Actor())
	if !errors.Is(err, core.ErrSkuNotFound) {
		t.Fatalf("Expected ErrSkuNotFound for a bundle with an inactive component, got %v", err)
	}
	if got := f.qty(t, f.master, f.notebook); got != 100 {
		t.Errorf("Expected master notebooks untouched, got %d", got)
	}
	if got := f.qty(t, f.master, f.pencil); got != 100 {
		t.Errorf("Expected master pencils untouched, got %d", got)
	}
	if got := f.qty(t, f.downtown, f.pencil); got != 0 {
		t.Errorf("Expected nothing allocated, got %d pencils", got)
	}

	// The active component on its own still moves.
	if _, err := f.alloc.Allocate(f.ctx, f.downtown.ID, []core.ItemRequest{{SKU: "PEN-HB", Quantity: 1}}, f.alice.Actor()); err != nil {
		t.Errorf("Allocate PEN-HB failed: %v", err)
	}
}
