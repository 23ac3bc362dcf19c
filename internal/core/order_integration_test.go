package core_test

import (
	"errors"
	"testing"

	"storefront-ledger/internal/core"

	"github.com/shopspring/decimal"
)

// stockDowntown moves 10 kits worth of stock (10 pencils, 20 notebooks) into
// the downtown store.
func stockDowntown(t *testing.T, f *fixture) {
	t.Helper()
	if _, err := f.alloc.Allocate(f.ctx, f.downtown.ID, []core.ItemRequest{{SKU: "KIT-1", Quantity: 10}}, f.alice.Actor()); err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
}

func TestOrderService_PricingAndDiscount(t *testing.T) {
	f := setupFixture(t)
	stockDowntown(t, f)

	// 2 kits @ 8.00 + 3 pencils @ 1.50 = 20.50, less 0.50 discount.
	order, err := f.orders.CreateOrder(f.ctx, core.OrderRequest{
		StoreID: f.downtown.ID,
		Items: []core.OrderItem{
			{SKU: "KIT-1", Quantity: 2},
			{SKU: "PEN-HB", Quantity: 3},
		},
		Discount: decimal.RequireFromString("0.50"),
	}, f.alice.Actor())
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	if !order.TotalAmount.Equal(decimal.RequireFromString("20.00")) {
		t.Errorf("Expected total 20.00, got %s", order.TotalAmount)
	}
	if order.Status != core.OrderStatusCompleted || order.Reconciled {
		t.Errorf("Expected a completed unreconciled order, got %s reconciled=%v", order.Status, order.Reconciled)
	}
	// 2 kits explode to 4 component lines, plus the loose pencils.
	if len(order.Lines) != 5 {
		t.Fatalf("Expected 5 order lines, got %d", len(order.Lines))
	}
	for _, l := range order.Lines {
		if l.BundleID != nil && !l.UnitPrice.IsZero() {
			t.Errorf("Expected bundle component line %d at zero price, got %s", l.LineNumber, l.UnitPrice)
		}
	}

	if got := f.qty(t, f.downtown, f.pencil); got != 5 {
		t.Errorf("Expected 5 pencils left (10 - 2 - 3), got %d", got)
	}
	if got := f.qty(t, f.downtown, f.notebook); got != 16 {
		t.Errorf("Expected 16 notebooks left, got %d", got)
	}
	f.assertBalanced(t, f.pencil, f.notebook)
}

func TestOrderService_BundleExclusion(t *testing.T) {
	f := setupFixture(t)
	stockDowntown(t, f)

	order, err := f.orders.CreateOrder(f.ctx, core.OrderRequest{
		StoreID: f.downtown.ID,
		Items:   []core.OrderItem{{SKU: "KIT-1", Quantity: 1, ExcludedSKUs: []string{"NB-A5"}}},
	}, f.alice.Actor())
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	// The bundle keeps its flat price.
	if !order.TotalAmount.Equal(decimal.RequireFromString("8.00")) {
		t.Errorf("Expected total 8.00, got %s", order.TotalAmount)
	}

	var excluded int
	for _, l := range order.Lines {
		if l.IsExclusion {
			excluded++
			if l.SKU != "NB-A5" {
				t.Errorf("Expected only NB-A5 to be excluded, got %s", l.SKU)
			}
		}
	}
	if excluded != 1 {
		t.Errorf("Expected 1 excluded line, got %d", excluded)
	}

	if got := f.qty(t, f.downtown, f.notebook); got != 20 {
		t.Errorf("Expected notebooks untouched at 20, got %d", got)
	}
	if got := f.qty(t, f.downtown, f.pencil); got != 9 {
		t.Errorf("Expected 9 pencils left, got %d", got)
	}
	f.assertBalanced(t, f.pencil, f.notebook)
}

func TestOrderService_DiscountClampsAtZero(t *testing.T) {
	f := setupFixture(t)
	stockDowntown(t, f)

	order, err := f.orders.CreateOrder(f.ctx, core.OrderRequest{
		StoreID:  f.downtown.ID,
		Items:    []core.OrderItem{{SKU: "PEN-HB", Quantity: 1}},
		Discount: decimal.RequireFromString("5.00"),
	}, f.alice.Actor())
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if !order.TotalAmount.IsZero() {
		t.Errorf("Expected total clamped to 0, got %s", order.TotalAmount)
	}
	if !order.Discount.Equal(decimal.RequireFromString("5.00")) {
		t.Errorf("Expected the requested discount to be recorded, got %s", order.Discount)
	}

	_, err = f.orders.CreateOrder(f.ctx, core.OrderRequest{
		StoreID:  f.downtown.ID,
		Items:    []core.OrderItem{{SKU: "PEN-HB", Quantity: 1}},
		Discount: decimal.RequireFromString("-1"),
	}, f.alice.Actor())
	if !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for negative discount, got %v", err)
	}
}

func TestOrderService_CustomerFindOrCreate(t *testing.T) {
	f := setupFixture(t)
	stockDowntown(t, f)

	req := core.OrderRequest{
		StoreID:       f.downtown.ID,
		Items:         []core.OrderItem{{SKU: "PEN-HB", Quantity: 1}},
		CustomerName:  "Priya Raman",
		CustomerPhone: "+91-9800000001",
	}
	first, err := f.orders.CreateOrder(f.ctx, req, f.alice.Actor())
	if err != nil {
		t.Fatalf("First CreateOrder failed: %v", err)
	}

	req.CustomerName = "Someone Else"
	second, err := f.orders.CreateOrder(f.ctx, req, f.alice.Actor())
	if err != nil {
		t.Fatalf("Second CreateOrder failed: %v", err)
	}

	if first.Customer == nil || second.Customer == nil {
		t.Fatalf("Expected both orders to carry a customer")
	}
	if first.Customer.ID != second.Customer.ID {
		t.Errorf("Expected the same customer for the same phone, got %d and %d", first.Customer.ID, second.Customer.ID)
	}
	if second.Customer.Name != "Priya Raman" {
		t.Errorf("Expected the existing customer's name to be kept, got %q", second.Customer.Name)
	}
}

func TestOrderService_InsufficientStockIsAtomic(t *testing.T) {
	f := setupFixture(t)
	stockDowntown(t, f)

	_, err := f.orders.CreateOrder(f.ctx, core.OrderRequest{
		StoreID: f.downtown.ID,
		Items: []core.OrderItem{
			{SKU: "PEN-HB", Quantity: 2},
			{SKU: "NB-A5", Quantity: 21},
		},
		CustomerPhone: "+91-9800000002",
	}, f.alice.Actor())

	var stockErr *core.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("Expected InsufficientStockError, got %v", err)
	}
	if stockErr.StoreID != f.downtown.ID || stockErr.Shortfall() != 1 {
		t.Errorf("Expected a shortfall of 1 in downtown, got %+v", stockErr)
	}

	if got := f.qty(t, f.downtown, f.pencil); got != 10 {
		t.Errorf("Expected pencils untouched at 10, got %d", got)
	}
	orders, err := f.orders.SearchOrders(f.ctx, core.OrderFilter{})
	if err != nil {
		t.Fatalf("SearchOrders failed: %v", err)
	}
	if len(orders) != 0 {
		t.Errorf("Expected no orders to be persisted, got %d", len(orders))
	}
}

func TestOrderService_RejectsBadRequests(t *testing.T) {
	f := setupFixture(t)
	stockDowntown(t, f)

	if _, err := f.orders.CreateOrder(f.ctx, core.OrderRequest{StoreID: f.downtown.ID}, f.alice.Actor()); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for an empty order, got %v", err)
	}

	_, err := f.orders.CreateOrder(f.ctx, core.OrderRequest{
		StoreID: f.downtown.ID,
		Items:   []core.OrderItem{{SKU: "GHOST", Quantity: 1}},
	}, f.alice.Actor())
	if !errors.Is(err, core.ErrSkuNotFound) {
		t.Errorf("Expected ErrSkuNotFound, got %v", err)
	}

	_, err = f.orders.CreateOrder(f.ctx, core.OrderRequest{
		StoreID: 9999,
		Items:   []core.OrderItem{{SKU: "PEN-HB", Quantity: 1}},
	}, f.alice.Actor())
	if !errors.Is(err, core.ErrStoreNotFound) {
		t.Errorf("Expected ErrStoreNotFound, got %v", err)
	}

	if _, err := f.orders.GetOrder(f.ctx, 9999); !errors.Is(err, core.ErrOrderNotFound) {
		t.Errorf("Expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderService_SearchAndSummary(t *testing.T) {
	f := setupFixture(t)
	stockDowntown(t, f)

	for _, phone := range []string{"+91-9800000001", "+91-9800000002"} {
		if _, err := f.orders.CreateOrder(f.ctx, core.OrderRequest{
			StoreID:       f.downtown.ID,
			Items:         []core.OrderItem{{SKU: "PEN-HB", Quantity: 2}},
			CustomerName:  "Customer " + phone[len(phone)-1:],
			CustomerPhone: phone,
		}, f.alice.Actor()); err != nil {
			t.Fatalf("CreateOrder failed: %v", err)
		}
	}

	byPhone, err := f.orders.SearchOrders(f.ctx, core.OrderFilter{CustomerPhone: "0000002"})
	if err != nil {
		t.Fatalf("SearchOrders failed: %v", err)
	}
	if len(byPhone) != 1 || byPhone[0].Customer.Phone != "+91-9800000002" {
		t.Errorf("Expected one order for the second phone, got %+v", byPhone)
	}

	byStore, err := f.orders.SearchOrders(f.ctx, core.OrderFilter{StoreIDs: []int64{f.downtown.ID}})
	if err != nil {
		t.Fatalf("SearchOrders failed: %v", err)
	}
	if len(byStore) != 2 {
		t.Errorf("Expected 2 orders for downtown, got %d", len(byStore))
	}

	summary, err := f.orders.OrderSummary(f.ctx, &f.downtown.ID)
	if err != nil {
		t.Fatalf("OrderSummary failed: %v", err)
	}
	if summary.TotalOrders != 2 || summary.UnreconciledOrders != 2 {
		t.Errorf("Expected 2 unreconciled orders, got %+v", summary)
	}
	if !summary.UnreconciledAmount.Equal(decimal.RequireFromString("6.00")) {
		t.Errorf("Expected 6.00 unreconciled, got %s", summary.UnreconciledAmount)
	}
}

func TestOrderService_BundleWithDeactivatedComponent(t *testing.T) {
	f := setupFixture(t)
	stockDowntown(t, f)

	if err := f.catalog.DeactivateProduct(f.ctx, "NB-A5"); err != nil {
		t.Fatalf("DeactivateProduct failed: %v", err)
	}

	_, err := f.orders.CreateOrder(f.ctx, core.OrderRequest{
		StoreID: f.downtown.ID,
		Items:   []core.OrderItem{{SKU: "KIT-1", Quantity: 1}},
	}, f.alice.Actor())
	if !errors.Is(err, core.ErrSkuNotFound) {
		t.Fatalf("Expected ErrSkuNotFound, got %v", err)
	}
	if got := f.qty(t, f.downtown, f.notebook); got != 20 {
		t.Errorf("Expected 20 notebooks untouched, got %d", got)
	}
}

func TestOrderService_SearchReturnsLinesPerOrder(t *testing.T) {
	f := setupFixture(t)
	stockDowntown(t, f)

	requests := []core.OrderRequest{
		{StoreID: f.downtown.ID, Items: []core.OrderItem{{SKU: "PEN-HB", Quantity: 1}}},
		{StoreID: f.downtown.ID, Items: []core.OrderItem{{SKU: "KIT-1", Quantity: 1}}},
		{StoreID: f.downtown.ID, Items: []core.OrderItem{{SKU: "NB-A5", Quantity: 3}, {SKU: "PEN-HB", Quantity: 2}}},
	}
	want := make(map[int64]core.CustomerOrder, len(requests))
	for _, req := range requests {
		o, err := f.orders.CreateOrder(f.ctx, req, f.alice.Actor())
		if err != nil {
			t.Fatalf("CreateOrder failed: %v", err)
		}
		want[o.ID] = *o
	}

	orders, err := f.orders.SearchOrders(f.ctx, core.OrderFilter{StoreIDs: []int64{f.downtown.ID}})
	if err != nil {
		t.Fatalf("SearchOrders failed: %v", err)
	}
	if len(orders) != len(requests) {
		t.Fatalf("Expected %d orders, got %d", len(requests), len(orders))
	}
	for _, got := range orders {
		exp, ok := want[got.ID]
		if !ok {
			t.Fatalf("Unexpected order %d in results", got.ID)
		}
		if len(got.Lines) != len(exp.Lines) {
			t.Errorf("Order %d: expected %d lines, got %d", got.ID, len(exp.Lines), len(got.Lines))
			continue
		}
		for i := range got.Lines {
			if got.Lines[i].SKU != exp.Lines[i].SKU || got.Lines[i].Quantity != exp.Lines[i].Quantity {
				t.Errorf("Order %d line %d: expected %s x%d, got %s x%d", got.ID, i,
					exp.Lines[i].SKU, exp.Lines[i].Quantity, got.Lines[i].SKU, got.Lines[i].Quantity)
			}
		}
		if !got.TotalAmount.Equal(exp.TotalAmount) {
			t.Errorf("Order %d: expected total %s, got %s", got.ID, exp.TotalAmount, got.TotalAmount)
		}
	}
}
