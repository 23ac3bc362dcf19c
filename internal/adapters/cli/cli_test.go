package cli

import (
	"bytes"
	"context"
	"testing"

	"storefront-ledger/internal/app"
	"storefront-ledger/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService records the requests it receives. Unused methods panic through
// the nil embedded interface.
type fakeService struct {
	app.ApplicationService

	allocation *app.AllocationRequest
	order      *app.CreateOrderRequest
	reconcile  *app.ReconcileRequest
}

func (f *fakeService) Allocate(_ context.Context, req app.AllocationRequest) (*core.AllocationResult, error) {
	f.allocation = &req
	return &core.AllocationResult{ToStoreID: req.StoreID}, nil
}

func (f *fakeService) CreateOrder(_ context.Context, req app.CreateOrderRequest) (*core.CustomerOrder, error) {
	f.order = &req
	return &core.CustomerOrder{ID: 1, StoreID: req.StoreID}, nil
}

func (f *fakeService) Reconcile(_ context.Context, req app.ReconcileRequest) (*core.ReconciliationReport, error) {
	f.reconcile = &req
	return &core.ReconciliationReport{StoreID: req.StoreID, InventoryReturned: req.ReturnStock}, nil
}

func (f *fakeService) InventoryView(context.Context) (*app.StockResult, error) {
	return &app.StockResult{StoreID: 1, Levels: []core.StockLevel{
		{SKU: "PEN-HB", ProductName: "HB Pencil", ProductType: core.ProductPencil, BasePrice: decimal.RequireFromString("1.5"), Quantity: 42},
	}}, nil
}

func TestParseItems(t *testing.T) {
	items, err := ParseItems([]string{"KIT-1=5", " PEN-HB = 2 "})
	require.NoError(t, err)
	assert.Equal(t, []core.ItemRequest{{SKU: "KIT-1", Quantity: 5}, {SKU: "PEN-HB", Quantity: 2}}, items)

	for _, bad := range []string{"KIT-1", "=3", "KIT-1=0", "KIT-1=x"} {
		_, err := ParseItems([]string{bad})
		assert.Error(t, err, bad)
	}
	_, err = ParseItems(nil)
	assert.Error(t, err)
}

func TestParseOrderItems(t *testing.T) {
	items, err := ParseOrderItems([]string{"KIT-1=2/NB-A5, PEN-HB", "PEN-HB=1"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "KIT-1", items[0].SKU)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, []string{"NB-A5", "PEN-HB"}, items[0].ExcludedSKUs)
	assert.Empty(t, items[1].ExcludedSKUs)
}

func TestRun_Allocate(t *testing.T) {
	svc := &fakeService{}
	var out bytes.Buffer

	err := Run(context.Background(), svc, []string{"allocate", "--store", "2", "--item", "KIT-1=5", "--item", "NB-A5=1"}, &out)
	require.NoError(t, err)
	require.NotNil(t, svc.allocation)
	assert.Equal(t, int64(2), svc.allocation.StoreID)
	assert.Len(t, svc.allocation.Items, 2)
	assert.Equal(t, core.SystemActor, svc.allocation.Actor)
	assert.Contains(t, out.String(), `"to_store_id": 2`)
}

func TestRun_Order(t *testing.T) {
	svc := &fakeService{}
	var out bytes.Buffer

	err := Run(context.Background(), svc, []string{
		"order", "--store", "3", "--item", "KIT-1=1/NB-A5", "--discount", "1.25", "--phone", "+91-98",
	}, &out)
	require.NoError(t, err)
	require.NotNil(t, svc.order)
	assert.True(t, decimal.RequireFromString("1.25").Equal(svc.order.Discount))
	assert.Equal(t, "+91-98", svc.order.CustomerPhone)
	assert.Equal(t, []string{"NB-A5"}, svc.order.Items[0].ExcludedSKUs)

	err = Run(context.Background(), svc, []string{"order", "--store", "3", "--item", "X=1", "--discount", "abc"}, &out)
	assert.ErrorContains(t, err, "--discount")
}

func TestRun_Reconcile(t *testing.T) {
	svc := &fakeService{}
	var out bytes.Buffer

	require.NoError(t, Run(context.Background(), svc, []string{"reconcile", "--store", "4", "--return-stock"}, &out))
	require.NotNil(t, svc.reconcile)
	assert.True(t, svc.reconcile.ReturnStock)
	assert.Contains(t, out.String(), `"inventoryReturned": true`)
}

func TestRun_StockTable(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), &fakeService{}, []string{"stock"}, &out))
	assert.Contains(t, out.String(), "PEN-HB")
	assert.Contains(t, out.String(), "1.50")
	assert.Contains(t, out.String(), "42")
}

func TestRun_UnknownCommand(t *testing.T) {
	var out bytes.Buffer
	err := Run(context.Background(), &fakeService{}, []string{"frobnicate"}, &out)
	assert.ErrorContains(t, err, "unknown command")

	assert.Error(t, Run(context.Background(), &fakeService{}, nil, &out))
}
