package repl

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"storefront-ledger/internal/app"
	"storefront-ledger/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	app.ApplicationService

	orders     []app.CreateOrderRequest
	reconciles []app.ReconcileRequest
}

func (f *fakeService) CreateOrder(_ context.Context, req app.CreateOrderRequest) (*core.CustomerOrder, error) {
	f.orders = append(f.orders, req)
	return &core.CustomerOrder{ID: 1, StoreID: req.StoreID, TotalAmount: decimal.RequireFromString("12.50")}, nil
}

func (f *fakeService) Reconcile(_ context.Context, req app.ReconcileRequest) (*core.ReconciliationReport, error) {
	f.reconciles = append(f.reconciles, req)
	return &core.ReconciliationReport{StoreID: req.StoreID, InventoryReturned: req.ReturnStock}, nil
}

func run(t *testing.T, svc *fakeService, script ...string) string {
	t.Helper()
	var out bytes.Buffer
	Run(context.Background(), svc, strings.NewReader(strings.Join(script, "\n")+"\n"), &out)
	return out.String()
}

func TestNewOrderWizard(t *testing.T) {
	svc := &fakeService{}
	out := run(t, svc,
		"/new-order 2",
		"KIT-1=1/NB-A5",
		"bogus",
		"PEN-HB=3",
		"done",
		"0.50",
		"9800000001",
		"Priya",
		"y",
		"/exit",
	)

	require.Len(t, svc.orders, 1)
	req := svc.orders[0]
	assert.Equal(t, int64(2), req.StoreID)
	assert.Equal(t, []core.OrderItem{
		{SKU: "KIT-1", Quantity: 1, ExcludedSKUs: []string{"NB-A5"}},
		{SKU: "PEN-HB", Quantity: 3},
	}, req.Items)
	assert.True(t, decimal.RequireFromString("0.50").Equal(req.Discount))
	assert.Equal(t, "9800000001", req.CustomerPhone)
	assert.Equal(t, "Priya", req.CustomerName)
	assert.Equal(t, core.SystemActor, req.Actor)

	assert.Contains(t, out, `invalid item "bogus"`)
	assert.Contains(t, out, "Total:    12.50")
	assert.Contains(t, out, "Goodbye!")
}

func TestNewOrderWizardCancel(t *testing.T) {
	svc := &fakeService{}
	out := run(t, svc, "/new-order 2", "PEN-HB=1", "cancel", "/exit")
	assert.Empty(t, svc.orders)
	assert.Contains(t, out, "Order entry cancelled.")

	out = run(t, svc, "/new-order abc", "/exit")
	assert.Contains(t, out, "invalid store id: abc")
}

func TestSweepNeedsConfirmation(t *testing.T) {
	svc := &fakeService{}
	out := run(t, svc, "reconcile --store 3 --return-stock", "n", "/exit")
	assert.Empty(t, svc.reconciles)
	assert.Contains(t, out, "Reconciliation cancelled.")

	run(t, svc, "reconcile --store 3 --return-stock", "yes", "/exit")
	require.Len(t, svc.reconciles, 1)
	assert.True(t, svc.reconciles[0].ReturnStock)

	// A plain reconcile does not prompt.
	run(t, svc, "reconcile --store 3", "/exit")
	require.Len(t, svc.reconciles, 2)
	assert.False(t, svc.reconciles[1].ReturnStock)
}

func TestUnknownCommandsReportErrors(t *testing.T) {
	out := run(t, &fakeService{}, "/frobnicate", "frobnicate", "/exit")
	assert.Contains(t, out, "Unknown command: /frobnicate")
	assert.Contains(t, out, "Error: unknown command: frobnicate")
}

func TestRunStopsAtEOF(t *testing.T) {
	out := run(t, &fakeService{})
	assert.Contains(t, out, "Storefront Ledger")
}
