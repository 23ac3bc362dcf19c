package app

import (
	"context"

	"storefront-ledger/internal/core"
)

// ApplicationService is the single interface all adapters (CLI, Web, seed) call.
// It decouples presentation from business logic. Implementations must contain
// no fmt.Println, no ANSI codes, and no display logic of any kind.
type ApplicationService interface {
	// AuthenticateUser verifies credentials and returns a session on success.
	AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error)

	// GetUser returns a user profile by ID.
	GetUser(ctx context.Context, userID int64) (*UserResult, error)

	// CreateUser registers an operator account.
	CreateUser(ctx context.Context, req CreateUserRequest) (*UserResult, error)

	// BootstrapMaster creates the master store if it does not exist and returns it.
	BootstrapMaster(ctx context.Context, name string) (*core.Store, error)

	// CreateStore creates a virtual store, optionally owned by a user.
	CreateStore(ctx context.Context, req CreateStoreRequest) (*core.Store, error)

	// ListStores returns every store, master first.
	ListStores(ctx context.Context) (*StoreListResult, error)

	// AssignUser makes a user one of a store's admins.
	AssignUser(ctx context.Context, storeID int64, username string) error

	// CreateProduct adds a product to the catalog.
	CreateProduct(ctx context.Context, in core.ProductInput) (*core.Product, error)

	// ListProducts returns every active product.
	ListProducts(ctx context.Context) (*ProductListResult, error)

	// CreateBundle adds a bundle of existing products to the catalog.
	CreateBundle(ctx context.Context, in core.BundleInput) (*core.Bundle, error)

	// ListBundles returns every active bundle with its items.
	ListBundles(ctx context.Context) (*BundleListResult, error)

	// DeactivateProduct hides a product from new orders and allocations.
	DeactivateProduct(ctx context.Context, sku string) error

	// Restock adds units of a product to the master store.
	Restock(ctx context.Context, req RestockRequest) (*core.StockLevel, error)

	// InventoryView returns master stock for every active product.
	InventoryView(ctx context.Context) (*StockResult, error)

	// StoreInventory returns a store's positive stock, filtered by query.
	StoreInventory(ctx context.Context, storeID int64, query string) (*StockResult, error)

	// ListTransfers returns the most recent stock movements matching filter.
	ListTransfers(ctx context.Context, filter core.TransferFilter) (*TransferListResult, error)

	// AuditStock checks that every restocked unit of sku is on hand or sold.
	AuditStock(ctx context.Context, sku string) (*core.StockAudit, error)

	// Allocate moves items from the master store into a virtual store.
	Allocate(ctx context.Context, req AllocationRequest) (*core.AllocationResult, error)

	// ReturnToMaster moves items from a virtual store back to the master store.
	ReturnToMaster(ctx context.Context, req AllocationRequest) (*core.AllocationResult, error)

	// CreateOrder records a completed sale and decrements the store's stock.
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*core.CustomerOrder, error)

	// GetOrder returns a single order with its lines.
	GetOrder(ctx context.Context, orderID int64) (*core.CustomerOrder, error)

	// SearchOrders returns orders matching filter, newest first.
	SearchOrders(ctx context.Context, filter core.OrderFilter) (*OrderListResult, error)

	// OrderSummary aggregates orders, for one store when storeID is non-nil.
	OrderSummary(ctx context.Context, storeID *int64) (*core.OrderSummary, error)

	// Reconcile closes a store's unreconciled orders and optionally sweeps its
	// stock back to the master store.
	Reconcile(ctx context.Context, req ReconcileRequest) (*core.ReconciliationReport, error)

	// ReconciliationHistory returns a store's reconciliation logs, newest first.
	ReconciliationHistory(ctx context.Context, storeID int64) (*ReconciliationHistoryResult, error)
}
