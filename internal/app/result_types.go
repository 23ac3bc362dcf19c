package app

import (
	"time"

	"storefront-ledger/internal/core"
)

// UserSession is returned on successful authentication.
type UserSession struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// UserResult is a user profile without credentials.
type UserResult struct {
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// StoreListResult holds every store.
type StoreListResult struct {
	Stores []core.Store `json:"stores"`
}

// ProductListResult holds the active catalog products.
type ProductListResult struct {
	Products []core.Product `json:"products"`
}

// BundleListResult holds the active bundles.
type BundleListResult struct {
	Bundles []core.Bundle `json:"bundles"`
}

// StockResult holds stock rows for one store.
type StockResult struct {
	StoreID int64             `json:"store_id"`
	Levels  []core.StockLevel `json:"levels"`
}

// TransferListResult holds stock movements, newest first.
type TransferListResult struct {
	Transfers []core.InventoryTransfer `json:"transfers"`
}

// OrderListResult holds orders matching a search.
type OrderListResult struct {
	Orders []core.CustomerOrder `json:"orders"`
}

// ReconciliationHistoryResult holds a store's reconciliation logs.
type ReconciliationHistoryResult struct {
	StoreID int64                    `json:"store_id"`
	Logs    []core.ReconciliationLog `json:"logs"`
}
