package app

import (
	"storefront-ledger/internal/core"

	"github.com/shopspring/decimal"
)

// CreateUserRequest is the input for registering an operator.
type CreateUserRequest struct {
	Username string
	Password string
	Role     string // defaults to STORE_ADMIN
}

// CreateStoreRequest is the input for creating a virtual store.
type CreateStoreRequest struct {
	Name          string
	OwnerUsername string // optional
}

// RestockRequest adds Quantity units of SKU to the master store.
type RestockRequest struct {
	SKU      string
	Quantity int
	Actor    core.Actor
}

// AllocationRequest moves Items between the master store and StoreID.
type AllocationRequest struct {
	StoreID int64
	Items   []core.ItemRequest
	Actor   core.Actor
}

// CreateOrderRequest is the input for recording a sale.
type CreateOrderRequest struct {
	StoreID       int64
	Items         []core.OrderItem
	Discount      decimal.Decimal
	CustomerName  string
	CustomerPhone string
	Actor         core.Actor
}

// ReconcileRequest closes out StoreID. ReturnStock sweeps its stock to the master store.
type ReconcileRequest struct {
	StoreID     int64
	ReturnStock bool
	Actor       core.Actor
}
