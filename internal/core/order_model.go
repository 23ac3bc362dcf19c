package core

import (
	"time"

	"github.com/shopspring/decimal"
)

const OrderStatusCompleted = "COMPLETED"

// Customer is identified by phone number; a first order with a new phone creates it.
type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// CustomerOrder is a completed point-of-sale order. Reconciled flips from
// false to true exactly once, when the store is reconciled.
type CustomerOrder struct {
	ID          int64           `json:"id"`
	StoreID     int64           `json:"store_id"`
	ProcessedBy *int64          `json:"processed_by,omitempty"`
	Customer    *Customer       `json:"customer,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Discount    decimal.Decimal `json:"discount"`
	Status      string          `json:"status"`
	Reconciled  bool            `json:"reconciled"`
	Lines       []OrderLine     `json:"lines"`
	CreatedAt   time.Time       `json:"created_at"`
}

// OrderLine is one product line of an order. Bundle component lines carry the
// bundle reference and a zero unit price. Excluded lines did not leave stock.
type OrderLine struct {
	ID          int64           `json:"id"`
	LineNumber  int             `json:"line_number"`
	ProductID   int64           `json:"product_id"`
	SKU         string          `json:"sku"`
	ProductName string          `json:"product_name"`
	BundleID    *int64          `json:"bundle_id,omitempty"`
	BundleSKU   *string         `json:"bundle_sku,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	IsExclusion bool            `json:"is_exclusion"`
	Quantity    int             `json:"quantity"`
}

// OrderRequest is the input for CreateOrder.
type OrderRequest struct {
	StoreID  int64
	Items    []OrderItem
	Discount decimal.Decimal
	// CustomerPhone, when set, links the order to the customer with that
	// phone, creating it with CustomerName if needed.
	CustomerName  string
	CustomerPhone string
}

// OrderItem is one requested SKU. ExcludedSKUs only applies to bundles: the
// listed components are recorded on the order but not taken from stock.
type OrderItem struct {
	SKU          string   `json:"sku"`
	Quantity     int      `json:"quantity"`
	ExcludedSKUs []string `json:"excluded_skus,omitempty"`
}

// OrderFilter narrows SearchOrders. Zero values match everything.
type OrderFilter struct {
	CustomerName  string
	CustomerPhone string
	StoreIDs      []int64
	Reconciled    *bool
	Limit         int
}

// OrderSummary counts orders and amounts split by reconciliation state.
type OrderSummary struct {
	TotalOrders        int             `json:"total_orders"`
	ReconciledOrders   int             `json:"reconciled_orders"`
	UnreconciledOrders int             `json:"unreconciled_orders"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	ReconciledAmount   decimal.Decimal `json:"reconciled_amount"`
	UnreconciledAmount decimal.Decimal `json:"unreconciled_amount"`
}
