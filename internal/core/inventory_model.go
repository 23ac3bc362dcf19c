package core

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// StockKey addresses one stock_levels row.
type StockKey struct {
	StoreID   int64
	ProductID int64
}

func compareStockKeys(a, b StockKey) int {
	if c := cmp.Compare(a.StoreID, b.StoreID); c != 0 {
		return c
	}
	return cmp.Compare(a.ProductID, b.ProductID)
}

// sortedStockKeys returns keys deduplicated and in lock order: ascending store
// id, then ascending product id. Every transaction acquires stock row locks in
// this order.
func sortedStockKeys(keys []StockKey) []StockKey {
	out := slices.Clone(keys)
	slices.SortFunc(out, compareStockKeys)
	return slices.Compact(out)
}

// StockLevel is a read view of a stock_levels row joined with its product.
type StockLevel struct {
	StoreID     int64           `json:"store_id"`
	ProductID   int64           `json:"product_id"`
	SKU         string          `json:"sku"`
	ProductName string          `json:"product_name"`
	ProductType ProductType     `json:"product_type"`
	BasePrice   decimal.Decimal `json:"base_price"`
	Quantity    int             `json:"quantity"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// InventoryTransfer is the immutable audit record of one stock movement.
// FromStoreID is nil for restocks into the master store.
type InventoryTransfer struct {
	ID            int64     `json:"id"`
	FromStoreID   *int64    `json:"from_store_id,omitempty"`
	ToStoreID     int64     `json:"to_store_id"`
	ProductID     int64     `json:"product_id"`
	SKU           string    `json:"sku"`
	Quantity      int       `json:"quantity"`
	TransferredBy *int64    `json:"transferred_by,omitempty"`
	TransferredAt time.Time `json:"transferred_at"`
}

// TransferFilter narrows ListTransfers. Zero values match everything.
type TransferFilter struct {
	StoreID   int64 // matches either side of the transfer
	ProductID int64
	Limit     int
}

// StockAudit is the conservation check for one product: every unit that
// entered the system through a restock is either on hand in some store or
// recorded on a non-excluded order line.
type StockAudit struct {
	ProductID int64  `json:"product_id"`
	SKU       string `json:"sku"`
	Restocked int    `json:"restocked"`
	OnHand    int    `json:"on_hand"`
	Sold      int    `json:"sold"`
}

// Balanced reports whether restocked units equal on-hand plus sold units.
func (a StockAudit) Balanced() bool {
	return a.Restocked == a.OnHand+a.Sold
}

// StockMovement describes one product moved by an allocation or return.
type StockMovement struct {
	ProductID   int64  `json:"product_id"`
	SKU         string `json:"sku"`
	Quantity    int    `json:"quantity"`
	FromBalance int    `json:"from_balance"`
	ToBalance   int    `json:"to_balance"`
}
