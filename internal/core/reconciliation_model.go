package core

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// ReconciliationReport summarizes one reconciliation run. It is also the
// document stored in reconciliation_logs.details_json.
type ReconciliationReport struct {
	StoreID           int64           `json:"storeId"`
	StoreName         string          `json:"storeName"`
	ReconciledAt      time.Time       `json:"reconciledAt"`
	ReconciledBy      string          `json:"reconciledBy,omitempty"`
	OrdersReconciled  int             `json:"ordersReconciled"`
	TotalRevenue      decimal.Decimal `json:"totalRevenue"`
	TotalItemsSold    int             `json:"totalItemsSold"`
	SoldItems         []SoldItem      `json:"soldItems"`
	InventoryReturned bool            `json:"inventoryReturned"`
	ReturnedItems     []ReturnedItem  `json:"returnedItems"`
	AssignedAdmins    []string        `json:"assignedAdmins"`
}

// SoldItem aggregates the order lines of one SKU. Revenue is the sum of
// unit price times quantity, so bundle components contribute zero.
// QuantitySold counts every line; QuantityExcluded is the part of it that
// was excluded from a bundle and never left stock.
type SoldItem struct {
	SKU              string          `json:"sku"`
	Name             string          `json:"name"`
	QuantitySold     int             `json:"quantitySold"`
	QuantityExcluded int             `json:"quantityExcluded"`
	Revenue          decimal.Decimal `json:"revenue"`
}

// ReturnedItem is one product swept back to the master store.
type ReturnedItem struct {
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// ReconciliationLog is the immutable persisted record of a reconciliation.
type ReconciliationLog struct {
	ID                int64                `json:"id"`
	StoreID           int64                `json:"store_id"`
	ReconciledBy      *int64               `json:"reconciled_by,omitempty"`
	TotalRevenue      decimal.Decimal      `json:"total_revenue"`
	TotalItemsSold    int                  `json:"total_items_sold"`
	InventoryReturned bool                 `json:"inventory_returned"`
	Details           ReconciliationReport `json:"details"`
	ReconciledAt      time.Time            `json:"reconciled_at"`
}

// SummarizeSales groups order lines by SKU, ordered by SKU, and returns the
// total quantity over all lines. Excluded bundle components are counted and
// also tallied in QuantityExcluded.
func SummarizeSales(lines []OrderLine) ([]SoldItem, int) {
	index := make(map[string]int)
	items := []SoldItem{}
	total := 0
	for _, l := range lines {
		total += l.Quantity
		revenue := l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
		i, ok := index[l.SKU]
		if !ok {
			i = len(items)
			index[l.SKU] = i
			items = append(items, SoldItem{SKU: l.SKU, Name: l.ProductName, Revenue: decimal.Zero})
		}
		items[i].QuantitySold += l.Quantity
		items[i].Revenue = items[i].Revenue.Add(revenue)
		if l.IsExclusion {
			items[i].QuantityExcluded += l.Quantity
		}
	}
	slices.SortFunc(items, func(a, b SoldItem) int { return cmp.Compare(a.SKU, b.SKU) })
	return items, total
}
