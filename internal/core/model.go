package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type StoreType string

const (
	StoreMaster  StoreType = "MASTER"
	StoreVirtual StoreType = "VIRTUAL"
)

// Store is a stock-holding location. Exactly one MASTER store holds the
// authoritative pool; VIRTUAL stores receive allocations from it.
type Store struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Type        StoreType `json:"type"`
	OwnerUserID *int64    `json:"owner_user_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type ProductType string

const (
	ProductBook    ProductType = "BOOK"
	ProductPencil  ProductType = "PENCIL"
	ProductApparel ProductType = "APPAREL"
)

// Product is an immutable catalog entry. Inactive products cannot be resolved.
type Product struct {
	ID         int64             `json:"id"`
	SKU        string            `json:"sku"`
	Type       ProductType       `json:"type"`
	Name       string            `json:"name"`
	BasePrice  decimal.Decimal   `json:"base_price"`
	Attributes ProductAttributes `json:"attributes"`
	IsActive   bool              `json:"is_active"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Bundle is sold under its own SKU at a flat price and expands into its items.
type Bundle struct {
	ID          int64           `json:"id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	IsActive    bool            `json:"is_active"`
	Items       []BundleItem    `json:"items"`
	CreatedAt   time.Time       `json:"created_at"`
}

// InactiveComponent returns the SKU of the first component that has been
// deactivated. Such a bundle can no longer be sold or allocated.
func (b *Bundle) InactiveComponent() (string, bool) {
	for _, it := range b.Items {
		if !it.Product.IsActive {
			return it.Product.SKU, true
		}
	}
	return "", false
}

// BundleItem is one component line of a bundle. Quantity is per bundle instance.
type BundleItem struct {
	LineNumber int     `json:"line_number"`
	Product    Product `json:"product"`
	Quantity   int     `json:"quantity"`
}

// Actor identifies the user on whose behalf a mutation runs.
// A zero UserID is recorded as NULL (system actions).
type Actor struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// SystemActor is used by bootstrap and maintenance tools.
var SystemActor = Actor{Username: "system"}

func (a Actor) userRef() *int64 {
	if a.UserID == 0 {
		return nil
	}
	id := a.UserID
	return &id
}

// ItemRequest is one requested SKU and quantity. The SKU may name a product or a bundle.
type ItemRequest struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}
