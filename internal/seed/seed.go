// Package seed loads a YAML description of a catalog and its stores and
// replays it through the application service. It is meant for an empty
// database: users, products and stores that already exist are reported as
// errors.
package seed

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"storefront-ledger/internal/app"
	"storefront-ledger/internal/core"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// File is the root of a seed document.
type File struct {
	Master   string    `yaml:"master"`
	Users    []User    `yaml:"users"`
	Products []Product `yaml:"products"`
	Bundles  []Bundle  `yaml:"bundles"`
	Stores   []Store   `yaml:"stores"`
}

type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

// Product is a catalog entry plus the quantity restocked into the master
// store. At most one of Book, Pencil or Apparel is set, matching Type.
type Product struct {
	SKU     string                  `yaml:"sku"`
	Type    core.ProductType        `yaml:"type"`
	Name    string                  `yaml:"name"`
	Price   string                  `yaml:"price"`
	Stock   int                     `yaml:"stock"`
	Book    *core.BookAttributes    `yaml:"book"`
	Pencil  *core.PencilAttributes  `yaml:"pencil"`
	Apparel *core.ApparelAttributes `yaml:"apparel"`
}

type Bundle struct {
	SKU         string `yaml:"sku"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Price       string `yaml:"price"`
	Items       []Item `yaml:"items"`
}

type Item struct {
	SKU      string `yaml:"sku"`
	Quantity int    `yaml:"quantity"`
}

// Store is a virtual store. Allocate is moved out of the master store once
// the store exists; bundle SKUs are exploded like any other allocation.
type Store struct {
	Name     string   `yaml:"name"`
	Owner    string   `yaml:"owner"`
	Admins   []string `yaml:"admins"`
	Allocate []Item   `yaml:"allocate"`
}

// Parse decodes a seed document. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse seed YAML: %w", err)
	}
	if f.Master == "" {
		f.Master = "Master Store"
	}
	return &f, nil
}

// LoadFile reads and parses the seed document at path.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}
	return Parse(data)
}

// Apply replays f in dependency order: master store, users, products and
// their restocks, bundles, then stores with their admins and allocations.
func Apply(ctx context.Context, svc app.ApplicationService, f *File, logger *zap.Logger) error {
	master, err := svc.BootstrapMaster(ctx, f.Master)
	if err != nil {
		return fmt.Errorf("master store: %w", err)
	}
	logger.Info("master store ready", zap.Int64("store_id", master.ID), zap.String("name", master.Name))

	for _, u := range f.Users {
		if _, err := svc.CreateUser(ctx, app.CreateUserRequest{Username: u.Username, Password: u.Password, Role: u.Role}); err != nil {
			return fmt.Errorf("user %s: %w", u.Username, err)
		}
		logger.Info("user created", zap.String("username", u.Username))
	}

	for _, p := range f.Products {
		in, err := p.input()
		if err != nil {
			return err
		}
		if _, err := svc.CreateProduct(ctx, in); err != nil {
			return fmt.Errorf("product %s: %w", p.SKU, err)
		}
		if p.Stock > 0 {
			if _, err := svc.Restock(ctx, app.RestockRequest{SKU: p.SKU, Quantity: p.Stock, Actor: core.SystemActor}); err != nil {
				return fmt.Errorf("restock %s: %w", p.SKU, err)
			}
		}
		logger.Info("product created", zap.String("sku", p.SKU), zap.Int("stock", p.Stock))
	}

	for _, b := range f.Bundles {
		in, err := b.input()
		if err != nil {
			return err
		}
		if _, err := svc.CreateBundle(ctx, in); err != nil {
			return fmt.Errorf("bundle %s: %w", b.SKU, err)
		}
		logger.Info("bundle created", zap.String("sku", b.SKU), zap.Int("items", len(b.Items)))
	}

	for _, s := range f.Stores {
		st, err := svc.CreateStore(ctx, app.CreateStoreRequest{Name: s.Name, OwnerUsername: s.Owner})
		if err != nil {
			return fmt.Errorf("store %s: %w", s.Name, err)
		}
		for _, admin := range s.Admins {
			if err := svc.AssignUser(ctx, st.ID, admin); err != nil {
				return fmt.Errorf("store %s: assign %s: %w", s.Name, admin, err)
			}
		}
		if len(s.Allocate) > 0 {
			if _, err := svc.Allocate(ctx, app.AllocationRequest{
				StoreID: st.ID,
				Items:   itemRequests(s.Allocate),
				Actor:   core.SystemActor,
			}); err != nil {
				return fmt.Errorf("store %s: allocate: %w", s.Name, err)
			}
		}
		logger.Info("store created", zap.Int64("store_id", st.ID), zap.String("name", s.Name))
	}
	return nil
}

func (p Product) input() (core.ProductInput, error) {
	price, err := parsePrice(p.Price)
	if err != nil {
		return core.ProductInput{}, fmt.Errorf("product %s: %w", p.SKU, err)
	}
	return core.ProductInput{
		SKU:        p.SKU,
		Type:       p.Type,
		Name:       p.Name,
		BasePrice:  price,
		Attributes: core.ProductAttributes{Book: p.Book, Pencil: p.Pencil, Apparel: p.Apparel},
	}, nil
}

func (b Bundle) input() (core.BundleInput, error) {
	price, err := parsePrice(b.Price)
	if err != nil {
		return core.BundleInput{}, fmt.Errorf("bundle %s: %w", b.SKU, err)
	}
	return core.BundleInput{
		SKU:         b.SKU,
		Name:        b.Name,
		Description: b.Description,
		Price:       price,
		Items:       itemRequests(b.Items),
	}, nil
}

func parsePrice(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid price %q: %w", raw, err)
	}
	return d, nil
}

func itemRequests(items []Item) []core.ItemRequest {
	out := make([]core.ItemRequest, len(items))
	for i, it := range items {
		out[i] = core.ItemRequest{SKU: it.SKU, Quantity: it.Quantity}
	}
	return out
}
