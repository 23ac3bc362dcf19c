package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// ResolvedLine is one concrete product line produced by resolving a SKU.
// For bundles there is one line per component per bundle instance, and
// Quantity is the component's per-instance quantity.
type ResolvedLine struct {
	Product    Product
	Bundle     *Bundle
	Quantity   int
	IsExcluded bool
}

// ProductTotal is the aggregated quantity of one product across resolved lines.
type ProductTotal struct {
	Product  Product
	Quantity int
}

// BundleResolver expands a requested SKU and quantity into product lines.
type BundleResolver struct {
	catalog Catalog
}

func NewBundleResolver(catalog Catalog) *BundleResolver {
	return &BundleResolver{catalog: catalog}
}

// Resolve looks sku up as a product first, then as a bundle. Components whose
// SKU is in excluded are returned with IsExcluded set. excluded is ignored for
// plain products.
func (r *BundleResolver) Resolve(ctx context.Context, q Querier, sku string, qty int, excluded []string) ([]ResolvedLine, error) {
	if qty < 1 {
		return nil, invalidInput("quantity for %s must be at least 1, got %d", sku, qty)
	}

	product, err := r.catalog.FindProductBySKU(ctx, q, sku)
	if err == nil {
		return []ResolvedLine{{Product: *product, Quantity: qty}}, nil
	}
	if !errors.Is(err, ErrSkuNotFound) {
		return nil, err
	}

	bundle, err := r.catalog.FindBundleBySKU(ctx, q, sku)
	if err != nil {
		return nil, err
	}
	if len(bundle.Items) == 0 {
		return nil, fmt.Errorf("bundle %s has no items", bundle.SKU)
	}
	return ExplodeBundle(bundle, qty, excluded), nil
}

// ResolveAll resolves every item and returns the lines in request order.
func (r *BundleResolver) ResolveAll(ctx context.Context, q Querier, items []ItemRequest) ([]ResolvedLine, error) {
	if len(items) == 0 {
		return nil, invalidInput("at least one item is required")
	}
	var lines []ResolvedLine
	for _, item := range items {
		resolved, err := r.Resolve(ctx, q, item.SKU, item.Quantity, nil)
		if err != nil {
			return nil, err
		}
		lines = append(lines, resolved...)
	}
	return lines, nil
}

// ExplodeBundle returns one line per component per instance, in item order.
func ExplodeBundle(bundle *Bundle, instances int, excluded []string) []ResolvedLine {
	lines := make([]ResolvedLine, 0, instances*len(bundle.Items))
	for i := 0; i < instances; i++ {
		for _, item := range bundle.Items {
			lines = append(lines, ResolvedLine{
				Product:    item.Product,
				Bundle:     bundle,
				Quantity:   item.Quantity,
				IsExcluded: slices.Contains(excluded, item.Product.SKU),
			})
		}
	}
	return lines
}

// TotalsByProduct sums the quantities of non-excluded lines per product, in
// ascending product id order. Stock checks run against these totals so a
// shortfall is reported once per product.
func TotalsByProduct(lines []ResolvedLine) []ProductTotal {
	index := make(map[int64]int)
	var totals []ProductTotal
	for _, l := range lines {
		if l.IsExcluded {
			continue
		}
		if i, ok := index[l.Product.ID]; ok {
			totals[i].Quantity += l.Quantity
			continue
		}
		index[l.Product.ID] = len(totals)
		totals = append(totals, ProductTotal{Product: l.Product, Quantity: l.Quantity})
	}
	slices.SortFunc(totals, func(a, b ProductTotal) int {
		switch {
		case a.Product.ID < b.Product.ID:
			return -1
		case a.Product.ID > b.Product.ID:
			return 1
		}
		return 0
	})
	return totals
}
