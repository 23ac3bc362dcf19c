package core

import "github.com/shopspring/decimal"

// ItemPrice is the gross amount charged for one resolved order item: the
// product's base price per unit, or the bundle's flat price per instance.
// The bundle price does not change when components are excluded.
func ItemPrice(lines []ResolvedLine, qty int) decimal.Decimal {
	if len(lines) == 0 {
		return decimal.Zero
	}
	if b := lines[0].Bundle; b != nil {
		return b.Price.Mul(decimal.NewFromInt(int64(qty)))
	}
	return lines[0].Product.BasePrice.Mul(decimal.NewFromInt(int64(qty)))
}

// ApplyDiscount subtracts discount from gross and clamps the result at zero.
func ApplyDiscount(gross, discount decimal.Decimal) decimal.Decimal {
	total := gross.Sub(discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// lineUnitPrice is the price recorded on an order line. Bundle components are
// recorded at zero; the bundle's price is carried by the order total.
func lineUnitPrice(l ResolvedLine) decimal.Decimal {
	if l.Bundle != nil {
		return decimal.Zero
	}
	return l.Product.BasePrice
}
