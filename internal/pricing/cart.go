// Package pricing prices a cart and decides whether it may be ordered.
//
// Everything here is a pure function over snapshots the caller loads from
// storage: totals, promo folding, delivery eligibility, stock and slot
// capacity checks, and the order code / payment memo strings. Nothing in this
// package logs, blocks or touches shared state.
package pricing

// CartLine is one product line of a cart. UnitPriceCents is expected to have
// been checked against the product's current price by the caller.
type CartLine struct {
	ProductID      string `json:"product_id"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// TotalUnits is the number of physical units in the cart, not the number of lines.
func TotalUnits(cart []CartLine) int {
	units := 0
	for _, line := range cart {
		units += line.Quantity
	}
	return units
}
