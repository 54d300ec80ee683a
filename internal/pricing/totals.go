package pricing

import "fmt"

const (
	// BundleSize is the number of units that earns one bundle discount.
	BundleSize = 12
	// BundleDiscountCents is the flat amount taken off per complete bundle.
	BundleDiscountCents = 1000
)

// Totals is the price breakdown of an order, in cents.
type Totals struct {
	SubtotalCents       int64 `json:"subtotal_cents"`
	BundleDiscountCents int64 `json:"bundle_discount_cents"`
	DeliveryFeeCents    int64 `json:"delivery_fee_cents"`
	PromoDiscountCents  int64 `json:"promo_discount_cents"`
	TotalCents          int64 `json:"total_cents"`
}

// ComputeTotals prices a cart before any promo code. The bundle discount is a
// flat amount per complete group of BundleSize units and does not depend on
// unit prices.
//
// An empty cart, a non-positive quantity or a negative amount is a caller bug
// and panics.
func ComputeTotals(cart []CartLine, applyBundleDiscount bool, deliveryFeeCents int64) Totals {
	if len(cart) == 0 {
		panic("pricing: ComputeTotals called with an empty cart")
	}
	if deliveryFeeCents < 0 {
		panic(fmt.Sprintf("pricing: negative delivery fee %d", deliveryFeeCents))
	}

	var subtotal int64
	units := 0
	for _, line := range cart {
		if line.Quantity < 1 {
			panic(fmt.Sprintf("pricing: product %q has quantity %d", line.ProductID, line.Quantity))
		}
		if line.UnitPriceCents < 0 {
			panic(fmt.Sprintf("pricing: product %q has negative price %d", line.ProductID, line.UnitPriceCents))
		}
		subtotal += int64(line.Quantity) * line.UnitPriceCents
		units += line.Quantity
	}

	var bundle int64
	if applyBundleDiscount {
		bundle = int64(units/BundleSize) * BundleDiscountCents
	}

	return Totals{
		SubtotalCents:       subtotal,
		BundleDiscountCents: bundle,
		DeliveryFeeCents:    deliveryFeeCents,
		TotalCents:          max(0, subtotal-bundle) + deliveryFeeCents,
	}
}

// ApplyPromoDiscount folds an already validated promo discount into totals.
// The discount only reduces the goods part of the total, never the delivery
// fee, so the result is never negative. Whatever part of the discount does not
// fit is dropped and PromoDiscountCents records only the part that was used.
func ApplyPromoDiscount(totals Totals, promoDiscountCents int64) Totals {
	if promoDiscountCents <= 0 {
		return totals
	}

	goods := max(0, totals.TotalCents-totals.DeliveryFeeCents)
	applied := min(promoDiscountCents, goods)
	totals.PromoDiscountCents += applied
	totals.TotalCents -= applied
	return totals
}
