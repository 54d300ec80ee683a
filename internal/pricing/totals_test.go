package pricing

import (
	"math/rand"
	"testing"
)

func TestComputeTotals(t *testing.T) {
	t.Run("mixed cart of twelve bottles earns one bundle", func(t *testing.T) {
		cart := []CartLine{
			{ProductID: "cremant", Quantity: 6, UnitPriceCents: 1000},
			{ProductID: "rose", Quantity: 6, UnitPriceCents: 1200},
		}

		got := ComputeTotals(cart, true, 0)

		want := Totals{SubtotalCents: 13200, BundleDiscountCents: 1000, TotalCents: 12200}
		if got != want {
			t.Errorf("expected %+v, got %+v", want, got)
		}
	})

	t.Run("no bundle discount below twelve units", func(t *testing.T) {
		for units := 1; units < BundleSize; units++ {
			cart := []CartLine{{ProductID: "p", Quantity: units, UnitPriceCents: 900}}
			got := ComputeTotals(cart, true, 0)
			if got.BundleDiscountCents != 0 {
				t.Errorf("%d units: expected no bundle discount, got %d", units, got.BundleDiscountCents)
			}
		}
	})

	t.Run("one flat discount per complete dozen", func(t *testing.T) {
		for k := 0; k <= 10; k++ {
			cart := []CartLine{
				{ProductID: "a", Quantity: 1, UnitPriceCents: 100},
				{ProductID: "b", Quantity: 12*k + 11, UnitPriceCents: 100},
			}
			got := ComputeTotals(cart, true, 0)
			want := int64(k+1) * BundleDiscountCents
			if got.BundleDiscountCents != want {
				t.Errorf("%d units: expected bundle %d, got %d", 12*(k+1), want, got.BundleDiscountCents)
			}
		}
	})

	t.Run("bundle discount is independent of price", func(t *testing.T) {
		cheap := ComputeTotals([]CartLine{{ProductID: "p", Quantity: 24, UnitPriceCents: 50}}, true, 0)
		dear := ComputeTotals([]CartLine{{ProductID: "p", Quantity: 24, UnitPriceCents: 5000}}, true, 0)
		if cheap.BundleDiscountCents != dear.BundleDiscountCents {
			t.Errorf("expected equal discounts, got %d and %d", cheap.BundleDiscountCents, dear.BundleDiscountCents)
		}
	})

	t.Run("bundle discount disabled", func(t *testing.T) {
		got := ComputeTotals([]CartLine{{ProductID: "p", Quantity: 36, UnitPriceCents: 1000}}, false, 0)
		if got.BundleDiscountCents != 0 {
			t.Errorf("expected no bundle discount, got %d", got.BundleDiscountCents)
		}
		if got.TotalCents != 36000 {
			t.Errorf("expected total 36000, got %d", got.TotalCents)
		}
	})

	t.Run("discount larger than subtotal clamps to zero before delivery fee", func(t *testing.T) {
		got := ComputeTotals([]CartLine{{ProductID: "free", Quantity: 12, UnitPriceCents: 0}}, true, 500)
		if got.TotalCents != 500 {
			t.Errorf("expected total 500, got %d", got.TotalCents)
		}
	})

	t.Run("delivery fee is added", func(t *testing.T) {
		got := ComputeTotals([]CartLine{{ProductID: "p", Quantity: 2, UnitPriceCents: 1500}}, true, 700)
		if got.DeliveryFeeCents != 700 || got.TotalCents != 3700 {
			t.Errorf("unexpected totals %+v", got)
		}
	})

	t.Run("line order does not matter", func(t *testing.T) {
		cart := []CartLine{
			{ProductID: "a", Quantity: 5, UnitPriceCents: 1250},
			{ProductID: "b", Quantity: 3, UnitPriceCents: 990},
			{ProductID: "c", Quantity: 7, UnitPriceCents: 1800},
			{ProductID: "d", Quantity: 1, UnitPriceCents: 0},
		}
		want := ComputeTotals(cart, true, 300)

		rng := rand.New(rand.NewSource(42))
		for i := 0; i < 20; i++ {
			shuffled := append([]CartLine(nil), cart...)
			rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
			if got := ComputeTotals(shuffled, true, 300); got != want {
				t.Fatalf("permutation %v changed totals: %+v vs %+v", shuffled, got, want)
			}
		}
	})

	t.Run("large quantities do not overflow", func(t *testing.T) {
		got := ComputeTotals([]CartLine{{ProductID: "p", Quantity: 1_000_000, UnitPriceCents: 1_000_000_00}}, false, 0)
		if got.SubtotalCents != 100_000_000_000_000 {
			t.Errorf("unexpected subtotal %d", got.SubtotalCents)
		}
	})
}

func TestComputeTotals_Preconditions(t *testing.T) {
	tests := []struct {
		name string
		cart []CartLine
		fee  int64
	}{
		{name: "empty cart", cart: nil},
		{name: "zero quantity", cart: []CartLine{{ProductID: "p", Quantity: 0, UnitPriceCents: 100}}},
		{name: "negative quantity", cart: []CartLine{{ProductID: "p", Quantity: -2, UnitPriceCents: 100}}},
		{name: "negative price", cart: []CartLine{{ProductID: "p", Quantity: 1, UnitPriceCents: -1}}},
		{name: "negative fee", cart: []CartLine{{ProductID: "p", Quantity: 1, UnitPriceCents: 1}}, fee: -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			ComputeTotals(tt.cart, true, tt.fee)
		})
	}
}

func TestApplyPromoDiscount(t *testing.T) {
	base := ComputeTotals([]CartLine{{ProductID: "p", Quantity: 3, UnitPriceCents: 1000}}, true, 0)

	t.Run("subtracts the discount", func(t *testing.T) {
		got := ApplyPromoDiscount(base, 500)
		if got.TotalCents != 2500 || got.PromoDiscountCents != 500 {
			t.Errorf("unexpected totals %+v", got)
		}
	})

	t.Run("zero discount is a no-op", func(t *testing.T) {
		if got := ApplyPromoDiscount(base, 0); got != base {
			t.Errorf("expected %+v, got %+v", base, got)
		}
	})

	t.Run("excess discount is capped, not carried over", func(t *testing.T) {
		got := ApplyPromoDiscount(base, 10_000)
		if got.TotalCents != 0 {
			t.Errorf("expected total 0, got %d", got.TotalCents)
		}
		if got.PromoDiscountCents != 3000 {
			t.Errorf("expected applied discount 3000, got %d", got.PromoDiscountCents)
		}
	})

	t.Run("delivery fee is never discounted", func(t *testing.T) {
		withFee := ComputeTotals([]CartLine{{ProductID: "p", Quantity: 1, UnitPriceCents: 1000}}, true, 500)
		got := ApplyPromoDiscount(withFee, 5000)
		if got.TotalCents != 500 {
			t.Errorf("expected total 500, got %d", got.TotalCents)
		}
	})

	t.Run("never negative", func(t *testing.T) {
		for total := int64(0); total <= 3000; total += 250 {
			for promo := int64(0); promo <= 5000; promo += 333 {
				got := ApplyPromoDiscount(Totals{SubtotalCents: total, TotalCents: total}, promo)
				if got.TotalCents < 0 {
					t.Fatalf("total %d promo %d: negative result %d", total, promo, got.TotalCents)
				}
			}
		}
	})

	t.Run("keeps the totals invariant", func(t *testing.T) {
		in := ComputeTotals([]CartLine{{ProductID: "p", Quantity: 13, UnitPriceCents: 800}}, true, 400)
		got := ApplyPromoDiscount(in, 1500)
		want := max(0, got.SubtotalCents-got.BundleDiscountCents-got.PromoDiscountCents) + got.DeliveryFeeCents
		if got.TotalCents != want {
			t.Errorf("expected total %d, got %d", want, got.TotalCents)
		}
	})
}
