package orders

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/joao-fontenele/scoutshop/internal/domain"
	"github.com/joao-fontenele/scoutshop/internal/pricing"
)

func TestEuros(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{1250, "12.50"},
		{100000, "1000.00"},
	}

	for _, tt := range tests {
		if got := Euros(tt.cents); got != tt.want {
			t.Errorf("Euros(%d): expected %s, got %s", tt.cents, tt.want, got)
		}
	}
}

func exportOrders() []domain.Order {
	return []domain.Order{
		{
			ID:          "o-1",
			Code:        "CRE-2026-00001",
			Status:      domain.OrderStatusPaid,
			Customer:    domain.Customer{FirstName: "Marie", LastName: "Dupont", Email: "marie@example.com"},
			Fulfillment: domain.FulfillmentPickup,
			SlotID:      "slot-pickup",
			PromoCode:   "SCOUT5",
			Notes:       "sonner, deux fois",
			Items: []domain.OrderItem{
				{ProductID: "p-brut", Name: "Crémant brut", Quantity: 12, UnitPriceCents: 1250},
				{ProductID: "p-rose", Name: "Crémant rosé", Quantity: 1, UnitPriceCents: 1400},
			},
			Totals:               pricing.Totals{SubtotalCents: 16400, BundleDiscountCents: 1000, PromoDiscountCents: 500, TotalCents: 14900},
			PaymentCommunication: "Dupont Marie - Crémant 26",
			CreatedAt:            testNow,
		},
		{
			ID:          "o-2",
			Code:        "CRE-2026-00002",
			Status:      domain.OrderStatusCancelled,
			Customer:    domain.Customer{FirstName: "Paul", LastName: "Martin", Email: "paul@example.com"},
			Fulfillment: domain.FulfillmentPickup,
			SlotID:      "slot-pickup",
			Items:       []domain.OrderItem{{ProductID: "p-rose", Name: "Crémant rosé", Quantity: 1, UnitPriceCents: 1400}},
			Totals:      pricing.Totals{SubtotalCents: 1400, TotalCents: 1400},
			CreatedAt:   testNow,
		},
	}
}

func TestWriteOrdersCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteOrdersCSV(&buf, exportOrders(), map[string]string{"slot-pickup": "Samedi matin"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("failed to read csv back: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header and 2 rows, got %d", len(records))
	}

	row := make(map[string]string, len(csvHeader))
	for i, column := range csvHeader {
		row[column] = records[1][i]
	}

	want := map[string]string{
		"code":            "CRE-2026-00001",
		"slot":            "Samedi matin",
		"items":           "12x Crémant brut, 1x Crémant rosé",
		"units":           "13",
		"subtotal":        "164.00",
		"bundle_discount": "10.00",
		"promo_discount":  "5.00",
		"delivery_fee":    "0.00",
		"total":           "149.00",
		"notes":           "sonner, deux fois",
		"created_at":      "2026-03-10T12:00:00Z",
	}
	for column, value := range want {
		if row[column] != value {
			t.Errorf("column %s: expected %q, got %q", column, value, row[column])
		}
	}
}

func TestSlotsCalendar(t *testing.T) {
	event := &domain.Event{
		ID:     "ev-1",
		Name:   "Vente de Crémant 2026",
		Config: domain.EventConfig{PickupLocation: "Local scout"},
	}
	slots := []domain.Slot{{
		ID:       "slot-pickup",
		Label:    "Samedi matin",
		Kind:     domain.SlotKindPickup,
		StartsAt: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		EndsAt:   time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
		Capacity: 10,
		Booked:   1,
	}}

	out := SlotsCalendar(event, slots, exportOrders(), testNow)

	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"METHOD:PUBLISH",
		"UID:slot-pickup@scoutshop",
		"DTSTART:20260314T090000Z",
		"LOCATION:Local scout",
		"CRE-2026-00001 Dupont Marie",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in calendar:\n%s", want, out)
		}
	}
	if strings.Contains(out, "CRE-2026-00002") {
		t.Error("expected cancelled orders to be left out")
	}
}
