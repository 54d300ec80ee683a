package orders

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/scoutshop/internal/domain"
)

var csvHeader = []string{
	"code", "status", "created_at", "last_name", "first_name", "email", "phone",
	"fulfillment", "address", "zip_code", "slot", "items", "units",
	"subtotal", "bundle_discount", "promo_code", "promo_discount", "delivery_fee", "total",
	"payment_communication", "notes",
}

// Euros formats cents as a decimal euro amount with two places, e.g. "12.50".
func Euros(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// WriteOrdersCSV writes one row per order. slotLabels maps slot ids to the
// label shown in the slot column.
func WriteOrdersCSV(w io.Writer, orders []domain.Order, slotLabels map[string]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, o := range orders {
		items := make([]string, len(o.Items))
		for i, item := range o.Items {
			items[i] = fmt.Sprintf("%dx %s", item.Quantity, item.Name)
		}

		record := []string{
			o.Code,
			string(o.Status),
			o.CreatedAt.UTC().Format(time.RFC3339),
			o.Customer.LastName,
			o.Customer.FirstName,
			o.Customer.Email,
			o.Customer.Phone,
			string(o.Fulfillment),
			o.Address,
			o.ZipCode,
			slotLabels[o.SlotID],
			strings.Join(items, ", "),
			strconv.Itoa(totalUnits(o)),
			Euros(o.Totals.SubtotalCents),
			Euros(o.Totals.BundleDiscountCents),
			o.PromoCode,
			Euros(o.Totals.PromoDiscountCents),
			Euros(o.Totals.DeliveryFeeCents),
			Euros(o.Totals.TotalCents),
			o.PaymentCommunication,
			o.Notes,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func totalUnits(o domain.Order) int {
	units := 0
	for _, item := range o.Items {
		units += item.Quantity
	}
	return units
}

// SlotsCalendar renders the event's pickup and delivery slots as an iCalendar
// feed. Each slot's description lists the codes of the orders booked in it.
func SlotsCalendar(event *domain.Event, slots []domain.Slot, orders []domain.Order, now time.Time) string {
	bySlot := make(map[string][]string)
	for _, o := range orders {
		if o.SlotID == "" || !o.Status.HoldsSlot() {
			continue
		}
		bySlot[o.SlotID] = append(bySlot[o.SlotID], fmt.Sprintf("%s %s", o.Code, o.Customer.FullName()))
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//scoutshop//slots//FR")
	cal.SetName(event.Name)

	for _, s := range slots {
		e := cal.AddEvent(s.ID + "@scoutshop")
		e.SetDtStampTime(now)
		e.SetStartAt(s.StartsAt)
		e.SetEndAt(s.EndsAt)
		e.SetSummary(fmt.Sprintf("%s: %s (%d/%d)", event.Name, s.Label, s.Booked, s.Capacity))
		if s.Kind == domain.SlotKindPickup && event.Config.PickupLocation != "" {
			e.SetLocation(event.Config.PickupLocation)
		}
		if booked := bySlot[s.ID]; len(booked) > 0 {
			e.SetDescription(strings.Join(booked, "\n"))
		}
	}

	return cal.Serialize()
}
