package domain

import (
	"time"

	"github.com/joao-fontenele/scoutshop/internal/pricing"
)

type Section struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type EventType string

const (
	EventTypeProductSale EventType = "product_sale"
	EventTypeMeal        EventType = "meal"
	EventTypeRaffle      EventType = "raffle"
)

func (t EventType) Valid() bool {
	return t == EventTypeProductSale || t == EventTypeMeal || t == EventTypeRaffle
}

type EventStatus string

const (
	EventStatusDraft  EventStatus = "draft"
	EventStatusOpen   EventStatus = "open"
	EventStatusClosed EventStatus = "closed"
)

func (s EventStatus) Valid() bool {
	return s == EventStatusDraft || s == EventStatusOpen || s == EventStatusClosed
}

type Event struct {
	ID          string      `json:"id"`
	SectionID   string      `json:"section_id"`
	Slug        string      `json:"slug"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Type        EventType   `json:"type"`
	Status      EventStatus `json:"status"`
	StartsAt    time.Time   `json:"starts_at"`
	EndsAt      time.Time   `json:"ends_at"`
	Config      EventConfig `json:"config"`
	CreatedAt   time.Time   `json:"created_at"`
}

// AcceptsOrders reports whether the event is open and now falls inside its window.
func (e *Event) AcceptsOrders(now time.Time) bool {
	return e.Status == EventStatusOpen && !now.Before(e.StartsAt) && now.Before(e.EndsAt)
}

type Product struct {
	ID          string `json:"id"`
	EventID     string `json:"event_id"`
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	PriceCents  int64  `json:"price_cents"`
	// Stock is nil for products that are not stock-limited.
	Stock     *int `json:"stock"`
	Active    bool `json:"active"`
	SortOrder int  `json:"sort_order"`
}

func (p Product) StockFact() pricing.StockFact {
	return pricing.StockFact{ProductID: p.ID, Available: p.Stock}
}

type SlotKind string

const (
	SlotKindPickup   SlotKind = "pickup"
	SlotKindDelivery SlotKind = "delivery"
)

func (k SlotKind) Valid() bool {
	return k == SlotKindPickup || k == SlotKindDelivery
}

type Slot struct {
	ID       string    `json:"id"`
	EventID  string    `json:"event_id"`
	Label    string    `json:"label"`
	Kind     SlotKind  `json:"kind"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	Capacity int       `json:"capacity"`
	Booked   int       `json:"booked"`
}

func (s Slot) Remaining() int {
	return max(0, s.Capacity-s.Booked)
}

type PromoCode struct {
	ID            string    `json:"id"`
	EventID       string    `json:"event_id"`
	Code          string    `json:"code"`
	DiscountCents int64     `json:"discount_cents"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}
