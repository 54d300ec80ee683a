package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/joao-fontenele/scoutshop/internal/pricing"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusPrepared  OrderStatus = "PREPARED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:  {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:     {OrderStatusPrepared, OrderStatusCancelled},
	OrderStatusPrepared: {OrderStatusDelivered, OrderStatusCancelled},
}

// BookingStatuses are the statuses in which an order holds a place in its slot.
var BookingStatuses = []OrderStatus{OrderStatusPending, OrderStatusPaid, OrderStatusPrepared}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusPrepared, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return slices.Contains(orderTransitions[s], next)
}

func (s OrderStatus) HoldsSlot() bool {
	return slices.Contains(BookingStatuses, s)
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

type Fulfillment string

const (
	FulfillmentDelivery Fulfillment = "delivery"
	FulfillmentPickup   Fulfillment = "pickup"
	FulfillmentOnSite   Fulfillment = "onsite"
)

func (f Fulfillment) Valid() bool {
	return f == FulfillmentDelivery || f == FulfillmentPickup || f == FulfillmentOnSite
}

type Customer struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
}

// FullName is "Last First", the order staff use when matching bank transfers.
func (c Customer) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(c.LastName) + " " + strings.TrimSpace(c.FirstName))
}

type OrderItem struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type Order struct {
	ID                   string         `json:"id"`
	EventID              string         `json:"event_id"`
	Code                 string         `json:"code"`
	Status               OrderStatus    `json:"status"`
	Customer             Customer       `json:"customer"`
	Fulfillment          Fulfillment    `json:"fulfillment"`
	Address              string         `json:"address,omitempty"`
	ZipCode              string         `json:"zip_code,omitempty"`
	SlotID               string         `json:"slot_id,omitempty"`
	PromoCode            string         `json:"promo_code,omitempty"`
	Notes                string         `json:"notes,omitempty"`
	Items                []OrderItem    `json:"items"`
	Totals               pricing.Totals `json:"totals"`
	PaymentCommunication string         `json:"payment_communication"`
	QRCodeURL            string         `json:"qr_code_url,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// CartLines returns the order items in the shape the pricing engine expects.
func (o *Order) CartLines() []pricing.CartLine {
	lines := make([]pricing.CartLine, len(o.Items))
	for i, item := range o.Items {
		lines[i] = pricing.CartLine{
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		}
	}
	return lines
}
