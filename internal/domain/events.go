package domain

import (
	"time"

	"github.com/joao-fontenele/scoutshop/internal/pricing"
)

type OrderCreatedEvent struct {
	OrderID              string         `json:"order_id"`
	OrderCode            string         `json:"order_code"`
	EventID              string         `json:"event_id"`
	EventName            string         `json:"event_name"`
	Customer             Customer       `json:"customer"`
	Fulfillment          Fulfillment    `json:"fulfillment"`
	Items                []OrderItem    `json:"items"`
	Totals               pricing.Totals `json:"totals"`
	PaymentCommunication string         `json:"payment_communication"`
	Timestamp            time.Time      `json:"timestamp"`
}

type OrderStatusChangedEvent struct {
	OrderID   string      `json:"order_id"`
	OrderCode string      `json:"order_code"`
	EventID   string      `json:"event_id"`
	Customer  Customer    `json:"customer"`
	From      OrderStatus `json:"from"`
	To        OrderStatus `json:"to"`
	Override  bool        `json:"override"`
	Timestamp time.Time   `json:"timestamp"`
}
