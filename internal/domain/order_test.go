package domain

import (
	"testing"
	"time"
)

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusPending, OrderStatusPaid, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusDelivered, false},
		{OrderStatusPaid, OrderStatusPrepared, true},
		{OrderStatusPaid, OrderStatusPending, false},
		{OrderStatusPrepared, OrderStatusDelivered, true},
		{OrderStatusPrepared, OrderStatusCancelled, true},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusPending, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.want, got)
		}
	}
}

func TestOrderStatus_HoldsSlot(t *testing.T) {
	for _, s := range []OrderStatus{OrderStatusPending, OrderStatusPaid, OrderStatusPrepared} {
		if !s.HoldsSlot() || s.IsTerminal() {
			t.Errorf("%s should hold its slot", s)
		}
	}
	for _, s := range []OrderStatus{OrderStatusDelivered, OrderStatusCancelled} {
		if s.HoldsSlot() || !s.IsTerminal() {
			t.Errorf("%s should not hold its slot", s)
		}
	}
}

func TestCustomer_FullName(t *testing.T) {
	c := Customer{FirstName: " Marie", LastName: "Dupont "}
	if got := c.FullName(); got != "Dupont Marie" {
		t.Errorf("expected %q, got %q", "Dupont Marie", got)
	}
}

func TestEvent_AcceptsOrders(t *testing.T) {
	start := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	event := Event{Status: EventStatusOpen, StartsAt: start, EndsAt: start.Add(48 * time.Hour)}

	if !event.AcceptsOrders(start) {
		t.Error("expected orders to be accepted at opening time")
	}
	if event.AcceptsOrders(start.Add(-time.Minute)) {
		t.Error("expected orders to be refused before opening")
	}
	if event.AcceptsOrders(start.Add(48 * time.Hour)) {
		t.Error("expected orders to be refused at closing time")
	}

	event.Status = EventStatusClosed
	if event.AcceptsOrders(start.Add(time.Hour)) {
		t.Error("expected closed event to refuse orders")
	}
}
