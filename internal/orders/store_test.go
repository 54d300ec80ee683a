package orders

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/joao-fontenele/scoutshop/internal/domain"
	"github.com/joao-fontenele/scoutshop/internal/pricing"
)

// memStore is an in-memory Store. InTx runs one transaction at a time and
// restores stock and orders when fn fails.
type memStore struct {
	mu        sync.Mutex
	events    map[string]*domain.Event
	products  map[string]*domain.Product
	slots     map[string]*domain.Slot
	promos    []domain.PromoCode
	orders    map[string]*domain.Order
	sequences map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		events:    map[string]*domain.Event{},
		products:  map[string]*domain.Product{},
		slots:     map[string]*domain.Slot{},
		orders:    map[string]*domain.Order{},
		sequences: map[string]int{},
	}
}

func (s *memStore) addProduct(p domain.Product) {
	s.products[p.ID] = &p
}

func (s *memStore) stockOf(productID string) *int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[productID].Stock
}

func (s *memStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stock := make(map[string]*int, len(s.products))
	for id, p := range s.products {
		if p.Stock != nil {
			n := *p.Stock
			stock[id] = &n
		}
	}
	orders := make(map[string]domain.Order, len(s.orders))
	for id, o := range s.orders {
		orders[id] = *o
	}
	sequences := maps.Clone(s.sequences)

	if err := fn(memTx{s}); err != nil {
		for id, p := range s.products {
			p.Stock = stock[id]
		}
		s.orders = make(map[string]*domain.Order, len(orders))
		for id, o := range orders {
			s.orders[id] = &o
		}
		s.sequences = sequences
		return err
	}
	return nil
}

func (s *memStore) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[id]; ok {
		c := *o
		return &c, nil
	}
	return nil, nil
}

func (s *memStore) GetByCode(ctx context.Context, code string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.Code == code {
			c := *o
			return &c, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListByEvent(ctx context.Context, eventID string, status domain.OrderStatus) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	orders := []domain.Order{}
	for _, o := range s.orders {
		if o.EventID == eventID && (status == "" || o.Status == status) {
			orders = append(orders, *o)
		}
	}
	slices.SortFunc(orders, func(a, b domain.Order) int { return strings.Compare(a.Code, b.Code) })
	return orders, nil
}

func (s *memStore) SetQRCodeURL(ctx context.Context, orderID, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[orderID].QRCodeURL = url
	return nil
}

func (s *memStore) GetEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[eventID], nil
}

func (s *memStore) ListSlots(ctx context.Context, eventID string) ([]domain.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var slots []domain.Slot
	for _, slot := range s.slots {
		if slot.EventID != eventID {
			continue
		}
		c := *slot
		c.Booked = len(s.bookings(slot.ID))
		slots = append(slots, c)
	}
	slices.SortFunc(slots, func(a, b domain.Slot) int { return a.StartsAt.Compare(b.StartsAt) })
	return slots, nil
}

func (s *memStore) bookings(slotID string) []string {
	var ids []string
	for _, o := range s.orders {
		if o.SlotID == slotID && o.Status.HoldsSlot() {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

type memTx struct{ s *memStore }

func (t memTx) LockEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	e, ok := t.s.events[eventID]
	if !ok {
		return nil, fmt.Errorf("event %s: %w", eventID, ErrNotFound)
	}
	return e, nil
}

func (t memTx) ProductsByID(ctx context.Context, eventID string, productIDs []string) ([]domain.Product, error) {
	var products []domain.Product
	for _, id := range productIDs {
		p, ok := t.s.products[id]
		if !ok || p.EventID != eventID || !p.Active {
			continue
		}
		c := *p
		if p.Stock != nil {
			n := *p.Stock
			c.Stock = &n
		}
		products = append(products, c)
	}
	return products, nil
}

func (t memTx) LockSlot(ctx context.Context, slotID string) (*domain.Slot, pricing.SlotCapacity, error) {
	slot, ok := t.s.slots[slotID]
	if !ok {
		return nil, pricing.SlotCapacity{}, fmt.Errorf("slot %s: %w", slotID, ErrNotFound)
	}
	booked := t.s.bookings(slotID)
	c := *slot
	c.Booked = len(booked)
	return &c, pricing.SlotCapacity{SlotID: slot.ID, Capacity: slot.Capacity, BookedOrderIDs: booked}, nil
}

func (t memTx) FindPromo(ctx context.Context, eventID, code string) (*domain.PromoCode, error) {
	for _, p := range t.s.promos {
		if p.EventID == eventID && strings.EqualFold(p.Code, code) {
			return &p, nil
		}
	}
	return nil, nil
}

func (t memTx) NextOrderSequence(ctx context.Context, prefix string, year int) (int, error) {
	key := fmt.Sprintf("%s/%d", prefix, year)
	t.s.sequences[key]++
	return t.s.sequences[key], nil
}

func (t memTx) TakeStock(ctx context.Context, productID string, quantity int) error {
	p := t.s.products[productID]
	if p.Stock == nil || *p.Stock < quantity {
		return &StockUnavailableError{Result: pricing.StockResult{Errors: []error{
			&pricing.InsufficientStockError{ProductID: productID, Requested: quantity},
		}}}
	}
	n := *p.Stock - quantity
	p.Stock = &n
	return nil
}

func (t memTx) ReturnStock(ctx context.Context, productID string, quantity int) error {
	p := t.s.products[productID]
	if p.Stock != nil {
		n := *p.Stock + quantity
		p.Stock = &n
	}
	return nil
}

func (t memTx) InsertOrder(ctx context.Context, order *domain.Order) error {
	for _, o := range t.s.orders {
		if o.Code == order.Code {
			return fmt.Errorf("duplicate order code %s", order.Code)
		}
	}
	c := *order
	t.s.orders[order.ID] = &c
	return nil
}

func (t memTx) LockOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	o, ok := t.s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	c := *o
	return &c, nil
}

func (t memTx) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, at time.Time) error {
	o := t.s.orders[orderID]
	o.Status = status
	o.UpdatedAt = at
	return nil
}

type publishedEvent struct {
	topic string
	key   string
	event any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) Publish(ctx context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{topic: topic, key: key, event: event})
	return nil
}

type fakeObjects struct {
	keys []string
}

func (o *fakeObjects) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if contentType != "image/png" || len(data) == 0 {
		return "", fmt.Errorf("unexpected object %s %s", key, contentType)
	}
	o.keys = append(o.keys, key)
	return "https://cdn.test/" + key, nil
}
