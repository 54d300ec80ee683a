package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/scoutshop/internal/domain"
	"github.com/joao-fontenele/scoutshop/internal/messaging"
	"github.com/joao-fontenele/scoutshop/internal/pricing"
	"github.com/joao-fontenele/scoutshop/internal/telemetry"
)

type CheckoutItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	// UnitPriceCents is the price the customer saw; when set it must match
	// the current product price.
	UnitPriceCents *int64 `json:"unit_price_cents,omitempty"`
}

type CheckoutRequest struct {
	Customer    domain.Customer    `json:"customer"`
	Fulfillment domain.Fulfillment `json:"fulfillment"`
	Address     string             `json:"address,omitempty"`
	ZipCode     string             `json:"zip_code,omitempty"`
	SlotID      string             `json:"slot_id,omitempty"`
	PromoCode   string             `json:"promo_code,omitempty"`
	Notes       string             `json:"notes,omitempty"`
	Items       []CheckoutItem     `json:"items"`
}

// normalize trims input and merges repeated products into one line so stock
// is checked against the full quantity.
func (r *CheckoutRequest) normalize() error {
	r.Customer.FirstName = strings.TrimSpace(r.Customer.FirstName)
	r.Customer.LastName = strings.TrimSpace(r.Customer.LastName)
	r.Customer.Email = strings.TrimSpace(r.Customer.Email)
	r.Customer.Phone = strings.TrimSpace(r.Customer.Phone)
	r.ZipCode = strings.TrimSpace(r.ZipCode)
	r.PromoCode = strings.TrimSpace(r.PromoCode)
	r.SlotID = strings.TrimSpace(r.SlotID)

	if r.Customer.LastName == "" {
		return &ValidationError{Field: "customer.last_name", Message: "is required"}
	}
	if _, err := mail.ParseAddress(r.Customer.Email); err != nil {
		return &ValidationError{Field: "customer.email", Message: "is not a valid email address"}
	}
	if !r.Fulfillment.Valid() {
		return &ValidationError{Field: "fulfillment", Message: "must be delivery, pickup or onsite"}
	}
	if r.Fulfillment == domain.FulfillmentDelivery && strings.TrimSpace(r.Address) == "" {
		return &ValidationError{Field: "address", Message: "is required for delivery"}
	}
	if len(r.Items) == 0 {
		return &ValidationError{Field: "items", Message: "must not be empty"}
	}

	merged := make([]CheckoutItem, 0, len(r.Items))
	index := make(map[string]int, len(r.Items))
	for _, item := range r.Items {
		if item.ProductID == "" {
			return &ValidationError{Field: "items.product_id", Message: "is required"}
		}
		if item.Quantity < 1 {
			return &ValidationError{Field: "items.quantity", Message: "must be at least 1"}
		}
		if item.UnitPriceCents != nil && *item.UnitPriceCents < 0 {
			return &ValidationError{Field: "items.unit_price_cents", Message: "must not be negative"}
		}
		if i, ok := index[item.ProductID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	r.Items = merged
	return nil
}

type TransitionRequest struct {
	Status domain.OrderStatus `json:"status"`
	// Override lets a PAID transition through even when the slot is full.
	Override bool `json:"override"`
	// Actor identifies the admin, for the override audit log.
	Actor string `json:"-"`
}

type Service struct {
	store     Store
	publisher Publisher
	objects   ObjectStore
	metrics   *telemetry.OrderMetrics
	logger    *slog.Logger
	now       func() time.Time
}

type ServiceOption func(*Service)

func WithPublisher(p Publisher) ServiceOption {
	return func(s *Service) { s.publisher = p }
}

func WithObjectStore(o ObjectStore) ServiceOption {
	return func(s *Service) { s.objects = o }
}

func WithMetrics(m *telemetry.OrderMetrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, logger *slog.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Checkout validates and places an order. Every fact the checks depend on is
// read inside one transaction that holds the event row, so concurrent
// checkouts of the same event are serialized.
func (s *Service) Checkout(ctx context.Context, eventID string, req CheckoutRequest) (*domain.Order, error) {
	order, eventName, err := s.checkout(ctx, eventID, req)
	if err != nil {
		if reason := rejectionReason(err); reason != "" {
			s.metrics.CheckoutRejected(ctx, reason)
		}
		return nil, err
	}

	s.attachQRCode(ctx, order)

	s.publish(ctx, messaging.TopicOrderCreated, order.ID, domain.OrderCreatedEvent{
		OrderID:              order.ID,
		OrderCode:            order.Code,
		EventID:              order.EventID,
		EventName:            eventName,
		Customer:             order.Customer,
		Fulfillment:          order.Fulfillment,
		Items:                order.Items,
		Totals:               order.Totals,
		PaymentCommunication: order.PaymentCommunication,
		Timestamp:            order.CreatedAt,
	})

	s.metrics.OrderCreated(ctx, order.EventID, order.Totals.TotalCents)
	s.logger.InfoContext(ctx, "order created",
		"order_id", order.ID, "order_code", order.Code, "event_id", order.EventID,
		"total_cents", order.Totals.TotalCents)

	return order, nil
}

func (s *Service) checkout(ctx context.Context, eventID string, req CheckoutRequest) (*domain.Order, string, error) {
	if err := req.normalize(); err != nil {
		return nil, "", err
	}

	var order *domain.Order
	var eventName string

	err := s.store.InTx(ctx, func(tx Tx) error {
		now := s.now()

		event, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if !event.AcceptsOrders(now) {
			return ErrEventClosed
		}
		eventName = event.Name
		cfg := event.Config

		ids := make([]string, len(req.Items))
		for i, item := range req.Items {
			ids[i] = item.ProductID
		}
		products, err := tx.ProductsByID(ctx, event.ID, ids)
		if err != nil {
			return fmt.Errorf("load products: %w", err)
		}
		byID := make(map[string]domain.Product, len(products))
		facts := make([]pricing.StockFact, 0, len(products))
		for _, p := range products {
			byID[p.ID] = p
			facts = append(facts, p.StockFact())
		}

		lines := make([]pricing.CartLine, len(req.Items))
		items := make([]domain.OrderItem, len(req.Items))
		for i, item := range req.Items {
			product, ok := byID[item.ProductID]
			if ok && item.UnitPriceCents != nil && *item.UnitPriceCents != product.PriceCents {
				return &PriceMismatchError{ProductID: product.ID, ExpectedCents: product.PriceCents, GotCents: *item.UnitPriceCents}
			}
			lines[i] = pricing.CartLine{ProductID: item.ProductID, Quantity: item.Quantity, UnitPriceCents: product.PriceCents}
			items[i] = domain.OrderItem{ProductID: item.ProductID, Name: product.Name, Quantity: item.Quantity, UnitPriceCents: product.PriceCents}
		}

		if stock := pricing.ValidateStock(lines, facts); !stock.Valid {
			return &StockUnavailableError{Result: stock}
		}

		var deliveryFee int64
		if req.Fulfillment == domain.FulfillmentDelivery {
			if err := pricing.CheckDeliveryEligibility(lines, cfg.Delivery(), req.ZipCode); err != nil {
				return err
			}
			deliveryFee = cfg.DeliveryFeeCents
		}

		if req.SlotID != "" {
			slot, capacity, err := tx.LockSlot(ctx, req.SlotID)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					return ErrSlotMismatch
				}
				return fmt.Errorf("lock slot: %w", err)
			}
			if !slotFits(slot, event.ID, req.Fulfillment) {
				return ErrSlotMismatch
			}
			if err := pricing.CheckSlotCapacity(capacity, ""); err != nil {
				return err
			}
		}

		var promoDiscount int64
		var promoCode string
		if req.PromoCode != "" {
			promo, err := tx.FindPromo(ctx, event.ID, req.PromoCode)
			if err != nil {
				return fmt.Errorf("find promo code: %w", err)
			}
			if promo != nil && promo.Active {
				promoDiscount = promo.DiscountCents
				promoCode = promo.Code
			}
		}

		totals := pricing.ComputeTotals(lines, cfg.BundleDiscountEnabled, deliveryFee)
		totals = pricing.ApplyPromoDiscount(totals, promoDiscount)

		seq, err := tx.NextOrderSequence(ctx, cfg.OrderCodePrefix, now.Year())
		if err != nil {
			return fmt.Errorf("next order sequence: %w", err)
		}

		for _, line := range lines {
			if byID[line.ProductID].Stock == nil {
				continue
			}
			if err := tx.TakeStock(ctx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}

		order = &domain.Order{
			ID:                   uuid.New().String(),
			EventID:              event.ID,
			Code:                 pricing.GenerateOrderCode(cfg.OrderCodePrefix, now.Year(), seq),
			Status:               domain.OrderStatusPending,
			Customer:             req.Customer,
			Fulfillment:          req.Fulfillment,
			Address:              strings.TrimSpace(req.Address),
			ZipCode:              req.ZipCode,
			SlotID:               req.SlotID,
			PromoCode:            promoCode,
			Notes:                strings.TrimSpace(req.Notes),
			Items:                items,
			Totals:               totals,
			PaymentCommunication: pricing.GeneratePaymentCommunication(req.Customer.FullName(), event.Name),
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if order.Fulfillment != domain.FulfillmentDelivery {
			order.Address = ""
		}

		return tx.InsertOrder(ctx, order)
	})
	if err != nil {
		return nil, "", err
	}

	return order, eventName, nil
}

func slotFits(slot *domain.Slot, eventID string, fulfillment domain.Fulfillment) bool {
	if slot.EventID != eventID {
		return false
	}
	switch fulfillment {
	case domain.FulfillmentDelivery:
		return slot.Kind == domain.SlotKindDelivery
	case domain.FulfillmentPickup:
		return slot.Kind == domain.SlotKindPickup
	}
	return false
}

func (s *Service) attachQRCode(ctx context.Context, order *domain.Order) {
	if s.objects == nil {
		return
	}

	png, err := QRCode(order.Code)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to render qr code", "error", err, "order_id", order.ID)
		return
	}

	url, err := s.objects.Put(ctx, "orders/"+order.ID+".png", "image/png", png)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to store qr code", "error", err, "order_id", order.ID)
		return
	}

	if err := s.store.SetQRCodeURL(ctx, order.ID, url); err != nil {
		s.logger.ErrorContext(ctx, "failed to save qr code url", "error", err, "order_id", order.ID)
		return
	}
	order.QRCodeURL = url
}

// Transition moves an order to req.Status. Confirming payment re-checks the
// slot capacity without counting the order itself, unless req.Override is set.
// Cancelling gives limited stock back.
func (s *Service) Transition(ctx context.Context, orderID string, req TransitionRequest) (*domain.Order, error) {
	if !req.Status.Valid() {
		return nil, &ValidationError{Field: "status", Message: "unknown status"}
	}

	var order *domain.Order
	var from domain.OrderStatus
	overridden := false

	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		order, err = tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		from = order.Status

		if !from.CanTransitionTo(req.Status) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, req.Status)
		}

		if req.Status == domain.OrderStatusPaid && order.SlotID != "" {
			_, capacity, err := tx.LockSlot(ctx, order.SlotID)
			if err != nil {
				return fmt.Errorf("lock slot: %w", err)
			}
			if err := pricing.CheckSlotCapacity(capacity, order.ID); err != nil {
				if !req.Override {
					return err
				}
				overridden = true
			}
		}

		if req.Status == domain.OrderStatusCancelled {
			for _, item := range order.Items {
				if err := tx.ReturnStock(ctx, item.ProductID, item.Quantity); err != nil {
					return fmt.Errorf("return stock: %w", err)
				}
			}
		}

		now := s.now()
		if err := tx.UpdateStatus(ctx, order.ID, req.Status, now); err != nil {
			return err
		}
		order.Status = req.Status
		order.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	if overridden {
		s.metrics.StatusOverride(ctx)
		s.logger.WarnContext(ctx, "slot capacity overridden",
			"order_id", order.ID, "slot_id", order.SlotID, "status", order.Status,
			"override", true, "actor", req.Actor)
	}

	s.publish(ctx, messaging.TopicOrderStatusChanged, order.ID, domain.OrderStatusChangedEvent{
		OrderID:   order.ID,
		OrderCode: order.Code,
		EventID:   order.EventID,
		Customer:  order.Customer,
		From:      from,
		To:        order.Status,
		Override:  overridden,
		Timestamp: order.UpdatedAt,
	})

	s.logger.InfoContext(ctx, "order status updated", "order_id", order.ID, "from", from, "status", order.Status)
	return order, nil
}

func (s *Service) publish(ctx context.Context, topic, key string, event any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, topic, key, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish event", "error", err, "topic", topic, "order_id", key)
	}
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrNotFound
	}
	return order, nil
}

func (s *Service) GetByCode(ctx context.Context, code string) (*domain.Order, error) {
	order, err := s.store.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrNotFound
	}
	return order, nil
}

func (s *Service) ListByEvent(ctx context.Context, eventID string, status domain.OrderStatus) ([]domain.Order, error) {
	if status != "" && !status.Valid() {
		return nil, &ValidationError{Field: "status", Message: "unknown status"}
	}
	return s.store.ListByEvent(ctx, eventID, status)
}

// EventExport is everything the admin exports of one event need.
type EventExport struct {
	Event  *domain.Event
	Slots  []domain.Slot
	Orders []domain.Order
}

func (e EventExport) SlotLabels() map[string]string {
	labels := make(map[string]string, len(e.Slots))
	for _, s := range e.Slots {
		labels[s.ID] = s.Label
	}
	return labels
}

func (s *Service) Export(ctx context.Context, eventID string, status domain.OrderStatus) (*EventExport, error) {
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, fmt.Errorf("event %s: %w", eventID, ErrNotFound)
	}

	slots, err := s.store.ListSlots(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}

	orders, err := s.ListByEvent(ctx, eventID, status)
	if err != nil {
		return nil, err
	}

	return &EventExport{Event: event, Slots: slots, Orders: orders}, nil
}
