package orders

import (
	"context"
	"errors"
	"time"

	"github.com/joao-fontenele/scoutshop/internal/domain"
	"github.com/joao-fontenele/scoutshop/internal/pricing"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrEventClosed       = errors.New("event is not accepting orders")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrSlotMismatch      = errors.New("slot cannot be used for this order")
)

// Store is the persistence the orders service needs. Reads outside a
// transaction return nil, nil when nothing matches.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error

	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByCode(ctx context.Context, code string) (*domain.Order, error)
	ListByEvent(ctx context.Context, eventID string, status domain.OrderStatus) ([]domain.Order, error)
	SetQRCodeURL(ctx context.Context, orderID, url string) error

	GetEvent(ctx context.Context, eventID string) (*domain.Event, error)
	ListSlots(ctx context.Context, eventID string) ([]domain.Slot, error)
}

// Tx is one checkout or status change. Lock* methods hold the row until the
// transaction ends and return ErrNotFound when it does not exist.
type Tx interface {
	LockEvent(ctx context.Context, eventID string) (*domain.Event, error)
	ProductsByID(ctx context.Context, eventID string, productIDs []string) ([]domain.Product, error)
	LockSlot(ctx context.Context, slotID string) (*domain.Slot, pricing.SlotCapacity, error)
	// FindPromo matches code case-insensitively; nil when there is none.
	FindPromo(ctx context.Context, eventID, code string) (*domain.PromoCode, error)
	// NextOrderSequence hands out order numbers per prefix and year, so codes
	// stay unique across events sharing a prefix.
	NextOrderSequence(ctx context.Context, prefix string, year int) (int, error)
	TakeStock(ctx context.Context, productID string, quantity int) error
	ReturnStock(ctx context.Context, productID string, quantity int) error
	InsertOrder(ctx context.Context, order *domain.Order) error
	LockOrder(ctx context.Context, orderID string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, at time.Time) error
}

// Publisher sends order events to the message bus.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

// ObjectStore keeps generated files and returns their public URL.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}
