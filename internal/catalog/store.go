// Package catalog serves the sections, events, products, slots and promo
// codes that shoppers browse and admins manage.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/joao-fontenele/scoutshop/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrUnlimitedStock    = errors.New("product is not stock-limited")
	ErrSlotInUse         = errors.New("slot has orders")
)

// Store is the catalog persistence. Get* return nil, nil when nothing matches;
// writes to a missing row return ErrNotFound.
type Store interface {
	ListSections(ctx context.Context) ([]domain.Section, error)
	CreateSection(ctx context.Context, section *domain.Section) error

	ListOpenEvents(ctx context.Context, now time.Time) ([]domain.Event, error)
	ListEvents(ctx context.Context) ([]domain.Event, error)
	GetEvent(ctx context.Context, id string) (*domain.Event, error)
	GetEventBySlug(ctx context.Context, slug string) (*domain.Event, error)
	CreateEvent(ctx context.Context, event *domain.Event) error
	UpdateEvent(ctx context.Context, event *domain.Event) error

	ListProducts(ctx context.Context, eventID string, activeOnly bool) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product *domain.Product) error
	UpdateProduct(ctx context.Context, product *domain.Product) error
	DeactivateProduct(ctx context.Context, id string) error
	// UpsertProducts inserts or updates by SKU in one transaction.
	UpsertProducts(ctx context.Context, eventID string, products []domain.Product) (created, updated int, err error)
	AdjustStock(ctx context.Context, productID string, delta int) (*domain.Product, error)

	// ListSlots fills Slot.Booked with the orders holding each slot.
	ListSlots(ctx context.Context, eventID string) ([]domain.Slot, error)
	CreateSlot(ctx context.Context, slot *domain.Slot) error
	// UpdateSlotCapacity refuses a capacity below the current bookings with
	// *pricing.CapacityBelowBookedError.
	UpdateSlotCapacity(ctx context.Context, slotID string, capacity int) (*domain.Slot, error)
	DeleteSlot(ctx context.Context, slotID string) error

	ListPromos(ctx context.Context, eventID string) ([]domain.PromoCode, error)
	CreatePromo(ctx context.Context, promo *domain.PromoCode) error
	UpdatePromo(ctx context.Context, id string, active *bool, discountCents *int64) (*domain.PromoCode, error)
}
