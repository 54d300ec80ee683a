package pricing

import (
	"errors"
	"fmt"
)

// Error kinds, usable with errors.Is on any error returned by this package.
var (
	ErrDeliveryDisabled    = errors.New("delivery is not available for this event")
	ErrBelowMinimum        = errors.New("not enough units for delivery")
	ErrZipNotServed        = errors.New("zip code not served")
	ErrProductNotFound     = errors.New("product not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrSlotFull            = errors.New("slot is full")
	ErrCapacityBelowBooked = errors.New("capacity below booked orders")
)

type BelowMinimumError struct {
	Required int
	Actual   int
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("delivery requires at least %d units, cart has %d", e.Required, e.Actual)
}

func (e *BelowMinimumError) Is(target error) bool { return target == ErrBelowMinimum }

type ZipNotServedError struct {
	ZipCode string
}

func (e *ZipNotServedError) Error() string {
	return fmt.Sprintf("delivery is not available for zip code %q", e.ZipCode)
}

func (e *ZipNotServedError) Is(target error) bool { return target == ErrZipNotServed }

type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

func (e *ProductNotFoundError) Is(target error) bool { return target == ErrProductNotFound }

type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("product %s: requested %d, only %d available", e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

type SlotFullError struct {
	SlotID   string
	Capacity int
	Booked   int
}

func (e *SlotFullError) Error() string {
	return fmt.Sprintf("slot %s is full (%d/%d booked)", e.SlotID, e.Booked, e.Capacity)
}

func (e *SlotFullError) Is(target error) bool { return target == ErrSlotFull }

type CapacityBelowBookedError struct {
	NewCapacity int
	Booked      int
}

func (e *CapacityBelowBookedError) Error() string {
	return fmt.Sprintf("capacity %d is below the %d orders already booked", e.NewCapacity, e.Booked)
}

func (e *CapacityBelowBookedError) Is(target error) bool { return target == ErrCapacityBelowBooked }
