package orders

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joao-fontenele/scoutshop/internal/pricing"
)

// ValidationError is a malformed checkout or status request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

type PriceMismatchError struct {
	ProductID     string
	ExpectedCents int64
	GotCents      int64
}

func (e *PriceMismatchError) Error() string {
	return fmt.Sprintf("price of product %s changed: now %d cents, cart says %d", e.ProductID, e.ExpectedCents, e.GotCents)
}

// StockUnavailableError carries every failing line of a stock check.
type StockUnavailableError struct {
	Result pricing.StockResult
}

func (e *StockUnavailableError) Error() string {
	return strings.Join(e.Details(), "; ")
}

func (e *StockUnavailableError) Unwrap() []error {
	return e.Result.Errors
}

func (e *StockUnavailableError) Details() []string {
	details := make([]string, len(e.Result.Errors))
	for i, err := range e.Result.Errors {
		details[i] = err.Error()
	}
	return details
}

// rejectionReason labels a refused checkout for metrics; empty for errors
// that are not a business refusal.
func rejectionReason(err error) string {
	var validation *ValidationError
	var price *PriceMismatchError
	var stock *StockUnavailableError
	switch {
	case errors.As(err, &validation):
		return "invalid_request"
	case errors.As(err, &price):
		return "price_mismatch"
	case errors.As(err, &stock):
		return "stock"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrEventClosed):
		return "event_closed"
	case errors.Is(err, ErrSlotMismatch):
		return "slot_mismatch"
	case errors.Is(err, pricing.ErrSlotFull):
		return "slot_full"
	case errors.Is(err, pricing.ErrDeliveryDisabled):
		return "delivery_disabled"
	case errors.Is(err, pricing.ErrBelowMinimum):
		return "delivery_minimum"
	case errors.Is(err, pricing.ErrZipNotServed):
		return "zip_not_served"
	case errors.Is(err, pricing.ErrInsufficientStock):
		return "stock"
	}
	return ""
}
