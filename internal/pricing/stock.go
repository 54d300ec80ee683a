package pricing

import "errors"

// StockFact is the stock of one product at the time of the check.
// A nil Available means the product is not stock-limited.
type StockFact struct {
	ProductID string
	Available *int
}

// StockResult lists every line that cannot be served, in cart order.
type StockResult struct {
	Valid  bool
	Errors []error
}

// Err joins all line errors, or returns nil when the cart is valid.
func (r StockResult) Err() error {
	return errors.Join(r.Errors...)
}

// ValidateStock checks every cart line against the snapshot and collects all
// failures rather than stopping at the first one.
func ValidateStock(cart []CartLine, facts []StockFact) StockResult {
	byID := make(map[string]StockFact, len(facts))
	for _, fact := range facts {
		byID[fact.ProductID] = fact
	}

	var errs []error
	for _, line := range cart {
		fact, ok := byID[line.ProductID]
		if !ok {
			errs = append(errs, &ProductNotFoundError{ProductID: line.ProductID})
			continue
		}
		if fact.Available == nil {
			continue
		}
		if line.Quantity > *fact.Available {
			errs = append(errs, &InsufficientStockError{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Available: *fact.Available,
			})
		}
	}

	return StockResult{Valid: len(errs) == 0, Errors: errs}
}
