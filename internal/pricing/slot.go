package pricing

// SlotCapacity is a slot's capacity and the orders currently holding a place
// in it (PENDING, PAID or PREPARED).
type SlotCapacity struct {
	SlotID         string
	Capacity       int
	BookedOrderIDs []string
}

// Booked counts the orders holding the slot, leaving out excludeOrderID when
// it is not empty.
func (s SlotCapacity) Booked(excludeOrderID string) int {
	booked := 0
	for _, id := range s.BookedOrderIDs {
		if excludeOrderID != "" && id == excludeOrderID {
			continue
		}
		booked++
	}
	return booked
}

// Remaining is the number of places left, never below zero.
func (s SlotCapacity) Remaining(excludeOrderID string) int {
	return max(0, s.Capacity-s.Booked(excludeOrderID))
}

// CheckSlotCapacity fails with SlotFullError when the slot cannot take one more
// order. Pass the id of an order being re-checked so it does not count against
// itself.
func CheckSlotCapacity(slot SlotCapacity, excludeOrderID string) error {
	booked := slot.Booked(excludeOrderID)
	if slot.Capacity-booked <= 0 {
		return &SlotFullError{SlotID: slot.SlotID, Capacity: slot.Capacity, Booked: booked}
	}
	return nil
}

// CheckCapacityChange refuses to shrink a slot below the orders it already holds.
func CheckCapacityChange(newCapacity, booked int) error {
	if newCapacity < booked {
		return &CapacityBelowBookedError{NewCapacity: newCapacity, Booked: booked}
	}
	return nil
}
