package pricing

import (
	"slices"
	"strings"
)

// DeliveryPolicy is the delivery part of an event's configuration.
type DeliveryPolicy struct {
	Enabled  bool
	MinUnits int
	FeeCents int64
	// AllowedZipCodes restricts delivery to these zip codes. Empty means anywhere.
	AllowedZipCodes []string
}

// CheckDeliveryEligibility reports the first rule the cart breaks, in order:
// delivery disabled, too few units, zip code not served. It returns nil when
// the cart may be delivered.
func CheckDeliveryEligibility(cart []CartLine, policy DeliveryPolicy, zipCode string) error {
	if !policy.Enabled {
		return ErrDeliveryDisabled
	}

	if units := TotalUnits(cart); units < policy.MinUnits {
		return &BelowMinimumError{Required: policy.MinUnits, Actual: units}
	}

	if len(policy.AllowedZipCodes) > 0 {
		zip := strings.TrimSpace(zipCode)
		served := slices.ContainsFunc(policy.AllowedZipCodes, func(allowed string) bool {
			return strings.TrimSpace(allowed) == zip
		})
		if !served {
			return &ZipNotServedError{ZipCode: zipCode}
		}
	}

	return nil
}
