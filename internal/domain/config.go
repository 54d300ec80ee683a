package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/scoutshop/internal/pricing"
)

// EventConfigVersion is the shape ParseEventConfig produces and the one
// written back to the database.
const EventConfigVersion = 1

var ErrUnsupportedConfigVersion = errors.New("unsupported event config version")

// EventConfig is the per-event settings blob stored as JSONB on events.
type EventConfig struct {
	Version               int      `json:"version"`
	DeliveryEnabled       bool     `json:"delivery_enabled"`
	DeliveryMinUnits      int      `json:"delivery_min_units"`
	DeliveryFeeCents      int64    `json:"delivery_fee_cents"`
	AllowedZipCodes       []string `json:"allowed_zip_codes"`
	BundleDiscountEnabled bool     `json:"bundle_discount_enabled"`
	OrderCodePrefix       string   `json:"order_code_prefix"`
	PickupLocation        string   `json:"pickup_location,omitempty"`
}

// ConfigDefaults fill the fields a stored config may leave out.
type ConfigDefaults struct {
	DeliveryMinUnits int
	OrderCodePrefix  string
}

var DefaultConfigDefaults = ConfigDefaults{DeliveryMinUnits: 5, OrderCodePrefix: "ORD"}

// Before versioning the blob used bottle-centric keys and a euro float fee.
type eventConfigV0 struct {
	DeliveryEnabled    *bool    `json:"delivery_enabled"`
	DeliveryMinBottles *int     `json:"delivery_min_bottles"`
	DeliveryFee        *float64 `json:"delivery_fee"`
	ZipCodes           []string `json:"zip_codes"`
	BundleDiscount     *bool    `json:"bundle_discount"`
	OrderPrefix        string   `json:"order_prefix"`
	PickupLocation     string   `json:"pickup_location"`
}

func (v0 eventConfigV0) migrate(defaults ConfigDefaults) EventConfig {
	cfg := EventConfig{
		Version:          EventConfigVersion,
		DeliveryMinUnits: defaults.DeliveryMinUnits,
		AllowedZipCodes:  v0.ZipCodes,
		OrderCodePrefix:  v0.OrderPrefix,
		PickupLocation:   v0.PickupLocation,
	}
	if v0.DeliveryEnabled != nil {
		cfg.DeliveryEnabled = *v0.DeliveryEnabled
	}
	if v0.DeliveryMinBottles != nil {
		cfg.DeliveryMinUnits = *v0.DeliveryMinBottles
	}
	if v0.DeliveryFee != nil {
		cfg.DeliveryFeeCents = decimal.NewFromFloat(*v0.DeliveryFee).Shift(2).Round(0).IntPart()
	}
	if v0.BundleDiscount != nil {
		cfg.BundleDiscountEnabled = *v0.BundleDiscount
	}
	return cfg
}

// ParseEventConfig decodes a stored config of any known version into the
// current shape and resolves defaults once.
func ParseEventConfig(raw []byte, defaults ConfigDefaults) (EventConfig, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return NewEventConfig(defaults), nil
	}

	var head struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return EventConfig{}, fmt.Errorf("decode event config: %w", err)
	}

	var cfg EventConfig
	switch head.Version {
	case 0:
		var v0 eventConfigV0
		if err := json.Unmarshal(raw, &v0); err != nil {
			return EventConfig{}, fmt.Errorf("decode v0 event config: %w", err)
		}
		cfg = v0.migrate(defaults)
	case EventConfigVersion:
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return EventConfig{}, fmt.Errorf("decode v1 event config: %w", err)
		}
	default:
		return EventConfig{}, fmt.Errorf("%w: %d", ErrUnsupportedConfigVersion, head.Version)
	}

	cfg.normalize(defaults)
	return cfg, cfg.Validate()
}

// NewEventConfig is the config of an event created without one.
func NewEventConfig(defaults ConfigDefaults) EventConfig {
	cfg := EventConfig{Version: EventConfigVersion, DeliveryMinUnits: defaults.DeliveryMinUnits}
	cfg.normalize(defaults)
	return cfg
}

func (c *EventConfig) normalize(defaults ConfigDefaults) {
	c.Version = EventConfigVersion
	c.OrderCodePrefix = strings.ToUpper(strings.TrimSpace(c.OrderCodePrefix))
	if c.OrderCodePrefix == "" {
		c.OrderCodePrefix = defaults.OrderCodePrefix
	}

	zips := make([]string, 0, len(c.AllowedZipCodes))
	for _, zip := range c.AllowedZipCodes {
		if zip = strings.TrimSpace(zip); zip != "" {
			zips = append(zips, zip)
		}
	}
	c.AllowedZipCodes = zips
}

func (c EventConfig) Validate() error {
	if c.DeliveryMinUnits < 0 {
		return errors.New("delivery_min_units must not be negative")
	}
	if c.DeliveryFeeCents < 0 {
		return errors.New("delivery_fee_cents must not be negative")
	}
	return nil
}

func (c EventConfig) Delivery() pricing.DeliveryPolicy {
	return pricing.DeliveryPolicy{
		Enabled:         c.DeliveryEnabled,
		MinUnits:        c.DeliveryMinUnits,
		FeeCents:        c.DeliveryFeeCents,
		AllowedZipCodes: c.AllowedZipCodes,
	}
}
