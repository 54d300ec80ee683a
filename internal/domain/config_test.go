package domain

import (
	"errors"
	"testing"
)

func TestParseEventConfig(t *testing.T) {
	defaults := DefaultConfigDefaults

	t.Run("empty blob gets defaults", func(t *testing.T) {
		for _, raw := range []string{"", "null", "  "} {
			cfg, err := ParseEventConfig([]byte(raw), defaults)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.Version != EventConfigVersion || cfg.DeliveryMinUnits != 5 || cfg.OrderCodePrefix != "ORD" {
				t.Errorf("unexpected config %+v", cfg)
			}
		}
	})

	t.Run("migrates legacy keys", func(t *testing.T) {
		raw := `{"delivery_enabled": true, "delivery_min_bottles": 6, "delivery_fee": 2.5,
			"zip_codes": [" 1300", "1340", ""], "bundle_discount": true, "order_prefix": "crem"}`

		cfg, err := ParseEventConfig([]byte(raw), defaults)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !cfg.DeliveryEnabled || cfg.DeliveryMinUnits != 6 || cfg.DeliveryFeeCents != 250 {
			t.Errorf("unexpected delivery settings %+v", cfg)
		}
		if len(cfg.AllowedZipCodes) != 2 || cfg.AllowedZipCodes[0] != "1300" {
			t.Errorf("unexpected zip codes %v", cfg.AllowedZipCodes)
		}
		if !cfg.BundleDiscountEnabled || cfg.OrderCodePrefix != "CREM" {
			t.Errorf("unexpected config %+v", cfg)
		}
		if cfg.Version != EventConfigVersion {
			t.Errorf("expected version %d, got %d", EventConfigVersion, cfg.Version)
		}
	})

	t.Run("legacy config without minimum uses the default", func(t *testing.T) {
		cfg, err := ParseEventConfig([]byte(`{"delivery_enabled": true}`), defaults)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.DeliveryMinUnits != 5 {
			t.Errorf("expected default minimum 5, got %d", cfg.DeliveryMinUnits)
		}
	})

	t.Run("explicit zero minimum is kept", func(t *testing.T) {
		cfg, err := ParseEventConfig([]byte(`{"delivery_min_bottles": 0}`), defaults)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.DeliveryMinUnits != 0 {
			t.Errorf("expected minimum 0, got %d", cfg.DeliveryMinUnits)
		}

		cfg, err = ParseEventConfig([]byte(`{"version": 1, "delivery_min_units": 0}`), defaults)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.DeliveryMinUnits != 0 {
			t.Errorf("expected minimum 0, got %d", cfg.DeliveryMinUnits)
		}
	})

	t.Run("current version round trips", func(t *testing.T) {
		raw := `{"version": 1, "delivery_enabled": true, "delivery_min_units": 12, "delivery_fee_cents": 300,
			"allowed_zip_codes": ["1000"], "bundle_discount_enabled": true, "order_code_prefix": "SOUP"}`
		cfg, err := ParseEventConfig([]byte(raw), defaults)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		policy := cfg.Delivery()
		if !policy.Enabled || policy.MinUnits != 12 || policy.FeeCents != 300 || len(policy.AllowedZipCodes) != 1 {
			t.Errorf("unexpected policy %+v", policy)
		}
		if cfg.OrderCodePrefix != "SOUP" {
			t.Errorf("expected prefix SOUP, got %s", cfg.OrderCodePrefix)
		}
	})

	t.Run("unknown version", func(t *testing.T) {
		_, err := ParseEventConfig([]byte(`{"version": 7}`), defaults)
		if !errors.Is(err, ErrUnsupportedConfigVersion) {
			t.Errorf("expected ErrUnsupportedConfigVersion, got %v", err)
		}
	})

	t.Run("negative fee is rejected", func(t *testing.T) {
		_, err := ParseEventConfig([]byte(`{"version": 1, "delivery_fee_cents": -1}`), defaults)
		if err == nil {
			t.Error("expected error")
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		if _, err := ParseEventConfig([]byte(`{`), defaults); err == nil {
			t.Error("expected error")
		}
	})
}
