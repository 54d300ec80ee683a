package catalog

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeHeader(t *testing.T) {
	tests := map[string]string{
		"Nom":           "nom",
		" PRIX ":        "prix",
		"Quantité":      "quantite",
		"Prix unitaire": "prixunitaire",
		"prix_unitaire": "prixunitaire",
		"Référence":     "reference",
	}

	for in, want := range tests {
		if got := NormalizeHeader(in); got != want {
			t.Errorf("NormalizeHeader(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestParsePriceCents(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"12,50", 1250, false},
		{"12.50", 1250, false},
		{"€ 12.50", 1250, false},
		{"12,50 €", 1250, false},
		{"12", 1200, false},
		{"1.234,50", 123450, false},
		{"0", 0, false},
		{"", 0, true},
		{"douze", 0, true},
		{"-3", 0, true},
		{"1,234", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParsePriceCents(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %d", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestParseProductsCSV(t *testing.T) {
	t.Run("french semicolon sheet", func(t *testing.T) {
		input := "\xef\xbb\xbfNom;Prix;Quantité;Réf;Description\n" +
			"Crémant brut;12,50;24;brut;Bouteille 75cl\n" +
			"Crémant rosé;€ 14.00;;;\n"

		result, err := ParseProductsCSV(strings.NewReader(input))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Errors) != 0 {
			t.Fatalf("unexpected row errors: %v", result.Errors)
		}
		if len(result.Products) != 2 {
			t.Fatalf("expected 2 products, got %d", len(result.Products))
		}

		brut := result.Products[0]
		if brut.SKU != "BRUT" || brut.Name != "Crémant brut" || brut.PriceCents != 1250 || brut.Stock == nil || *brut.Stock != 24 {
			t.Errorf("unexpected first product %+v", brut)
		}
		if brut.Description != "Bouteille 75cl" || !brut.Active || brut.SortOrder != 0 {
			t.Errorf("unexpected first product %+v", brut)
		}

		rose := result.Products[1]
		if rose.SKU != "CREMANT-ROSE" {
			t.Errorf("expected sku derived from name, got %q", rose.SKU)
		}
		if rose.Stock != nil {
			t.Errorf("expected empty stock to mean unlimited, got %d", *rose.Stock)
		}
		if rose.SortOrder != 1 {
			t.Errorf("expected sort order 1, got %d", rose.SortOrder)
		}
	})

	t.Run("english comma sheet with row errors", func(t *testing.T) {
		input := "name,price,stock,sku\n" +
			"Jus de pomme,\"2,50\",10,JUS\n" +
			",3.00,1,X\n" +
			"\n" +
			"Gaufre,abc,,GAU\n" +
			"Gaufre sucre,1.5,-2,GAS\n" +
			"Jus bis,2.00,,jus\n"

		result, err := ParseProductsCSV(strings.NewReader(input))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Products) != 1 || result.Products[0].PriceCents != 250 {
			t.Fatalf("expected only the first row to parse, got %+v", result.Products)
		}

		wantRows := []int{3, 5, 6, 7}
		if len(result.Errors) != len(wantRows) {
			t.Fatalf("expected %d row errors, got %v", len(wantRows), result.Errors)
		}
		for i, row := range wantRows {
			if result.Errors[i].Row != row {
				t.Errorf("error %d: expected row %d, got %d (%s)", i, row, result.Errors[i].Row, result.Errors[i].Message)
			}
		}
		if !strings.Contains(result.Errors[3].Message, "already used on line 2") {
			t.Errorf("expected duplicate sku error, got %q", result.Errors[3].Message)
		}
	})

	t.Run("missing price column", func(t *testing.T) {
		_, err := ParseProductsCSV(strings.NewReader("nom,stock\nA,1\n"))
		if !errors.Is(err, ErrMissingColumn) {
			t.Errorf("expected ErrMissingColumn, got %v", err)
		}
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := ParseProductsCSV(strings.NewReader(""))
		if !errors.Is(err, ErrMissingColumn) {
			t.Errorf("expected ErrMissingColumn, got %v", err)
		}
	})
}
