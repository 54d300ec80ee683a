package catalog

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/joao-fontenele/scoutshop/internal/domain"
)

var headerAliases = map[string]string{
	"nom":          "name",
	"name":         "name",
	"produit":      "name",
	"product":      "name",
	"prix":         "price",
	"price":        "price",
	"prixunitaire": "price",
	"stock":        "stock",
	"quantite":     "stock",
	"quantity":     "stock",
	"qty":          "stock",
	"sku":          "sku",
	"ref":          "sku",
	"reference":    "sku",
	"description":  "description",
	"desc":         "description",
}

var (
	ErrMissingColumn = errors.New("missing required column")

	headerNoise = regexp.MustCompile(`[\s_\-.]+`)
	skuNoise    = regexp.MustCompile(`[^A-Z0-9]+`)
)

// RowError is a CSV line that could not be turned into a product. Row is the
// line number in the file, the header being line 1.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

type ImportResult struct {
	Products []domain.Product `json:"-"`
	Errors   []RowError       `json:"errors"`
}

// ParseProductsCSV reads a product sheet exported from a spreadsheet. Comma
// and semicolon separated files are accepted, headers may be French or
// English, and every bad row is reported rather than only the first.
func ParseProductsCSV(r io.Reader) (ImportResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return ImportResult{}, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return ImportResult{}, fmt.Errorf("%w: file is empty", ErrMissingColumn)
	}
	if err != nil {
		return ImportResult{}, fmt.Errorf("read header: %w", err)
	}

	columns := make(map[string]int)
	for i, name := range header {
		if field, ok := headerAliases[NormalizeHeader(name)]; ok {
			if _, dup := columns[field]; !dup {
				columns[field] = i
			}
		}
	}
	for _, required := range []string{"name", "price"} {
		if _, ok := columns[required]; !ok {
			return ImportResult{}, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}

	result := ImportResult{Products: []domain.Product{}, Errors: []RowError{}}
	seen := make(map[string]int)

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				result.Errors = append(result.Errors, RowError{Row: parseErr.Line, Message: parseErr.Err.Error()})
				continue
			}
			return ImportResult{}, err
		}
		line, _ := reader.FieldPos(0)

		get := func(field string) string {
			i, ok := columns[field]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		if isBlank(record) {
			continue
		}

		product, err := parseProductRow(get)
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: line, Message: err.Error()})
			continue
		}

		if first, dup := seen[product.SKU]; dup {
			result.Errors = append(result.Errors, RowError{Row: line, Message: fmt.Sprintf("sku %s already used on line %d", product.SKU, first)})
			continue
		}
		seen[product.SKU] = line

		product.SortOrder = len(result.Products)
		product.Active = true
		result.Products = append(result.Products, product)
	}

	return result, nil
}

func parseProductRow(get func(string) string) (domain.Product, error) {
	name := get("name")
	if name == "" {
		return domain.Product{}, errors.New("name is empty")
	}

	price, err := ParsePriceCents(get("price"))
	if err != nil {
		return domain.Product{}, err
	}

	var stock *int
	if raw := get("stock"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return domain.Product{}, fmt.Errorf("stock %q is not a whole number", raw)
		}
		stock = &n
	}

	sku := strings.ToUpper(get("sku"))
	if sku == "" {
		sku = strings.Trim(skuNoise.ReplaceAllString(strings.ToUpper(stripAccents(name)), "-"), "-")
	}

	return domain.Product{
		SKU:         sku,
		Name:        name,
		Description: get("description"),
		PriceCents:  price,
		Stock:       stock,
	}, nil
}

// NormalizeHeader folds a column title to its lookup form: lower case,
// no accents, no spaces, underscores, dashes or dots.
func NormalizeHeader(s string) string {
	return headerNoise.ReplaceAllString(strings.ToLower(stripAccents(strings.TrimSpace(s))), "")
}

// ParsePriceCents reads a euro amount as typed in a spreadsheet: "12,50",
// "12.50", "€ 12.50", "12,50 €" or "1.234,50".
func ParsePriceCents(raw string) (int64, error) {
	s := strings.NewReplacer("€", "", "EUR", "", "eur", "", " ", "", "\u00a0", "").Replace(raw)
	if s == "" {
		return 0, errors.New("price is empty")
	}

	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("price %q is not a number", raw)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("price %q is negative", raw)
	}

	cents := d.Shift(2)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, fmt.Errorf("price %q has more than two decimals", raw)
	}
	return cents.IntPart(), nil
}

func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func detectDelimiter(data []byte) rune {
	first, _ := bufio.NewReader(bytes.NewReader(data)).ReadString('\n')
	if strings.Count(first, ";") > strings.Count(first, ",") {
		return ';'
	}
	return ','
}

func isBlank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

var slugNoise = regexp.MustCompile(`[^a-z0-9]+`)
