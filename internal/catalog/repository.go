package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/scoutshop/internal/domain"
	"github.com/joao-fontenele/scoutshop/internal/pricing"
)

const (
	eventColumns   = `id, section_id, slug, name, description, type, status, starts_at, ends_at, config, created_at`
	productColumns = `id, event_id, sku, name, description, price_cents, stock, active, sort_order`
	promoColumns   = `id, event_id, code, discount_cents, active, created_at`
)

var bookingStatuses = func() []string {
	statuses := make([]string, len(domain.BookingStatuses))
	for i, s := range domain.BookingStatuses {
		statuses[i] = string(s)
	}
	return statuses
}()

type scanner interface {
	Scan(dest ...any) error
}

type CatalogRepository struct {
	db       *sql.DB
	defaults domain.ConfigDefaults
}

func NewCatalogRepository(db *sql.DB, defaults domain.ConfigDefaults) *CatalogRepository {
	return &CatalogRepository{db: db, defaults: defaults}
}

func (r *CatalogRepository) ListSections(ctx context.Context) ([]domain.Section, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, slug, name, created_at
		FROM sections
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	sections := []domain.Section{}
	for rows.Next() {
		var s domain.Section
		if err := rows.Scan(&s.ID, &s.Slug, &s.Name, &s.CreatedAt); err != nil {
			return nil, err
		}
		sections = append(sections, s)
	}

	return sections, rows.Err()
}

func (r *CatalogRepository) CreateSection(ctx context.Context, section *domain.Section) error {
	section.ID = uuid.New().String()
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO sections (id, slug, name)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, section.ID, section.Slug, section.Name).Scan(&section.CreatedAt)
	return mapWriteError(err)
}

func (r *CatalogRepository) ListOpenEvents(ctx context.Context, now time.Time) ([]domain.Event, error) {
	return r.listEvents(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE status = 'open' AND ends_at > $1
		ORDER BY starts_at
	`, now)
}

func (r *CatalogRepository) ListEvents(ctx context.Context) ([]domain.Event, error) {
	return r.listEvents(ctx, `SELECT `+eventColumns+` FROM events ORDER BY starts_at DESC`)
}

func (r *CatalogRepository) listEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	events := []domain.Event{}
	for rows.Next() {
		e, err := r.scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}

	return events, rows.Err()
}

func (r *CatalogRepository) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	return r.getEvent(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
}

func (r *CatalogRepository) GetEventBySlug(ctx context.Context, slug string) (*domain.Event, error) {
	return r.getEvent(ctx, `SELECT `+eventColumns+` FROM events WHERE slug = $1`, slug)
}

func (r *CatalogRepository) getEvent(ctx context.Context, query string, arg string) (*domain.Event, error) {
	e, err := r.scanEvent(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

func (r *CatalogRepository) CreateEvent(ctx context.Context, event *domain.Event) error {
	config, err := json.Marshal(event.Config)
	if err != nil {
		return err
	}

	event.ID = uuid.New().String()
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO events (id, section_id, slug, name, description, type, status, starts_at, ends_at, config)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`, event.ID, event.SectionID, event.Slug, event.Name, event.Description, event.Type, event.Status,
		event.StartsAt, event.EndsAt, config).Scan(&event.CreatedAt)
	return mapWriteError(err)
}

func (r *CatalogRepository) UpdateEvent(ctx context.Context, event *domain.Event) error {
	config, err := json.Marshal(event.Config)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE events
		SET section_id = $2, slug = $3, name = $4, description = $5, type = $6, status = $7,
			starts_at = $8, ends_at = $9, config = $10
		WHERE id = $1
	`, event.ID, event.SectionID, event.Slug, event.Name, event.Description, event.Type, event.Status,
		event.StartsAt, event.EndsAt, config)
	return expectOneRow(result, mapWriteError(err))
}

func (r *CatalogRepository) ListProducts(ctx context.Context, eventID string, activeOnly bool) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE event_id = $1 AND (active OR NOT $2)
		ORDER BY sort_order, name
	`, eventID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}

	return products, rows.Err()
}

func (r *CatalogRepository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *CatalogRepository) CreateProduct(ctx context.Context, product *domain.Product) error {
	product.ID = uuid.New().String()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, product.ID, product.EventID, product.SKU, product.Name, product.Description, product.PriceCents,
		stockValue(product.Stock), product.Active, product.SortOrder)
	return mapWriteError(err)
}

func (r *CatalogRepository) UpdateProduct(ctx context.Context, product *domain.Product) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET sku = $2, name = $3, description = $4, price_cents = $5, stock = $6, active = $7, sort_order = $8
		WHERE id = $1
	`, product.ID, product.SKU, product.Name, product.Description, product.PriceCents,
		stockValue(product.Stock), product.Active, product.SortOrder)
	return expectOneRow(result, mapWriteError(err))
}

// DeactivateProduct hides a product; rows stay because order items point at them.
func (r *CatalogRepository) DeactivateProduct(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE products SET active = FALSE WHERE id = $1`, id)
	return expectOneRow(result, err)
}

func (r *CatalogRepository) UpsertProducts(ctx context.Context, eventID string, products []domain.Product) (int, int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = tx.Rollback() }()

	created, updated := 0, 0
	for _, p := range products {
		var inserted bool
		err := tx.QueryRowContext(ctx, `
			INSERT INTO products (`+productColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8)
			ON CONFLICT (event_id, sku) DO UPDATE
			SET name = EXCLUDED.name, description = EXCLUDED.description,
				price_cents = EXCLUDED.price_cents, stock = EXCLUDED.stock,
				active = TRUE, sort_order = EXCLUDED.sort_order
			RETURNING (xmax = 0)
		`, uuid.New().String(), eventID, p.SKU, p.Name, p.Description, p.PriceCents,
			stockValue(p.Stock), p.SortOrder).Scan(&inserted)
		if err != nil {
			return 0, 0, fmt.Errorf("upsert %s: %w", p.SKU, err)
		}
		if inserted {
			created++
		} else {
			updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return created, updated, nil
}

func (r *CatalogRepository) AdjustStock(ctx context.Context, productID string, delta int) (*domain.Product, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + $2
		WHERE id = $1 AND stock IS NOT NULL AND stock + $2 >= 0
	`, productID, delta)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	product, err := r.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		switch {
		case product == nil:
			return nil, ErrNotFound
		case product.Stock == nil:
			return nil, ErrUnlimitedStock
		default:
			return nil, ErrInsufficientStock
		}
	}

	return product, nil
}

func (r *CatalogRepository) ListSlots(ctx context.Context, eventID string) ([]domain.Slot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.event_id, s.label, s.kind, s.starts_at, s.ends_at, s.capacity,
			COUNT(o.id) FILTER (WHERE o.status = ANY($2))
		FROM slots s
		LEFT JOIN orders o ON o.slot_id = s.id
		WHERE s.event_id = $1
		GROUP BY s.id
		ORDER BY s.starts_at, s.label
	`, eventID, pq.Array(bookingStatuses))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	slots := []domain.Slot{}
	for rows.Next() {
		var s domain.Slot
		if err := rows.Scan(&s.ID, &s.EventID, &s.Label, &s.Kind, &s.StartsAt, &s.EndsAt, &s.Capacity, &s.Booked); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}

	return slots, rows.Err()
}

func (r *CatalogRepository) CreateSlot(ctx context.Context, slot *domain.Slot) error {
	slot.ID = uuid.New().String()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO slots (id, event_id, label, kind, starts_at, ends_at, capacity)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, slot.ID, slot.EventID, slot.Label, slot.Kind, slot.StartsAt, slot.EndsAt, slot.Capacity)
	return mapWriteError(err)
}

// UpdateSlotCapacity locks the slot so no checkout books it between the count
// and the update.
func (r *CatalogRepository) UpdateSlotCapacity(ctx context.Context, slotID string, capacity int) (*domain.Slot, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var s domain.Slot
	err = tx.QueryRowContext(ctx, `
		SELECT id, event_id, label, kind, starts_at, ends_at
		FROM slots
		WHERE id = $1
		FOR UPDATE
	`, slotID).Scan(&s.ID, &s.EventID, &s.Label, &s.Kind, &s.StartsAt, &s.EndsAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM orders WHERE slot_id = $1 AND status = ANY($2)
	`, slotID, pq.Array(bookingStatuses)).Scan(&s.Booked)
	if err != nil {
		return nil, err
	}

	if err := pricing.CheckCapacityChange(capacity, s.Booked); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE slots SET capacity = $2 WHERE id = $1`, slotID, capacity); err != nil {
		return nil, err
	}
	s.Capacity = capacity

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *CatalogRepository) DeleteSlot(ctx context.Context, slotID string) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM slots
		WHERE id = $1 AND NOT EXISTS (SELECT 1 FROM orders WHERE slot_id = $1)
	`, slotID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM slots WHERE id = $1)`, slotID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrSlotInUse
		}
		return ErrNotFound
	}

	return nil
}

func (r *CatalogRepository) ListPromos(ctx context.Context, eventID string) ([]domain.PromoCode, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+promoColumns+`
		FROM promo_codes
		WHERE event_id = $1
		ORDER BY code
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	promos := []domain.PromoCode{}
	for rows.Next() {
		p, err := scanPromo(rows)
		if err != nil {
			return nil, err
		}
		promos = append(promos, *p)
	}

	return promos, rows.Err()
}

func (r *CatalogRepository) CreatePromo(ctx context.Context, promo *domain.PromoCode) error {
	promo.ID = uuid.New().String()
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO promo_codes (id, event_id, code, discount_cents, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, promo.ID, promo.EventID, promo.Code, promo.DiscountCents, promo.Active).Scan(&promo.CreatedAt)
	return mapWriteError(err)
}

func (r *CatalogRepository) UpdatePromo(ctx context.Context, id string, active *bool, discountCents *int64) (*domain.PromoCode, error) {
	p, err := scanPromo(r.db.QueryRowContext(ctx, `
		UPDATE promo_codes
		SET active = COALESCE($2, active), discount_cents = COALESCE($3, discount_cents)
		WHERE id = $1
		RETURNING `+promoColumns,
		id, nullBool(active), nullInt64(discountCents)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *CatalogRepository) scanEvent(row scanner) (*domain.Event, error) {
	e := &domain.Event{}
	var config []byte
	if err := row.Scan(&e.ID, &e.SectionID, &e.Slug, &e.Name, &e.Description, &e.Type, &e.Status,
		&e.StartsAt, &e.EndsAt, &config, &e.CreatedAt); err != nil {
		return nil, err
	}

	cfg, err := domain.ParseEventConfig(config, r.defaults)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", e.ID, err)
	}
	e.Config = cfg
	return e, nil
}

func scanProduct(row scanner) (*domain.Product, error) {
	p := &domain.Product{}
	var stock sql.NullInt32
	if err := row.Scan(&p.ID, &p.EventID, &p.SKU, &p.Name, &p.Description, &p.PriceCents, &stock, &p.Active, &p.SortOrder); err != nil {
		return nil, err
	}
	if stock.Valid {
		n := int(stock.Int32)
		p.Stock = &n
	}
	return p, nil
}

func scanPromo(row scanner) (*domain.PromoCode, error) {
	p := &domain.PromoCode{}
	if err := row.Scan(&p.ID, &p.EventID, &p.Code, &p.DiscountCents, &p.Active, &p.CreatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

func stockValue(stock *int) sql.NullInt32 {
	if stock == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*stock), Valid: true}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func nullInt64(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}

// mapWriteError turns unique and foreign key violations into ErrConflict and
// ErrNotFound.
func mapWriteError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case "23505":
		return fmt.Errorf("%w: %s", ErrConflict, pqErr.Constraint)
	case "23503":
		return fmt.Errorf("%w: %s", ErrNotFound, pqErr.Constraint)
	}
	return err
}

func expectOneRow(result sql.Result, err error) error {
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
