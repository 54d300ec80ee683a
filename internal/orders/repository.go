package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/scoutshop/internal/domain"
	"github.com/joao-fontenele/scoutshop/internal/pricing"
)

const orderColumns = `
	id, event_id, code, status, first_name, last_name, email, phone,
	fulfillment, address, zip_code, COALESCE(slot_id, ''), promo_code, notes,
	subtotal_cents, bundle_discount_cents, delivery_fee_cents, promo_discount_cents,
	total_cents, payment_communication, qr_code_url, created_at, updated_at`

const eventColumns = `
	id, section_id, slug, name, description, type, status, starts_at, ends_at, config, created_at`

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

type OrderRepository struct {
	db       *sql.DB
	defaults domain.ConfigDefaults
}

func NewOrderRepository(db *sql.DB, defaults domain.ConfigDefaults) *OrderRepository {
	return &OrderRepository{db: db, defaults: defaults}
}

func (r *OrderRepository) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&pgTx{tx: tx, defaults: r.defaults}); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return getOrder(ctx, r.db, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *OrderRepository) GetByCode(ctx context.Context, code string) (*domain.Order, error) {
	return getOrder(ctx, r.db, `SELECT `+orderColumns+` FROM orders WHERE code = $1`, code)
}

func (r *OrderRepository) ListByEvent(ctx context.Context, eventID string, status domain.OrderStatus) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE event_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at, code
	`, eventID, string(status))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		order.Items = []domain.OrderItem{}
		orderMap[order.ID] = order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT order_id, product_id, name, quantity, unit_price_cents
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := itemRows.Scan(&orderID, &item.ProductID, &item.Name, &item.Quantity, &item.UnitPriceCents); err != nil {
			return nil, err
		}
		order := orderMap[orderID]
		order.Items = append(order.Items, item)
	}

	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

func (r *OrderRepository) SetQRCodeURL(ctx context.Context, orderID, url string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE orders SET qr_code_url = $1 WHERE id = $2`, url, orderID)
	return err
}

func (r *OrderRepository) GetEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	event, err := scanEvent(r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, eventID), r.defaults)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return event, err
}

// ListSlots returns the event's slots with the number of orders holding each.
func (r *OrderRepository) ListSlots(ctx context.Context, eventID string) ([]domain.Slot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.event_id, s.label, s.kind, s.starts_at, s.ends_at, s.capacity,
			COUNT(o.id) FILTER (WHERE o.status = ANY($2))
		FROM slots s
		LEFT JOIN orders o ON o.slot_id = s.id
		WHERE s.event_id = $1
		GROUP BY s.id
		ORDER BY s.starts_at, s.label
	`, eventID, pq.Array(bookingStatuses()))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var slots []domain.Slot
	for rows.Next() {
		var s domain.Slot
		if err := rows.Scan(&s.ID, &s.EventID, &s.Label, &s.Kind, &s.StartsAt, &s.EndsAt, &s.Capacity, &s.Booked); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}

	return slots, rows.Err()
}

type pgTx struct {
	tx       *sql.Tx
	defaults domain.ConfigDefaults
}

func (t *pgTx) LockEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	event, err := scanEvent(t.tx.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, eventID), t.defaults)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", eventID, ErrNotFound)
	}
	return event, err
}

func (t *pgTx) ProductsByID(ctx context.Context, eventID string, productIDs []string) ([]domain.Product, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, event_id, sku, name, description, price_cents, stock, active, sort_order
		FROM products
		WHERE event_id = $1 AND id = ANY($2) AND active
	`, eventID, pq.Array(productIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		var stock sql.NullInt32
		if err := rows.Scan(&p.ID, &p.EventID, &p.SKU, &p.Name, &p.Description, &p.PriceCents, &stock, &p.Active, &p.SortOrder); err != nil {
			return nil, err
		}
		if stock.Valid {
			n := int(stock.Int32)
			p.Stock = &n
		}
		products = append(products, p)
	}

	return products, rows.Err()
}

func (t *pgTx) LockSlot(ctx context.Context, slotID string) (*domain.Slot, pricing.SlotCapacity, error) {
	var s domain.Slot
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, event_id, label, kind, starts_at, ends_at, capacity
		FROM slots
		WHERE id = $1
		FOR UPDATE
	`, slotID).Scan(&s.ID, &s.EventID, &s.Label, &s.Kind, &s.StartsAt, &s.EndsAt, &s.Capacity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pricing.SlotCapacity{}, fmt.Errorf("slot %s: %w", slotID, ErrNotFound)
	}
	if err != nil {
		return nil, pricing.SlotCapacity{}, err
	}

	rows, err := t.tx.QueryContext(ctx, `
		SELECT id FROM orders WHERE slot_id = $1 AND status = ANY($2)
	`, slotID, pq.Array(bookingStatuses()))
	if err != nil {
		return nil, pricing.SlotCapacity{}, err
	}
	defer func() { _ = rows.Close() }()

	capacity := pricing.SlotCapacity{SlotID: s.ID, Capacity: s.Capacity}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, pricing.SlotCapacity{}, err
		}
		capacity.BookedOrderIDs = append(capacity.BookedOrderIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, pricing.SlotCapacity{}, err
	}

	s.Booked = len(capacity.BookedOrderIDs)
	return &s, capacity, nil
}

func (t *pgTx) FindPromo(ctx context.Context, eventID, code string) (*domain.PromoCode, error) {
	var p domain.PromoCode
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, event_id, code, discount_cents, active, created_at
		FROM promo_codes
		WHERE event_id = $1 AND lower(code) = lower($2)
	`, eventID, code).Scan(&p.ID, &p.EventID, &p.Code, &p.DiscountCents, &p.Active, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *pgTx) NextOrderSequence(ctx context.Context, prefix string, year int) (int, error) {
	var seq int
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO order_sequences (prefix, year, last_value)
		VALUES ($1, $2, 1)
		ON CONFLICT (prefix, year) DO UPDATE SET last_value = order_sequences.last_value + 1
		RETURNING last_value
	`, prefix, year).Scan(&seq)
	return seq, err
}

func (t *pgTx) TakeStock(ctx context.Context, productID string, quantity int) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE products SET stock = stock - $2
		WHERE id = $1 AND stock IS NOT NULL AND stock >= $2
	`, productID, quantity)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return &StockUnavailableError{Result: pricing.StockResult{Errors: []error{
			&pricing.InsufficientStockError{ProductID: productID, Requested: quantity},
		}}}
	}

	return nil
}

func (t *pgTx) ReturnStock(ctx context.Context, productID string, quantity int) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE products SET stock = stock + $2
		WHERE id = $1 AND stock IS NOT NULL
	`, productID, quantity)
	return err
}

func (t *pgTx) InsertOrder(ctx context.Context, order *domain.Order) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, event_id, code, status, first_name, last_name, email, phone,
			fulfillment, address, zip_code, slot_id, promo_code, notes,
			subtotal_cents, bundle_discount_cents, delivery_fee_cents, promo_discount_cents,
			total_cents, payment_communication, qr_code_url, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''), $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23)
	`, order.ID, order.EventID, order.Code, order.Status,
		order.Customer.FirstName, order.Customer.LastName, order.Customer.Email, order.Customer.Phone,
		order.Fulfillment, order.Address, order.ZipCode, order.SlotID, order.PromoCode, order.Notes,
		order.Totals.SubtotalCents, order.Totals.BundleDiscountCents, order.Totals.DeliveryFeeCents,
		order.Totals.PromoDiscountCents, order.Totals.TotalCents,
		order.PaymentCommunication, order.QRCodeURL, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return err
	}

	for _, item := range order.Items {
		_, err = t.tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, name, quantity, unit_price_cents)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, uuid.New().String(), order.ID, item.ProductID, item.Name, item.Quantity, item.UnitPriceCents)
		if err != nil {
			return err
		}
	}

	return nil
}

func (t *pgTx) LockOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := getOrder(ctx, t.tx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	return order, nil
}

func (t *pgTx) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, at time.Time) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = $2
		WHERE id = $3
	`, status, at, orderID)
	return err
}

func getOrder(ctx context.Context, q queryer, query string, arg any) (*domain.Order, error) {
	order, err := scanOrder(q.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT product_id, name, quantity, unit_price_cents
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, order.ID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	order.Items = []domain.OrderItem{}
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Quantity, &item.UnitPriceCents); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

func scanOrder(row scanner) (*domain.Order, error) {
	o := &domain.Order{}
	err := row.Scan(&o.ID, &o.EventID, &o.Code, &o.Status,
		&o.Customer.FirstName, &o.Customer.LastName, &o.Customer.Email, &o.Customer.Phone,
		&o.Fulfillment, &o.Address, &o.ZipCode, &o.SlotID, &o.PromoCode, &o.Notes,
		&o.Totals.SubtotalCents, &o.Totals.BundleDiscountCents, &o.Totals.DeliveryFeeCents,
		&o.Totals.PromoDiscountCents, &o.Totals.TotalCents,
		&o.PaymentCommunication, &o.QRCodeURL, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func scanEvent(row scanner, defaults domain.ConfigDefaults) (*domain.Event, error) {
	e := &domain.Event{}
	var config []byte
	if err := row.Scan(&e.ID, &e.SectionID, &e.Slug, &e.Name, &e.Description, &e.Type, &e.Status,
		&e.StartsAt, &e.EndsAt, &config, &e.CreatedAt); err != nil {
		return nil, err
	}

	cfg, err := domain.ParseEventConfig(config, defaults)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", e.ID, err)
	}
	e.Config = cfg
	return e, nil
}

func bookingStatuses() []string {
	statuses := make([]string, len(domain.BookingStatuses))
	for i, s := range domain.BookingStatuses {
		statuses[i] = string(s)
	}
	return statuses
}
