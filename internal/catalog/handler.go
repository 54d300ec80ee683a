package catalog

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joao-fontenele/scoutshop/internal/cache"
	"github.com/joao-fontenele/scoutshop/internal/domain"
	"github.com/joao-fontenele/scoutshop/internal/pricing"
)

const maxImportBytes = 1 << 20

// Cache operations, also the key prefixes dropped on every admin write.
const (
	cacheSections = "sections"
	cacheEvents   = "events"
	cacheEvent    = "event"
)

type Handler struct {
	store    Store
	cache    cache.Cache
	cacheTTL time.Duration
	defaults domain.ConfigDefaults
	logger   *slog.Logger
	now      func() time.Time
}

// NewHandler builds the catalog handler. c may be nil to serve without a cache.
func NewHandler(store Store, c cache.Cache, cacheTTL time.Duration, defaults domain.ConfigDefaults, logger *slog.Logger) *Handler {
	return &Handler{
		store:    store,
		cache:    c,
		cacheTTL: cacheTTL,
		defaults: defaults,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /sections", h.HandleListSections)
	mux.HandleFunc("GET /events", h.HandleListEvents)
	mux.HandleFunc("GET /events/{slug}", h.HandleGetEvent)

	mux.HandleFunc("GET /stock/{productId}", h.HandleGetStock)
	mux.HandleFunc("POST /stock/{productId}/adjust", h.HandleAdjustStock)

	mux.HandleFunc("POST /admin/sections", h.HandleCreateSection)
	mux.HandleFunc("GET /admin/events", h.HandleAdminListEvents)
	mux.HandleFunc("POST /admin/events", h.HandleCreateEvent)
	mux.HandleFunc("PUT /admin/events/{id}", h.HandleUpdateEvent)
	mux.HandleFunc("GET /admin/events/{id}/products", h.HandleAdminListProducts)
	mux.HandleFunc("POST /admin/events/{id}/products", h.HandleCreateProduct)
	mux.HandleFunc("POST /admin/events/{id}/products/import", h.HandleImportProducts)
	mux.HandleFunc("PUT /admin/products/{id}", h.HandleUpdateProduct)
	mux.HandleFunc("DELETE /admin/products/{id}", h.HandleDeleteProduct)
	mux.HandleFunc("POST /admin/events/{id}/slots", h.HandleCreateSlot)
	mux.HandleFunc("PATCH /admin/slots/{id}/capacity", h.HandleUpdateSlotCapacity)
	mux.HandleFunc("DELETE /admin/slots/{id}", h.HandleDeleteSlot)
	mux.HandleFunc("GET /admin/events/{id}/promos", h.HandleListPromos)
	mux.HandleFunc("POST /admin/events/{id}/promos", h.HandleCreatePromo)
	mux.HandleFunc("PATCH /admin/promos/{id}", h.HandleUpdatePromo)
}

func (h *Handler) HandleListSections(w http.ResponseWriter, r *http.Request) {
	h.serveCached(w, r, cacheSections, nil, func() (any, error) {
		return h.store.ListSections(r.Context())
	})
}

func (h *Handler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	h.serveCached(w, r, cacheEvents, nil, func() (any, error) {
		return h.store.ListOpenEvents(r.Context(), h.now())
	})
}

type slotView struct {
	domain.Slot
	Remaining int `json:"remaining"`
}

type eventView struct {
	domain.Event
	Products []domain.Product `json:"products"`
	Slots    []slotView       `json:"slots"`
	Open     bool             `json:"open"`
}

// HandleGetEvent serves the shop page of one event: its active products and
// its slots with the places left.
func (h *Handler) HandleGetEvent(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")

	h.serveCached(w, r, cacheEvent, []string{slug}, func() (any, error) {
		event, err := h.store.GetEventBySlug(r.Context(), slug)
		if err != nil {
			return nil, err
		}
		if event == nil || event.Status == domain.EventStatusDraft {
			return nil, ErrNotFound
		}

		products, err := h.store.ListProducts(r.Context(), event.ID, true)
		if err != nil {
			return nil, err
		}

		slots, err := h.store.ListSlots(r.Context(), event.ID)
		if err != nil {
			return nil, err
		}

		view := eventView{Event: *event, Products: products, Slots: make([]slotView, len(slots)), Open: event.AcceptsOrders(h.now())}
		for i, s := range slots {
			view.Slots[i] = slotView{Slot: s, Remaining: s.Remaining()}
		}
		return view, nil
	})
}

// serveCached answers from the cache when it can and fills it otherwise.
// Cache failures are logged and the request falls through to the store.
func (h *Handler) serveCached(w http.ResponseWriter, r *http.Request, operation string, parts []string, load func() (any, error)) {
	ctx := r.Context()
	var key string

	if h.cache != nil {
		key = h.cache.GenerateKey(operation, parts...)
		body, ok, err := h.cache.Get(ctx, key)
		if err != nil {
			h.logger.WarnContext(ctx, "cache read failed", "error", err, "key", key)
		}
		if ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "HIT")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(body)
			return
		}
	}

	data, err := load()
	if err != nil {
		h.handleError(w, r, err, "failed to load "+operation)
		return
	}

	body, err := json.Marshal(data)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to encode response", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, key, body, h.cacheTTL); err != nil {
			h.logger.WarnContext(ctx, "cache write failed", "error", err, "key", key)
		}
		w.Header().Set("X-Cache", "MISS")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(append(body, '\n'))
}

// invalidate drops every cached public page after an admin write.
func (h *Handler) invalidate(r *http.Request) {
	if h.cache == nil {
		return
	}
	for _, operation := range []string{cacheSections, cacheEvents, cacheEvent} {
		if err := h.cache.Invalidate(r.Context(), operation); err != nil {
			h.logger.WarnContext(r.Context(), "cache invalidation failed", "error", err, "operation", operation)
		}
	}
}

func (h *Handler) HandleGetStock(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productId")

	product, err := h.store.GetProduct(r.Context(), productID)
	if err != nil {
		h.handleError(w, r, err, "failed to get stock")
		return
	}

	if product == nil {
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}

	h.writeJSON(w, http.StatusOK, stockResponse(product))
}

type adjustStockRequest struct {
	Delta int `json:"delta"`
}

func (h *Handler) HandleAdjustStock(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productId")

	var req adjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := h.store.AdjustStock(r.Context(), productID, req.Delta)
	if err != nil {
		h.handleError(w, r, err, "failed to adjust stock")
		return
	}

	h.invalidate(r)
	h.logger.InfoContext(r.Context(), "stock adjusted", "product_id", productID, "delta", req.Delta)
	h.writeJSON(w, http.StatusOK, stockResponse(product))
}

func stockResponse(p *domain.Product) map[string]any {
	return map[string]any{"product_id": p.ID, "sku": p.SKU, "stock": p.Stock, "limited": p.Stock != nil}
}

type sectionRequest struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

func (h *Handler) HandleCreateSection(w http.ResponseWriter, r *http.Request) {
	var req sectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	section := &domain.Section{Slug: normalizeSlug(req.Slug), Name: strings.TrimSpace(req.Name)}
	if section.Slug == "" || section.Name == "" {
		h.writeError(w, http.StatusBadRequest, "slug and name are required")
		return
	}

	if err := h.store.CreateSection(r.Context(), section); err != nil {
		h.handleError(w, r, err, "failed to create section")
		return
	}

	h.invalidate(r)
	h.logger.InfoContext(r.Context(), "section created", "section_id", section.ID, "slug", section.Slug)
	h.writeJSON(w, http.StatusCreated, section)
}

func (h *Handler) HandleAdminListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.store.ListEvents(r.Context())
	if err != nil {
		h.handleError(w, r, err, "failed to list events")
		return
	}

	h.writeJSON(w, http.StatusOK, events)
}

type eventRequest struct {
	SectionID   string             `json:"section_id"`
	Slug        string             `json:"slug"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Type        domain.EventType   `json:"type"`
	Status      domain.EventStatus `json:"status"`
	StartsAt    time.Time          `json:"starts_at"`
	EndsAt      time.Time          `json:"ends_at"`
	Config      json.RawMessage    `json:"config"`
}

func (req eventRequest) toEvent(defaults domain.ConfigDefaults) (*domain.Event, error) {
	event := &domain.Event{
		SectionID:   req.SectionID,
		Slug:        normalizeSlug(req.Slug),
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Type:        req.Type,
		Status:      req.Status,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	}
	if event.Status == "" {
		event.Status = domain.EventStatusDraft
	}

	switch {
	case event.SectionID == "":
		return nil, errors.New("section_id is required")
	case event.Slug == "" || event.Name == "":
		return nil, errors.New("slug and name are required")
	case !event.Type.Valid():
		return nil, errors.New("type must be product_sale, meal or raffle")
	case !event.Status.Valid():
		return nil, errors.New("status must be draft, open or closed")
	case !event.EndsAt.After(event.StartsAt):
		return nil, errors.New("ends_at must be after starts_at")
	}

	cfg, err := domain.ParseEventConfig(req.Config, defaults)
	if err != nil {
		return nil, err
	}
	event.Config = cfg
	return event, nil
}

func (h *Handler) HandleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	event, err := req.toEvent(h.defaults)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.CreateEvent(r.Context(), event); err != nil {
		h.handleError(w, r, err, "failed to create event")
		return
	}

	h.invalidate(r)
	h.logger.InfoContext(r.Context(), "event created", "event_id", event.ID, "slug", event.Slug)
	h.writeJSON(w, http.StatusCreated, event)
}

func (h *Handler) HandleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	event, err := req.toEvent(h.defaults)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	event.ID = r.PathValue("id")

	if err := h.store.UpdateEvent(r.Context(), event); err != nil {
		h.handleError(w, r, err, "failed to update event")
		return
	}

	h.invalidate(r)
	h.logger.InfoContext(r.Context(), "event updated", "event_id", event.ID, "status", event.Status)
	h.writeJSON(w, http.StatusOK, event)
}

func (h *Handler) HandleAdminListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.ListProducts(r.Context(), r.PathValue("id"), false)
	if err != nil {
		h.handleError(w, r, err, "failed to list products")
		return
	}

	h.writeJSON(w, http.StatusOK, products)
}

type productRequest struct {
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	Stock       *int   `json:"stock"`
	Active      *bool  `json:"active"`
	SortOrder   int    `json:"sort_order"`
}

func (req productRequest) toProduct() (*domain.Product, error) {
	p := &domain.Product{
		SKU:         strings.ToUpper(strings.TrimSpace(req.SKU)),
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		PriceCents:  req.PriceCents,
		Stock:       req.Stock,
		Active:      req.Active == nil || *req.Active,
		SortOrder:   req.SortOrder,
	}

	switch {
	case p.SKU == "" || p.Name == "":
		return nil, errors.New("sku and name are required")
	case p.PriceCents < 0:
		return nil, errors.New("price_cents must not be negative")
	case p.Stock != nil && *p.Stock < 0:
		return nil, errors.New("stock must not be negative")
	}
	return p, nil
}

func (h *Handler) HandleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := req.toProduct()
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	product.EventID = r.PathValue("id")

	if err := h.store.CreateProduct(r.Context(), product); err != nil {
		h.handleError(w, r, err, "failed to create product")
		return
	}

	h.invalidate(r)
	h.logger.InfoContext(r.Context(), "product created", "product_id", product.ID, "sku", product.SKU)
	h.writeJSON(w, http.StatusCreated, product)
}

func (h *Handler) HandleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := req.toProduct()
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	product.ID = r.PathValue("id")

	if err := h.store.UpdateProduct(r.Context(), product); err != nil {
		h.handleError(w, r, err, "failed to update product")
		return
	}

	updated, err := h.store.GetProduct(r.Context(), product.ID)
	if err != nil {
		h.handleError(w, r, err, "failed to reload product")
		return
	}

	h.invalidate(r)
	h.logger.InfoContext(r.Context(), "product updated", "product_id", product.ID)
	h.writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) HandleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.store.DeactivateProduct(r.Context(), id); err != nil {
		h.handleError(w, r, err, "failed to delete product")
		return
	}

	h.invalidate(r)
	h.logger.InfoContext(r.Context(), "product deactivated", "product_id", id)
	w.WriteHeader(http.StatusNoContent)
}

type importResponse struct {
	Created int        `json:"created"`
	Updated int        `json:"updated"`
	Errors  []RowError `json:"errors"`
}

// HandleImportProducts takes a CSV body. Nothing is written unless every row
// parses, so a corrected file can simply be uploaded again.
func (h *Handler) HandleImportProducts(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")

	event, err := h.store.GetEvent(r.Context(), eventID)
	if err != nil {
		h.handleError(w, r, err, "failed to get event")
		return
	}
	if event == nil {
		h.writeError(w, http.StatusNotFound, "event not found")
		return
	}

	result, err := ParseProductsCSV(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "file is too large")
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if len(result.Errors) > 0 {
		h.writeJSON(w, http.StatusUnprocessableEntity, importResponse{Errors: result.Errors})
		return
	}

	created, updated, err := h.store.UpsertProducts(r.Context(), eventID, result.Products)
	if err != nil {
		h.handleError(w, r, err, "failed to import products")
		return
	}

	h.invalidate(r)
	h.logger.InfoContext(r.Context(), "products imported", "event_id", eventID, "created", created, "updated", updated)
	h.writeJSON(w, http.StatusOK, importResponse{Created: created, Updated: updated, Errors: []RowError{}})
}

type slotRequest struct {
	Label    string          `json:"label"`
	Kind     domain.SlotKind `json:"kind"`
	StartsAt time.Time       `json:"starts_at"`
	EndsAt   time.Time       `json:"ends_at"`
	Capacity int             `json:"capacity"`
}

func (h *Handler) HandleCreateSlot(w http.ResponseWriter, r *http.Request) {
	var req slotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	slot := &domain.Slot{
		EventID:  r.PathValue("id"),
		Label:    strings.TrimSpace(req.Label),
		Kind:     req.Kind,
		StartsAt: req.StartsAt,
		EndsAt:   req.EndsAt,
		Capacity: req.Capacity,
	}
	switch {
	case slot.Label == "":
		h.writeError(w, http.StatusBadRequest, "label is required")
		return
	case !slot.Kind.Valid():
		h.writeError(w, http.StatusBadRequest, "kind must be pickup or delivery")
		return
	case !slot.EndsAt.After(slot.StartsAt):
		h.writeError(w, http.StatusBadRequest, "ends_at must be after starts_at")
		return
	case slot.Capacity < 1:
		h.writeError(w, http.StatusBadRequest, "capacity must be at least 1")
		return
	}

	if err := h.store.CreateSlot(r.Context(), slot); err != nil {
		h.handleError(w, r, err, "failed to create slot")
		return
	}

	h.invalidate(r)
	h.logger.InfoContext(r.Context(), "slot created", "slot_id", slot.ID, "event_id", slot.EventID)
	h.writeJSON(w, http.StatusCreated, slot)
}

type capacityRequest struct {
	Capacity int `json:"capacity"`
}

func (h *Handler) HandleUpdateSlotCapacity(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req capacityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Capacity < 1 {
		h.writeError(w, http.StatusBadRequest, "capacity must be at least 1")
		return
	}

	slot, err := h.store.UpdateSlotCapacity(r.Context(), id, req.Capacity)
	if err != nil {
		h.handleError(w, r, err, "failed to update slot capacity")
		return
	}

	h.invalidate(r)
	h.logger.InfoContext(r.Context(), "slot capacity updated", "slot_id", id, "capacity", slot.Capacity, "booked", slot.Booked)
	h.writeJSON(w, http.StatusOK, slotView{Slot: *slot, Remaining: slot.Remaining()})
}

func (h *Handler) HandleDeleteSlot(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.store.DeleteSlot(r.Context(), id); err != nil {
		h.handleError(w, r, err, "failed to delete slot")
		return
	}

	h.invalidate(r)
	h.logger.InfoContext(r.Context(), "slot deleted", "slot_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleListPromos(w http.ResponseWriter, r *http.Request) {
	promos, err := h.store.ListPromos(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleError(w, r, err, "failed to list promo codes")
		return
	}

	h.writeJSON(w, http.StatusOK, promos)
}

type promoRequest struct {
	Code          string `json:"code"`
	DiscountCents int64  `json:"discount_cents"`
	Active        *bool  `json:"active"`
}

func (h *Handler) HandleCreatePromo(w http.ResponseWriter, r *http.Request) {
	var req promoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	promo := &domain.PromoCode{
		EventID:       r.PathValue("id"),
		Code:          strings.ToUpper(strings.TrimSpace(req.Code)),
		DiscountCents: req.DiscountCents,
		Active:        req.Active == nil || *req.Active,
	}
	if promo.Code == "" {
		h.writeError(w, http.StatusBadRequest, "code is required")
		return
	}
	if promo.DiscountCents <= 0 {
		h.writeError(w, http.StatusBadRequest, "discount_cents must be positive")
		return
	}

	if err := h.store.CreatePromo(r.Context(), promo); err != nil {
		h.handleError(w, r, err, "failed to create promo code")
		return
	}

	h.logger.InfoContext(r.Context(), "promo code created", "promo_id", promo.ID, "code", promo.Code)
	h.writeJSON(w, http.StatusCreated, promo)
}

type updatePromoRequest struct {
	Active        *bool  `json:"active"`
	DiscountCents *int64 `json:"discount_cents"`
}

func (h *Handler) HandleUpdatePromo(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updatePromoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DiscountCents != nil && *req.DiscountCents <= 0 {
		h.writeError(w, http.StatusBadRequest, "discount_cents must be positive")
		return
	}

	promo, err := h.store.UpdatePromo(r.Context(), id, req.Active, req.DiscountCents)
	if err != nil {
		h.handleError(w, r, err, "failed to update promo code")
		return
	}

	h.logger.InfoContext(r.Context(), "promo code updated", "promo_id", id, "active", promo.Active)
	h.writeJSON(w, http.StatusOK, promo)
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var capacity *pricing.CapacityBelowBookedError
	switch {
	case errors.Is(err, ErrNotFound):
		h.writeError(w, http.StatusNotFound, "not found")
	case errors.As(err, &capacity):
		h.writeError(w, http.StatusConflict, capacity.Error())
	case errors.Is(err, ErrConflict),
		errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrUnlimitedStock),
		errors.Is(err, ErrSlotInUse):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), msg, "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func normalizeSlug(s string) string {
	return strings.Trim(slugNoise.ReplaceAllString(strings.ToLower(stripAccents(strings.TrimSpace(s))), "-"), "-")
}
