package orders

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/joao-fontenele/scoutshop/internal/domain"
	"github.com/joao-fontenele/scoutshop/internal/pricing"
)

// AdminSubjectHeader carries the authenticated admin, set by the gateway.
const AdminSubjectHeader = "X-Admin-Subject"

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Routes registers the public and admin endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /events/{eventId}/orders", h.HandleCheckout)
	mux.HandleFunc("GET /orders", h.HandleGetByCode)
	mux.HandleFunc("GET /orders/{id}", h.HandleGet)
	mux.HandleFunc("GET /orders/{id}/qr", h.HandleQRCode)

	mux.HandleFunc("GET /admin/events/{id}/orders", h.HandleList)
	mux.HandleFunc("GET /admin/events/{id}/orders.csv", h.HandleExportCSV)
	mux.HandleFunc("GET /admin/events/{id}/slots.ics", h.HandleSlotsCalendar)
	mux.HandleFunc("PATCH /admin/orders/{id}/status", h.HandleUpdateStatus)
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventId")

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.Checkout(r.Context(), eventID, req)
	if err != nil {
		h.handleServiceError(w, r, err, "checkout failed")
		return
	}

	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleServiceError(w, r, err, "failed to get order")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

// HandleGetByCode serves GET /orders?code=..., the lookup behind the QR code.
func (h *Handler) HandleGetByCode(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		h.writeError(w, http.StatusBadRequest, "missing order code")
		return
	}

	order, err := h.service.GetByCode(r.Context(), code)
	if err != nil {
		h.handleServiceError(w, r, err, "failed to get order")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleQRCode(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleServiceError(w, r, err, "failed to get order")
		return
	}

	png, err := QRCode(order.Code)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to render qr code", "error", err, "order_id", order.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(png)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	status := domain.OrderStatus(r.URL.Query().Get("status"))

	orders, err := h.service.ListByEvent(r.Context(), r.PathValue("id"), status)
	if err != nil {
		h.handleServiceError(w, r, err, "failed to list orders")
		return
	}

	h.logger.InfoContext(r.Context(), "orders listed", "event_id", r.PathValue("id"), "count", len(orders))
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")
	status := domain.OrderStatus(r.URL.Query().Get("status"))

	export, err := h.service.Export(r.Context(), eventID, status)
	if err != nil {
		h.handleServiceError(w, r, err, "failed to export orders")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Event.Slug+`-orders.csv"`)
	if err := WriteOrdersCSV(w, export.Orders, export.SlotLabels()); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write csv", "error", err, "event_id", eventID)
	}
}

func (h *Handler) HandleSlotsCalendar(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")

	export, err := h.service.Export(r.Context(), eventID, "")
	if err != nil {
		h.handleServiceError(w, r, err, "failed to export slots")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Event.Slug+`-slots.ics"`)
	_, _ = w.Write([]byte(SlotsCalendar(export.Event, export.Slots, export.Orders, time.Now().UTC())))
}

type updateStatusRequest struct {
	Status   domain.OrderStatus `json:"status"`
	Override bool               `json:"override"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.Transition(r.Context(), id, TransitionRequest{
		Status:   req.Status,
		Override: req.Override,
		Actor:    r.Header.Get(AdminSubjectHeader),
	})
	if err != nil {
		h.handleServiceError(w, r, err, "failed to update order status")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var validation *ValidationError
	var price *PriceMismatchError
	var stock *StockUnavailableError

	switch {
	case errors.As(err, &validation):
		h.writeError(w, http.StatusBadRequest, validation.Error())
	case errors.As(err, &stock):
		status := http.StatusConflict
		if !errors.Is(err, pricing.ErrInsufficientStock) {
			status = http.StatusNotFound
		}
		h.writeJSON(w, status, errorResponse{Error: "some items cannot be ordered", Details: stock.Details()})
	case errors.As(err, &price):
		h.writeError(w, http.StatusConflict, price.Error())
	case errors.Is(err, ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrEventClosed),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, pricing.ErrSlotFull):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrSlotMismatch),
		errors.Is(err, pricing.ErrDeliveryDisabled),
		errors.Is(err, pricing.ErrBelowMinimum),
		errors.Is(err, pricing.ErrZipNotServed):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), msg, "error", err, "path", r.URL.Path)
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
	h.writeJSON(w, status, errorResponse{Error: message})
}
