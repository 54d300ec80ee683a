// Package gateway is the single public entry point. It authenticates admin
// calls and forwards everything to the orders and catalog services.
package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joao-fontenele/scoutshop/internal/auth"
	"github.com/joao-fontenele/scoutshop/internal/telemetry"
)

const (
	apiPrefix     = "/api"
	subjectHeader = auth.SubjectHeader
)

type Handler struct {
	ordersProxy  *ServiceProxy
	catalogProxy *ServiceProxy
	auth         *auth.Handler
	logger       *slog.Logger
}

func NewHandler(ordersProxy, catalogProxy *ServiceProxy, authHandler *auth.Handler, logger *slog.Logger) *Handler {
	return &Handler{
		ordersProxy:  ordersProxy,
		catalogProxy: catalogProxy,
		auth:         authHandler,
		logger:       logger,
	}
}

// Routes registers the public API and the guarded back office on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	public := func(pattern string, next http.HandlerFunc) {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(h.public(next)))
	}
	admin := func(pattern string, next http.HandlerFunc) {
		mux.Handle(pattern, h.auth.RequireAdmin(telemetry.WithHTTPRoute(next)))
	}

	public("POST /api/events/{eventId}/orders", h.HandleOrders)
	public("GET /api/orders/{id}", h.HandleOrders)
	public("GET /api/orders/{id}/qr", h.HandleOrders)

	public("GET /api/sections", h.HandleCatalog)
	public("GET /api/events", h.HandleCatalog)
	public("GET /api/events/{slug}", h.HandleCatalog)
	public("GET /api/stock/{productId}", h.HandleCatalog)

	mux.HandleFunc("POST /api/admin/login", telemetry.WithHTTPRoute(h.auth.HandleLogin))

	// Codes are sequential, so the lookup by code stays with staff.
	admin("GET /api/orders", h.HandleOrders)
	admin("GET /api/admin/events/{id}/orders", h.HandleOrders)
	admin("GET /api/admin/events/{id}/orders.csv", h.HandleOrders)
	admin("GET /api/admin/events/{id}/slots.ics", h.HandleOrders)
	admin("PATCH /api/admin/orders/{id}/status", h.HandleOrders)

	admin("POST /api/admin/sections", h.HandleCatalog)
	admin("GET /api/admin/events", h.HandleCatalog)
	admin("POST /api/admin/events", h.HandleCatalog)
	admin("PUT /api/admin/events/{id}", h.HandleCatalog)
	admin("GET /api/admin/events/{id}/products", h.HandleCatalog)
	admin("POST /api/admin/events/{id}/products", h.HandleCatalog)
	admin("POST /api/admin/events/{id}/products/import", h.HandleCatalog)
	admin("PUT /api/admin/products/{id}", h.HandleCatalog)
	admin("DELETE /api/admin/products/{id}", h.HandleCatalog)
	admin("POST /api/admin/events/{id}/slots", h.HandleCatalog)
	admin("PATCH /api/admin/slots/{id}/capacity", h.HandleCatalog)
	admin("DELETE /api/admin/slots/{id}", h.HandleCatalog)
	admin("GET /api/admin/events/{id}/promos", h.HandleCatalog)
	admin("POST /api/admin/events/{id}/promos", h.HandleCatalog)
	admin("PATCH /api/admin/promos/{id}", h.HandleCatalog)
}

// Wrap wraps mux with request ids, client ip resolution and panic recovery.
func (h *Handler) Wrap(mux *http.ServeMux) http.Handler {
	return chi.Chain(middleware.RequestID, middleware.RealIP, middleware.Recoverer).Handler(mux)
}

func (h *Handler) HandleOrders(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.ordersProxy, upstreamPath(r))
}

func (h *Handler) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.catalogProxy, upstreamPath(r))
}

// public drops any admin identity a client tries to smuggle in.
func (h *Handler) public(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del(subjectHeader)
		next(w, r)
	}
}

func upstreamPath(r *http.Request) string {
	return strings.TrimPrefix(r.URL.Path, apiPrefix)
}

func (h *Handler) proxyRequest(w http.ResponseWriter, r *http.Request, proxy *ServiceProxy, path string) {
	resp, err := proxy.ForwardRequest(r.Context(), r, path)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to forward request", "error", err, "path", path)
		h.writeError(w, http.StatusBadGateway, "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	for _, name := range forwardedResponseHeaders {
		if value := resp.Header.Get(name); value != "" {
			w.Header().Set(name, value)
		}
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.InfoContext(r.Context(), "request proxied",
		"method", r.Method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", middleware.GetReqID(r.Context()),
	)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to copy response body", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}
