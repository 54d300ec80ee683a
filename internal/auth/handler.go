package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// SubjectHeader carries the authenticated admin to the upstream services.
const SubjectHeader = "X-Admin-Subject"

type Handler struct {
	service *Service
	issuer  *TokenIssuer
	logger  *slog.Logger
}

func NewHandler(service *Service, issuer *TokenIssuer, logger *slog.Logger) *Handler {
	return &Handler{service: service, issuer: issuer, logger: logger}
}

type loginRequest struct {
	Password string `json:"password"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.service.Login(req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		h.logger.WarnContext(r.Context(), "admin login rejected", "remote_addr", r.RemoteAddr)
		writeError(w, h.logger, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to issue admin token", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "internal error")
		return
	}

	h.logger.InfoContext(r.Context(), "admin logged in", "expires_at", token.ExpiresAt)
	writeJSON(w, h.logger, http.StatusOK, token)
}

// RequireAdmin rejects requests without a valid admin bearer token. On
// success the token subject replaces any client-supplied SubjectHeader.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, h.logger, http.StatusUnauthorized, "missing authorization header")
			return
		}

		scheme, tokenString, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || tokenString == "" {
			writeError(w, h.logger, http.StatusUnauthorized, "invalid authorization format, use 'Bearer <token>'")
			return
		}

		claims, err := h.issuer.Validate(tokenString)
		if err != nil {
			writeError(w, h.logger, http.StatusUnauthorized, "invalid token")
			return
		}
		if claims.Role != RoleAdmin {
			writeError(w, h.logger, http.StatusForbidden, "forbidden")
			return
		}

		r.Header.Set(SubjectHeader, claims.Subject)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	writeJSON(w, logger, status, map[string]string{"error": message})
}
