// Package email is a stand-in mail sender: it validates the message, waits
// a little like a real provider would and logs it.
package email

import (
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/mail"
	"strings"
	"time"
)

const maxSubjectLength = 200

type Handler struct {
	logger *slog.Logger
	delay  func() time.Duration
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger,
		delay: func() time.Duration {
			return time.Duration(50+rand.IntN(151)) * time.Millisecond
		},
	}
}

type sendRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type sendResponse struct {
	Status string `json:"status"`
}

func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /send", h.HandleSend)
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if msg := req.validate(); msg != "" {
		h.logger.WarnContext(r.Context(), "email rejected", "reason", msg)
		h.writeError(w, http.StatusBadRequest, msg)
		return
	}

	time.Sleep(h.delay())

	h.logger.InfoContext(r.Context(), "email sent", "to", req.To, "subject", req.Subject)

	h.writeJSON(w, http.StatusOK, sendResponse{Status: "sent"})
}

func (req *sendRequest) validate() string {
	addr, err := mail.ParseAddress(strings.TrimSpace(req.To))
	if err != nil || addr.Name != "" {
		return "invalid recipient"
	}
	req.To = addr.Address

	req.Subject = strings.TrimSpace(req.Subject)
	switch {
	case req.Subject == "":
		return "subject is required"
	case len(req.Subject) > maxSubjectLength:
		return "subject is too long"
	case strings.ContainsAny(req.Subject, "\r\n"):
		return "subject must be a single line"
	}
	return ""
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
