package email

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestHandler(logs io.Writer) *Handler {
	h := NewHandler(slog.New(slog.NewJSONHandler(logs, nil)))
	h.delay = func() time.Duration { return 0 }
	return h
}

func TestHandler_HandleSend(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "sends a valid message",
			body:       `{"to":"marie.dupont@example.be","subject":"Commande CRE-2026-0001","body":"Merci"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "malformed json",
			body:       `{"to":`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid request body",
		},
		{
			name:       "missing recipient",
			body:       `{"subject":"Hello"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid recipient",
		},
		{
			name:       "recipient without domain",
			body:       `{"to":"marie","subject":"Hello"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid recipient",
		},
		{
			name:       "recipient with display name",
			body:       `{"to":"Marie <marie@example.be>","subject":"Hello"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid recipient",
		},
		{
			name:       "blank subject",
			body:       `{"to":"marie@example.be","subject":"   "}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "subject is required",
		},
		{
			name:       "multi line subject",
			body:       `{"to":"marie@example.be","subject":"Hello\r\nBcc: x@example.be"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "subject must be a single line",
		},
		{
			name:       "subject too long",
			body:       `{"to":"marie@example.be","subject":"` + strings.Repeat("a", maxSubjectLength+1) + `"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "subject is too long",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestHandler(io.Discard)
			mux := http.NewServeMux()
			handler.Routes(mux)

			req := httptest.NewRequest(http.MethodPost, "/send", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			mux.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}

			var resp map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if tt.wantError == "" && resp["status"] != "sent" {
				t.Errorf("expected status sent, got %v", resp)
			}
			if tt.wantError != "" && resp["error"] != tt.wantError {
				t.Errorf("expected error %q, got %q", tt.wantError, resp["error"])
			}
		})
	}
}

func TestHandler_HandleSend_LogsRecipient(t *testing.T) {
	var logs bytes.Buffer
	handler := newTestHandler(&logs)

	req := httptest.NewRequest(http.MethodPost, "/send", strings.NewReader(`{"to":" marie@example.be ","subject":"Paiement reçu"}`))
	rec := httptest.NewRecorder()

	handler.HandleSend(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(logs.String(), `"to":"marie@example.be"`) {
		t.Errorf("expected normalized recipient in logs, got %s", logs.String())
	}
}

func TestHandler_RejectsGet(t *testing.T) {
	mux := http.NewServeMux()
	newTestHandler(io.Discard).Routes(mux)

	req := httptest.NewRequest(http.MethodGet, "/send", nil)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rec.Code)
	}
}
