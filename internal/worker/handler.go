// Package worker turns order events into customer emails.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/scoutshop/internal/domain"
	"github.com/joao-fontenele/scoutshop/internal/messaging"
)

type NotificationHandler struct {
	emailServiceURL string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewNotificationHandler(emailServiceURL string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: emailServiceURL,
		httpClient:      client,
		logger:          logger,
	}
}

type emailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Handle dispatches one message by topic. It matches messaging.HandlerFunc.
func (h *NotificationHandler) Handle(ctx context.Context, topic string, payload []byte) error {
	switch topic {
	case messaging.TopicOrderCreated:
		return h.handleOrderCreated(ctx, payload)
	case messaging.TopicOrderStatusChanged:
		return h.handleStatusChanged(ctx, payload)
	default:
		h.logger.WarnContext(ctx, "ignoring message from unexpected topic", "topic", topic)
		return nil
	}
}

func (h *NotificationHandler) handleOrderCreated(ctx context.Context, payload []byte) error {
	var event domain.OrderCreatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order created event: %w", err)
	}

	h.logger.InfoContext(ctx, "processing order created event", "order_id", event.OrderID, "order_code", event.OrderCode)

	if err := h.sendEmail(ctx, confirmationEmail(event)); err != nil {
		h.logger.ErrorContext(ctx, "failed to send confirmation email", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("send confirmation email: %w", err)
	}

	h.logger.InfoContext(ctx, "confirmation email sent", "order_id", event.OrderID)
	return nil
}

func (h *NotificationHandler) handleStatusChanged(ctx context.Context, payload []byte) error {
	var event domain.OrderStatusChangedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order status changed event: %w", err)
	}

	msg, ok := statusEmail(event)
	if !ok {
		h.logger.DebugContext(ctx, "no email for status", "order_id", event.OrderID, "status", event.To)
		return nil
	}

	if err := h.sendEmail(ctx, msg); err != nil {
		h.logger.ErrorContext(ctx, "failed to send status email", "error", err, "order_id", event.OrderID, "status", event.To)
		return fmt.Errorf("send %s email: %w", strings.ToLower(string(event.To)), err)
	}

	h.logger.InfoContext(ctx, "status email sent", "order_id", event.OrderID, "status", event.To)
	return nil
}

func confirmationEmail(event domain.OrderCreatedEvent) emailMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "Bonjour %s,\n\n", event.Customer.FirstName)
	fmt.Fprintf(&b, "Merci pour votre commande %s (%s).\n\n", event.OrderCode, event.EventName)
	for _, item := range event.Items {
		fmt.Fprintf(&b, "%dx %s  %s\n", item.Quantity, item.Name, euros(item.UnitPriceCents*int64(item.Quantity)))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Sous-total: %s\n", euros(event.Totals.SubtotalCents))
	if event.Totals.BundleDiscountCents > 0 {
		fmt.Fprintf(&b, "Remise caisse: -%s\n", euros(event.Totals.BundleDiscountCents))
	}
	if event.Totals.PromoDiscountCents > 0 {
		fmt.Fprintf(&b, "Code promo: -%s\n", euros(event.Totals.PromoDiscountCents))
	}
	if event.Totals.DeliveryFeeCents > 0 {
		fmt.Fprintf(&b, "Livraison: %s\n", euros(event.Totals.DeliveryFeeCents))
	}
	fmt.Fprintf(&b, "Total: %s\n\n", euros(event.Totals.TotalCents))
	fmt.Fprintf(&b, "Merci de verser le montant avec la communication structurée %s.\n", event.PaymentCommunication)

	return emailMessage{
		To:      event.Customer.Email,
		Subject: fmt.Sprintf("Commande %s confirmée", event.OrderCode),
		Body:    b.String(),
	}
}

// statusEmail returns the message for statuses the customer is told about.
func statusEmail(event domain.OrderStatusChangedEvent) (emailMessage, bool) {
	var subject, body string
	switch event.To {
	case domain.OrderStatusPaid:
		subject = fmt.Sprintf("Paiement reçu pour la commande %s", event.OrderCode)
		body = "Nous avons bien reçu votre paiement. Merci !"
	case domain.OrderStatusPrepared:
		subject = fmt.Sprintf("Commande %s prête", event.OrderCode)
		body = "Votre commande est prête. Munissez-vous de votre code de commande."
	case domain.OrderStatusCancelled:
		subject = fmt.Sprintf("Commande %s annulée", event.OrderCode)
		body = "Votre commande a été annulée. Contactez-nous si vous pensez qu'il s'agit d'une erreur."
	default:
		return emailMessage{}, false
	}

	return emailMessage{
		To:      event.Customer.Email,
		Subject: subject,
		Body:    fmt.Sprintf("Bonjour %s,\n\n%s\n", event.Customer.FirstName, body),
	}, true
}

// euros renders cents the Belgian way, "12,50 €".
func euros(cents int64) string {
	return strings.Replace(decimal.New(cents, -2).StringFixed(2), ".", ",", 1) + " €"
}

func (h *NotificationHandler) sendEmail(ctx context.Context, msg emailMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	// A 400 is permanent: the message is dropped and the offset committed.
	if resp.StatusCode == http.StatusBadRequest {
		h.logger.WarnContext(ctx, "email service rejected message", "to", msg.To, "subject", msg.Subject)
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
