package notification

import (
	"context"
	"encoding/json"
	"log"

	"github.com/example/autoparts-storefront/internal/email"
	"github.com/example/autoparts-storefront/internal/events"
	"github.com/shopspring/decimal"
)

// Handler processes storefront events and sends buyer notifications.
type Handler struct {
	emailService *email.Service
}

func NewHandler(emailSvc *email.Service) *Handler {
	return &Handler{emailService: emailSvc}
}

// HandleEvent processes one event from the stream. Only OrderPlaced events
// produce a notification; everything else is ignored.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var envelope events.Envelope
	if err := json.Unmarshal(value, &envelope); err != nil {
		log.Printf("[Notifier] Failed to unmarshal event: %v", err)
		return err
	}

	if envelope.Type == events.TypeOrderPlaced {
		return h.handleOrderPlaced(envelope)
	}

	return nil
}

func (h *Handler) handleOrderPlaced(envelope events.Envelope) error {
	var e events.OrderPlaced
	if err := json.Unmarshal(envelope.Data, &e); err != nil {
		log.Printf("[Notifier] Failed to unmarshal OrderPlaced event: %v", err)
		return err
	}

	log.Printf("[Notifier] Processing OrderPlaced event for order %s, user %s", e.OrderID, e.UserID)

	if e.Email == "" {
		log.Printf("[Notifier] No email on order %s, skipping", e.OrderID)
		return nil
	}

	items := make([]email.OrderItem, 0, len(e.Items))
	for _, item := range e.Items {
		subtotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		items = append(items, email.OrderItem{
			Name:     item.Title,
			Quantity: item.Quantity,
			Price:    item.UnitPrice.StringFixed(2),
			Subtotal: subtotal.StringFixed(2),
		})
	}

	if err := h.emailService.SendOrderConfirmation(e.Email, e.OrderID, e.Total.StringFixed(2), items); err != nil {
		log.Printf("[Notifier] Failed to send confirmation for order %s: %v", e.OrderID, err)
		return err
	}

	log.Printf("[Notifier] Sent confirmation for order %s to %s", e.OrderID, e.Email)
	return nil
}
