// Package events defines the wire format for the storefront's event
// stream. Producers wrap payloads in an Envelope; consumers switch on Type.
package events

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TypeCartChanged = "CartChanged"
	TypeOrderPlaced = "OrderPlaced"
)

// Envelope carries one event with its type tag.
type Envelope struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// Wrap encodes a payload into an Envelope.
func Wrap(eventType string, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Type:       eventType,
		OccurredAt: time.Now(),
		Data:       data,
	}, nil
}

// CartChanged mirrors the cart's change notification onto the stream.
type CartChanged struct {
	VisitorID string `json:"visitor_id"`
	ItemCount int    `json:"item_count"`
}

// OrderPlacedItem is one purchased line for confirmation messages.
type OrderPlacedItem struct {
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// OrderPlaced announces a successfully submitted order. Email comes from
// the buyer's identity claims so the notifier needs no user lookup.
type OrderPlaced struct {
	OrderID string            `json:"order_id"`
	UserID  string            `json:"user_id"`
	Email   string            `json:"email,omitempty"`
	Total   decimal.Decimal   `json:"total"`
	Items   []OrderPlacedItem `json:"items"`
}
