package notification

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/example/autoparts-storefront/internal/email"
	"github.com/example/autoparts-storefront/internal/events"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeEvent(t *testing.T, eventType string, payload any) []byte {
	t.Helper()
	envelope, err := events.Wrap(eventType, payload)
	require.NoError(t, err)
	data, err := json.Marshal(envelope)
	require.NoError(t, err)
	return data
}

func TestHandleEvent_IgnoresOtherEventTypes(t *testing.T) {
	h := NewHandler(email.NewService("localhost", "1025", "shop@example.com"))

	value := encodeEvent(t, events.TypeCartChanged, events.CartChanged{
		VisitorID: "visitor-1",
		ItemCount: 3,
	})

	err := h.HandleEvent(context.Background(), nil, value)
	assert.NoError(t, err)
}

func TestHandleEvent_RejectsMalformedPayload(t *testing.T) {
	h := NewHandler(email.NewService("localhost", "1025", "shop@example.com"))

	err := h.HandleEvent(context.Background(), nil, []byte("not json"))
	assert.Error(t, err)
}

func TestHandleEvent_SkipsOrderWithoutEmail(t *testing.T) {
	// Guest-placed orders carry no email; nothing to notify and no error.
	h := NewHandler(email.NewService("localhost", "1025", "shop@example.com"))

	value := encodeEvent(t, events.TypeOrderPlaced, events.OrderPlaced{
		OrderID: "order-1",
		UserID:  "user-1",
		Total:   decimal.RequireFromString("228"),
	})

	err := h.HandleEvent(context.Background(), nil, value)
	assert.NoError(t, err)
}
