package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildOrderConfirmationBody(t *testing.T) {
	body := BuildOrderConfirmationBody("order-abc123", "285.00", []OrderItem{
		{Name: "Brake Pad Set", Quantity: 2, Price: "100.00", Subtotal: "200.00"},
		{Name: "Oil Filter", Quantity: 1, Price: "50.00", Subtotal: "50.00"},
	})

	assert.Contains(t, body, "order-abc123")
	assert.Contains(t, body, "Brake Pad Set")
	assert.Contains(t, body, "Oil Filter")
	assert.Contains(t, body, "$200.00")
	assert.Contains(t, body, "$285.00")
}

func TestBuildOrderConfirmationBody_NoItems(t *testing.T) {
	body := BuildOrderConfirmationBody("order-1", "0.00", nil)

	assert.Contains(t, body, "order-1")
	assert.NotContains(t, body, "<td")
}
