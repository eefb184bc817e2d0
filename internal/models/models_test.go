package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusPending, OrderStatusPaid, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusShipped, false},
		{OrderStatusPending, OrderStatusDelivered, false},
		{OrderStatusPaid, OrderStatusProcessing, true},
		{OrderStatusPaid, OrderStatusShipped, true},
		{OrderStatusPaid, OrderStatusRefunded, true},
		{OrderStatusPaid, OrderStatusPending, false},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusProcessing, OrderStatusDelivered, false},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusCancelled, false},
		{OrderStatusDelivered, OrderStatusRefunded, true},
		{OrderStatusDelivered, OrderStatusShipped, false},
		// Terminal states admit nothing new.
		{OrderStatusCancelled, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusPaid, false},
		{OrderStatusRefunded, OrderStatusCancelled, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestCanTransitionSameStatus(t *testing.T) {
	// Re-applying the current status is always a legal no-op, terminal
	// states included.
	for _, status := range AllOrderStatuses() {
		assert.True(t, CanTransition(status, status), "%s -> %s", status, status)
	}
}

func TestValidOrderStatus(t *testing.T) {
	for _, status := range AllOrderStatuses() {
		assert.True(t, ValidOrderStatus(status), "%s", status)
	}
	assert.False(t, ValidOrderStatus("archived"))
	assert.False(t, ValidOrderStatus(""))
}

func TestCartLineTotal(t *testing.T) {
	l := CartLine{
		UnitPrice: decimal.RequireFromString("19.99"),
		Quantity:  3,
	}
	assert.True(t, l.LineTotal().Equal(decimal.RequireFromString("59.97")), "got %s", l.LineTotal())
}
