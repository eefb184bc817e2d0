package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types published to the order lifecycle topic for downstream
// consumers (fulfillment, notifications, analytics).
const (
	EventTypeOrderCreated   = "ORDER_CREATED"
	EventTypeOrderPaid      = "ORDER_PAID"
	EventTypeOrderCancelled = "ORDER_CANCELLED"
	EventTypePaymentFailed  = "PAYMENT_FAILED"
)

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderLineData is the item snapshot carried on order events.
type OrderLineData struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// OrderCreatedEvent is published when checkout persists a pending order.
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      int64           `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []OrderLineData `json:"items"`
}

// OrderPaidEvent is published after a succeeded payment is reconciled.
type OrderPaidEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      int64           `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	IntentID    string          `json:"payment_intent_id"`
}

// OrderCancelledEvent is published when an order is cancelled, whether by a
// failed payment, a manual cancel, or an admin transition.
type OrderCancelledEvent struct {
	BaseEvent
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	UserID      int64  `json:"user_id"`
	Reason      string `json:"reason"`
}

// PaymentFailedEvent is published after a failed payment is reconciled.
type PaymentFailedEvent struct {
	BaseEvent
	OrderID  int64  `json:"order_id"`
	IntentID string `json:"payment_intent_id"`
	Reason   string `json:"reason"`
}
