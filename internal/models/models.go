package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus tracks an order through the fulfillment lifecycle.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// PaymentStatus tracks the state of the external payment.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// orderTransitions is the single source of truth for legal status changes.
// Re-setting the current status is allowed and treated as a no-op.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:       {OrderStatusProcessing, OrderStatusShipped, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {OrderStatusRefunded},
	OrderStatusCancelled:  {},
	OrderStatusRefunded:   {},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	if from == to {
		return true
	}
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidOrderStatus reports whether s is a member of the OrderStatus enum.
func ValidOrderStatus(s OrderStatus) bool {
	_, ok := orderTransitions[s]
	return ok
}

// AllOrderStatuses returns every order status, in lifecycle order.
func AllOrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPending, OrderStatusPaid, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled,
		OrderStatusRefunded,
	}
}

// User is the read-only slice of the identity record this service needs.
type User struct {
	ID    int64  `db:"id" json:"id"`
	Email string `db:"email" json:"email"`
}

// Product is a read-only catalog record.
type Product struct {
	ID                int64           `db:"id" json:"id"`
	SKU               string          `db:"sku" json:"sku"`
	Name              string          `db:"name" json:"name"`
	Price             decimal.Decimal `db:"price" json:"price"`
	IsActive          bool            `db:"is_active" json:"is_active"`
	TrackInventory    bool            `db:"track_inventory" json:"track_inventory"`
	InventoryQuantity int             `db:"inventory_quantity" json:"inventory_quantity"`
	AllowBackorders   bool            `db:"allow_backorders" json:"allow_backorders"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
}

// Cart is the per-user mutable pre-purchase container. One cart per user.
type Cart struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CartItem is one line in a cart. (cart_id, product_id) is unique; the unit
// price is snapshotted when the line is first added.
type CartItem struct {
	ID        int64           `db:"id" json:"id"`
	CartID    int64           `db:"cart_id" json:"cart_id"`
	ProductID int64           `db:"product_id" json:"product_id"`
	Quantity  int             `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// CartLine is a cart item joined with the catalog fields needed for
// validation and display, materialized in one query.
type CartLine struct {
	ID                int64           `db:"id" json:"id"`
	CartID            int64           `db:"cart_id" json:"cart_id"`
	ProductID         int64           `db:"product_id" json:"product_id"`
	Quantity          int             `db:"quantity" json:"quantity"`
	UnitPrice         decimal.Decimal `db:"unit_price" json:"unit_price"`
	ProductName       string          `db:"product_name" json:"product_name"`
	ProductSKU        string          `db:"product_sku" json:"product_sku"`
	ProductActive     bool            `db:"product_active" json:"product_active"`
	TrackInventory    bool            `db:"track_inventory" json:"-"`
	InventoryQuantity int             `db:"inventory_quantity" json:"-"`
	AllowBackorders   bool            `db:"allow_backorders" json:"-"`
}

// LineTotal is the line's snapshotted unit price times quantity.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartSummary aggregates a cart's lines.
type CartSummary struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	TotalItems int             `json:"total_items"`
	ItemsCount int             `json:"items_count"`
}

// CartView is a fully-materialized cart response.
type CartView struct {
	UserID  int64       `json:"user_id"`
	Items   []CartLine  `json:"items"`
	Summary CartSummary `json:"summary"`
}

// StockIssue reports a cart line that can no longer be fulfilled.
type StockIssue struct {
	ProductID         int64  `json:"product_id"`
	ProductName       string `json:"product_name"`
	Issue             string `json:"issue"`
	RequestedQuantity int    `json:"requested_quantity"`
	AvailableQuantity int    `json:"available_quantity"`
}

const (
	StockIssueUnavailable  = "product_unavailable"
	StockIssueInsufficient = "insufficient_stock"
)

// Address is one shipping or billing address block.
type Address struct {
	Line1      string `json:"address_line1" binding:"required"`
	Line2      string `json:"address_line2"`
	City       string `json:"city" binding:"required"`
	State      string `json:"state" binding:"required"`
	PostalCode string `json:"postal_code" binding:"required"`
	Country    string `json:"country" binding:"required"`
}

// OrderTotals is the frozen money breakdown computed at checkout.
type OrderTotals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax_amount"`
	Shipping decimal.Decimal `json:"shipping_amount"`
	Total    decimal.Decimal `json:"total_amount"`
}

// Order is an immutable snapshot of a cart at checkout time. Only status,
// admin notes and the fulfillment timestamps change after creation.
type Order struct {
	ID          int64       `db:"id" json:"id"`
	OrderNumber string      `db:"order_number" json:"order_number"`
	UserID      int64       `db:"user_id" json:"user_id"`
	Status      OrderStatus `db:"status" json:"status"`

	Subtotal decimal.Decimal `db:"subtotal" json:"subtotal"`
	Tax      decimal.Decimal `db:"tax_amount" json:"tax_amount"`
	Shipping decimal.Decimal `db:"shipping_amount" json:"shipping_amount"`
	Total    decimal.Decimal `db:"total_amount" json:"total_amount"`

	ShippingLine1      string `db:"shipping_address_line1" json:"shipping_address_line1"`
	ShippingLine2      string `db:"shipping_address_line2" json:"shipping_address_line2"`
	ShippingCity       string `db:"shipping_city" json:"shipping_city"`
	ShippingState      string `db:"shipping_state" json:"shipping_state"`
	ShippingPostalCode string `db:"shipping_postal_code" json:"shipping_postal_code"`
	ShippingCountry    string `db:"shipping_country" json:"shipping_country"`

	BillingLine1      string `db:"billing_address_line1" json:"billing_address_line1"`
	BillingLine2      string `db:"billing_address_line2" json:"billing_address_line2"`
	BillingCity       string `db:"billing_city" json:"billing_city"`
	BillingState      string `db:"billing_state" json:"billing_state"`
	BillingPostalCode string `db:"billing_postal_code" json:"billing_postal_code"`
	BillingCountry    string `db:"billing_country" json:"billing_country"`

	CustomerEmail string `db:"customer_email" json:"customer_email"`
	CustomerPhone string `db:"customer_phone" json:"customer_phone"`
	CustomerNotes string `db:"customer_notes" json:"customer_notes"`
	AdminNotes    string `db:"admin_notes" json:"admin_notes,omitempty"`

	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	ShippedAt   *time.Time `db:"shipped_at" json:"shipped_at,omitempty"`
	DeliveredAt *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
}

// OrderItem is a frozen copy of a cart line. Never recomputed after creation.
type OrderItem struct {
	ID          int64           `db:"id" json:"id"`
	OrderID     int64           `db:"order_id" json:"order_id"`
	ProductID   int64           `db:"product_id" json:"product_id"`
	ProductName string          `db:"product_name" json:"product_name"`
	ProductSKU  string          `db:"product_sku" json:"product_sku"`
	Quantity    int             `db:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
	TotalPrice  decimal.Decimal `db:"total_price" json:"total_price"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// Payment is the single payment record for an order. The payment intent id is
// the join key for inbound webhook reconciliation and must be unique.
type Payment struct {
	ID            int64           `db:"id" json:"id"`
	OrderID       int64           `db:"order_id" json:"order_id"`
	Method        string          `db:"payment_method" json:"payment_method"`
	Status        PaymentStatus   `db:"payment_status" json:"payment_status"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Currency      string          `db:"currency" json:"currency"`
	IntentID      string          `db:"stripe_payment_intent_id" json:"stripe_payment_intent_id"`
	FailureReason string          `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
	ProcessedAt   *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
}

// OrderSummary is the rolling-window admin dashboard aggregate.
type OrderSummary struct {
	TotalOrders    int             `json:"total_orders"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	OrdersByStatus map[string]int  `json:"orders_by_status"`
	PeriodDays     int             `json:"period_days"`
}
