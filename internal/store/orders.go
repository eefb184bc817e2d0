package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// OrderDraft carries the checkout details the order factory freezes into a
// new order. Billing defaults to shipping upstream, before the draft is built.
type OrderDraft struct {
	OrderNumber   string
	UserID        int64
	Shipping      models.Address
	Billing       models.Address
	CustomerEmail string
	CustomerPhone string
	CustomerNotes string
	IntentID      string
	Currency      string
	Method        string
}

// PriceFunc computes the frozen order totals from a cart snapshot. It must be
// pure: the store calls it inside the checkout transaction.
type PriceFunc func(lines []models.CartLine) models.OrderTotals

const isUniqueViolation = "23505"

// CreateOrderFromCart converts the user's cart into an order, its lines and a
// pending payment, all in one transaction. The cart lines are read under row
// locks so the snapshot cannot race concurrent mutations, and totals are
// recomputed from that snapshot. The cart itself is not cleared here; that
// happens only when the payment settles.
func (s *Store) CreateOrderFromCart(ctx context.Context, draft OrderDraft, price PriceFunc) (*models.Order, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var cart models.Cart
	err = tx.GetContext(ctx, &cart, "SELECT * FROM carts WHERE user_id = $1", draft.UserID)
	if err == sql.ErrNoRows {
		return nil, models.ErrEmptyCart
	}
	if err != nil {
		return nil, err
	}

	lines := []models.CartLine{}
	if err := tx.SelectContext(ctx, &lines, cartLinesQuery+" FOR UPDATE OF ci", cart.ID); err != nil {
		return nil, fmt.Errorf("failed to snapshot cart: %w", err)
	}
	if len(lines) == 0 {
		return nil, models.ErrEmptyCart
	}

	totals := price(lines)

	order := &models.Order{
		OrderNumber:        draft.OrderNumber,
		UserID:             draft.UserID,
		Status:             models.OrderStatusPending,
		Subtotal:           totals.Subtotal,
		Tax:                totals.Tax,
		Shipping:           totals.Shipping,
		Total:              totals.Total,
		ShippingLine1:      draft.Shipping.Line1,
		ShippingLine2:      draft.Shipping.Line2,
		ShippingCity:       draft.Shipping.City,
		ShippingState:      draft.Shipping.State,
		ShippingPostalCode: draft.Shipping.PostalCode,
		ShippingCountry:    draft.Shipping.Country,
		BillingLine1:       draft.Billing.Line1,
		BillingLine2:       draft.Billing.Line2,
		BillingCity:        draft.Billing.City,
		BillingState:       draft.Billing.State,
		BillingPostalCode:  draft.Billing.PostalCode,
		BillingCountry:     draft.Billing.Country,
		CustomerEmail:      draft.CustomerEmail,
		CustomerPhone:      draft.CustomerPhone,
		CustomerNotes:      draft.CustomerNotes,
	}

	err = tx.GetContext(ctx, order, `
		INSERT INTO orders (
			order_number, user_id, status,
			subtotal, tax_amount, shipping_amount, total_amount,
			shipping_address_line1, shipping_address_line2, shipping_city,
			shipping_state, shipping_postal_code, shipping_country,
			billing_address_line1, billing_address_line2, billing_city,
			billing_state, billing_postal_code, billing_country,
			customer_email, customer_phone, customer_notes
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22
		)
		RETURNING id, created_at, updated_at`,
		order.OrderNumber, order.UserID, order.Status,
		order.Subtotal, order.Tax, order.Shipping, order.Total,
		order.ShippingLine1, order.ShippingLine2, order.ShippingCity,
		order.ShippingState, order.ShippingPostalCode, order.ShippingCountry,
		order.BillingLine1, order.BillingLine2, order.BillingCity,
		order.BillingState, order.BillingPostalCode, order.BillingCountry,
		order.CustomerEmail, order.CustomerPhone, order.CustomerNotes)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == isUniqueViolation {
			return nil, fmt.Errorf("order number %s: %w", draft.OrderNumber, models.ErrConflict)
		}
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	for _, line := range lines {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (
				order_id, product_id, product_name, product_sku,
				quantity, unit_price, total_price
			) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			order.ID, line.ProductID, line.ProductName, line.ProductSKU,
			line.Quantity, line.UnitPrice, line.LineTotal())
		if err != nil {
			return nil, fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payments (
			order_id, payment_method, payment_status, amount, currency, stripe_payment_intent_id
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		order.ID, draft.Method, models.PaymentStatusPending, totals.Total, draft.Currency, draft.IntentID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == isUniqueViolation {
			return nil, fmt.Errorf("payment intent %s: %w", draft.IntentID, models.ErrConflict)
		}
		return nil, fmt.Errorf("failed to insert payment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrderByID retrieves an order. A non-zero userID scopes the lookup to the
// owning user; not-owned and not-found are indistinguishable to the caller.
func (s *Store) GetOrderByID(ctx context.Context, id, userID int64) (*models.Order, error) {
	query := "SELECT * FROM orders WHERE id = $1"
	args := []interface{}{id}
	if userID != 0 {
		query += " AND user_id = $2"
		args = append(args, userID)
	}

	var order models.Order
	err := s.db.GetContext(ctx, &order, query, args...)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByNumber retrieves an order by its human-readable number, with the
// same ownership scoping as GetOrderByID.
func (s *Store) GetOrderByNumber(ctx context.Context, number string, userID int64) (*models.Order, error) {
	query := "SELECT * FROM orders WHERE order_number = $1"
	args := []interface{}{number}
	if userID != 0 {
		query += " AND user_id = $2"
		args = append(args, userID)
	}

	var order models.Order
	err := s.db.GetContext(ctx, &order, query, args...)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %s: %w", number, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderItems retrieves all frozen lines for an order
func (s *Store) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// GetPaymentByOrderID retrieves the payment record for an order
func (s *Store) GetPaymentByOrderID(ctx context.Context, orderID int64) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment, "SELECT * FROM payments WHERE order_id = $1", orderID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("payment for order %d: %w", orderID, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetPaymentByIntentID retrieves a payment by the processor's intent id.
// Returns (nil, nil) when no payment carries that handle.
func (s *Store) GetPaymentByIntentID(ctx context.Context, intentID string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment,
		"SELECT * FROM payments WHERE stripe_payment_intent_id = $1", intentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListOrdersByUser retrieves one page of a user's orders, newest first.
func (s *Store) ListOrdersByUser(ctx context.Context, userID int64, page, limit int) ([]models.Order, int, error) {
	var total int
	if err := s.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM orders WHERE user_id = $1", userID); err != nil {
		return nil, 0, err
	}

	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3",
		userID, limit, (page-1)*limit)
	return orders, total, err
}

// ListOrders retrieves one page of all orders, newest first. Admin only.
func (s *Store) ListOrders(ctx context.Context, page, limit int) ([]models.Order, int, error) {
	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM orders"); err != nil {
		return nil, 0, err
	}

	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders ORDER BY created_at DESC LIMIT $1 OFFSET $2",
		limit, (page-1)*limit)
	return orders, total, err
}

// UpdateOrderStatus applies an admin status transition under a row lock.
// Illegal transitions fail with ErrInvalidInput. Entering shipped or
// delivered stamps the matching timestamp the first time only.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus, adminNotes string) (*models.Order, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var order models.Order
	err = tx.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1 FOR UPDATE", orderID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %d: %w", orderID, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if !models.CanTransition(order.Status, status) {
		return nil, fmt.Errorf("cannot transition order from %s to %s: %w",
			order.Status, status, models.ErrInvalidInput)
	}

	now := time.Now().UTC()
	order.Status = status
	if adminNotes != "" {
		order.AdminNotes = adminNotes
	}
	if status == models.OrderStatusShipped && order.ShippedAt == nil {
		order.ShippedAt = &now
	}
	if status == models.OrderStatusDelivered && order.DeliveredAt == nil {
		order.DeliveredAt = &now
	}

	err = tx.GetContext(ctx, &order, `
		UPDATE orders
		SET status = $1, admin_notes = $2, shipped_at = $3, delivered_at = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING *`,
		order.Status, order.AdminNotes, order.ShippedAt, order.DeliveredAt, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderSummary aggregates orders created in the last N days: total count,
// revenue over PAID orders and a per-status histogram.
func (s *Store) GetOrderSummary(ctx context.Context, days int) (*models.OrderSummary, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	rows := []struct {
		Status models.OrderStatus `db:"status"`
		Count  int                `db:"count"`
	}{}
	err := s.db.SelectContext(ctx, &rows,
		"SELECT status, COUNT(*) AS count FROM orders WHERE created_at >= $1 GROUP BY status", cutoff)
	if err != nil {
		return nil, err
	}

	summary := &models.OrderSummary{
		TotalRevenue:   decimal.Zero,
		OrdersByStatus: make(map[string]int),
		PeriodDays:     days,
	}
	for _, status := range models.AllOrderStatuses() {
		summary.OrdersByStatus[string(status)] = 0
	}
	for _, row := range rows {
		summary.OrdersByStatus[string(row.Status)] = row.Count
		summary.TotalOrders += row.Count
	}

	err = s.db.GetContext(ctx, &summary.TotalRevenue,
		"SELECT COALESCE(SUM(total_amount), 0) FROM orders WHERE created_at >= $1 AND status = $2",
		cutoff, models.OrderStatusPaid)
	if err != nil {
		return nil, err
	}

	return summary, nil
}

// SettlementResult reports the outcome of applying a payment event.
type SettlementResult struct {
	Order          *models.Order
	Payment        *models.Payment
	AlreadySettled bool
}

// SettlePayment applies a succeeded payment event: payment completed, order
// paid, tracked inventory decremented per order line, owner's cart cleared.
// All of it commits atomically or not at all. The payment row lock plus the
// status gate make the transition idempotent: a redelivered event finds a
// non-pending payment and returns with AlreadySettled set, touching nothing.
// Returns (nil, nil) when no payment carries the intent id.
func (s *Store) SettlePayment(ctx context.Context, intentID string) (*SettlementResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	payment, order, settled, err := lockPayment(ctx, tx, intentID)
	if err != nil || payment == nil {
		return nil, err
	}
	if settled {
		return &SettlementResult{Order: order, Payment: payment, AlreadySettled: true}, nil
	}

	now := time.Now().UTC()
	payment.Status = models.PaymentStatusCompleted
	payment.ProcessedAt = &now
	_, err = tx.ExecContext(ctx,
		"UPDATE payments SET payment_status = $1, processed_at = $2, updated_at = NOW() WHERE id = $3",
		payment.Status, now, payment.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to complete payment: %w", err)
	}

	order.Status = models.OrderStatusPaid
	_, err = tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		order.Status, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark order paid: %w", err)
	}

	items := []models.OrderItem{}
	if err := tx.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1", order.ID); err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	for _, item := range items {
		if err := adjustInventory(ctx, tx, item.ProductID, -item.Quantity); err != nil {
			return nil, err
		}
	}

	_, err = tx.ExecContext(ctx,
		"DELETE FROM cart_items WHERE cart_id = (SELECT id FROM carts WHERE user_id = $1)",
		order.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to clear cart: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &SettlementResult{Order: order, Payment: payment}, nil
}

// FailPayment applies a failed or canceled payment event: payment moves to the
// given terminal status with the reason recorded, and the order is cancelled.
// Inventory and cart are untouched; nothing was ever decremented for a pending
// payment. Idempotent under the same status gate as SettlePayment. Returns
// (nil, nil) when no payment carries the intent id.
func (s *Store) FailPayment(ctx context.Context, intentID string, status models.PaymentStatus, reason string) (*SettlementResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	payment, order, settled, err := lockPayment(ctx, tx, intentID)
	if err != nil || payment == nil {
		return nil, err
	}
	if settled {
		return &SettlementResult{Order: order, Payment: payment, AlreadySettled: true}, nil
	}

	payment.Status = status
	payment.FailureReason = reason
	_, err = tx.ExecContext(ctx,
		"UPDATE payments SET payment_status = $1, failure_reason = $2, updated_at = NOW() WHERE id = $3",
		status, reason, payment.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to record payment failure: %w", err)
	}

	order.Status = models.OrderStatusCancelled
	_, err = tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		order.Status, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &SettlementResult{Order: order, Payment: payment}, nil
}

// lockPayment locks the payment row for an intent id and loads its order.
// Reports settled=true when the payment already left the pending state.
func lockPayment(ctx context.Context, tx *sqlx.Tx, intentID string) (*models.Payment, *models.Order, bool, error) {
	var payment models.Payment
	err := tx.GetContext(ctx, &payment,
		"SELECT * FROM payments WHERE stripe_payment_intent_id = $1 FOR UPDATE", intentID)
	if err == sql.ErrNoRows {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, err
	}

	var order models.Order
	if err := tx.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", payment.OrderID); err != nil {
		return nil, nil, false, fmt.Errorf("failed to load order %d: %w", payment.OrderID, err)
	}

	settled := payment.Status != models.PaymentStatusPending && payment.Status != models.PaymentStatusProcessing
	return &payment, &order, settled, nil
}
