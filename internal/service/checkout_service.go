package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CheckoutService is the order factory: it turns a validated cart into an
// immutable order, its frozen lines and a pending payment, coordinated with
// the payment gateway.
type CheckoutService struct {
	store          *store.Store
	gateway        payment.Gateway
	pricing        *PricingEngine
	carts          *CartService
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	store *store.Store,
	gateway payment.Gateway,
	pricing *PricingEngine,
	carts *CartService,
	eventPublisher *broker.EventPublisher,
) *CheckoutService {
	return &CheckoutService{
		store:          store,
		gateway:        gateway,
		pricing:        pricing,
		carts:          carts,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// CheckoutRequest carries the customer's checkout details.
type CheckoutRequest struct {
	ShippingAddress models.Address  `json:"shipping_address" binding:"required"`
	BillingAddress  *models.Address `json:"billing_address"`
	CustomerPhone   string          `json:"customer_phone"`
	CustomerNotes   string          `json:"customer_notes"`
}

// PaymentIntentResponse is returned to the client to complete payment.
type PaymentIntentResponse struct {
	ClientSecret    string          `json:"client_secret"`
	PaymentIntentID string          `json:"payment_intent_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	OrderID         int64           `json:"order_id"`
	OrderNumber     string          `json:"order_number"`
}

// StockValidationError carries the per-line issues that block a checkout.
type StockValidationError struct {
	Issues []models.StockIssue
}

func (e *StockValidationError) Error() string {
	return fmt.Sprintf("cart has %d stock issues", len(e.Issues))
}

// Is makes errors.Is(err, ErrInsufficientStock) succeed for this type.
func (e *StockValidationError) Is(target error) bool {
	return target == models.ErrInsufficientStock
}

// CreatePaymentIntent runs the checkout sequence: validate the cart, price
// it, obtain a payment intent from the gateway, then persist order + lines +
// pending payment in one transaction. The cart is left intact; it is cleared
// only when the payment settles, so an abandoned checkout keeps the cart for
// retry.
func (s *CheckoutService) CreatePaymentIntent(ctx context.Context, userID int64, req *CheckoutRequest) (*PaymentIntentResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.CreatePaymentIntent")
	defer span.End()

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		util.CheckoutsFailedTotal.WithLabelValues("user_not_found").Inc()
		return nil, err
	}

	issues, err := s.carts.ValidateStock(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(issues) > 0 {
		util.CheckoutsFailedTotal.WithLabelValues("stock").Inc()
		return nil, &StockValidationError{Issues: issues}
	}

	view, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(view.Items) == 0 {
		util.CheckoutsFailedTotal.WithLabelValues("empty_cart").Inc()
		return nil, models.ErrEmptyCart
	}

	// Quote for the gateway. The order's frozen totals are recomputed from
	// the locked snapshot inside the checkout transaction below.
	quoted := s.pricing.ComputeOrderTotals(view.Items)

	start := time.Now()
	intent, err := s.gateway.CreateIntent(ctx, quoted.Total, s.pricing.Currency(), map[string]string{
		"user_id":    strconv.FormatInt(userID, 10),
		"user_email": user.Email,
		"cart_items": strconv.Itoa(len(view.Items)),
	})
	util.GatewayRequestLatency.WithLabelValues("create_intent").Observe(time.Since(start).Seconds())
	if err != nil {
		util.CheckoutsFailedTotal.WithLabelValues("gateway").Inc()
		return nil, err
	}

	billing := req.ShippingAddress
	if req.BillingAddress != nil {
		billing = *req.BillingAddress
	}

	draft := store.OrderDraft{
		OrderNumber:   GenerateOrderNumber(),
		UserID:        userID,
		Shipping:      req.ShippingAddress,
		Billing:       billing,
		CustomerEmail: user.Email,
		CustomerPhone: req.CustomerPhone,
		CustomerNotes: req.CustomerNotes,
		IntentID:      intent.ID,
		Currency:      s.pricing.Currency(),
		Method:        "stripe",
	}

	order, err := s.store.CreateOrderFromCart(ctx, draft, s.pricing.ComputeOrderTotals)
	if err != nil {
		util.CheckoutsFailedTotal.WithLabelValues("db_error").Inc()
		return nil, err
	}

	util.CheckoutsTotal.Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("intent_id", intent.ID))

	s.publishOrderCreated(ctx, order)

	return &PaymentIntentResponse{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		Amount:          order.Total,
		Currency:        s.pricing.Currency(),
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
	}, nil
}

// CancelPayment is the user-initiated cancellation path: cancel the intent at
// the processor, then apply the canceled transition locally. A gateway
// failure is surfaced as-is, distinct from not-found, and leaves local state
// untouched so a later webhook can still resolve the order either way.
func (s *CheckoutService) CancelPayment(ctx context.Context, userID int64, intentID string) (*payment.Intent, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.CancelPayment")
	defer span.End()

	pay, err := s.store.GetPaymentByIntentID(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if pay == nil {
		return nil, fmt.Errorf("payment %s: %w", intentID, models.ErrNotFound)
	}
	// Ownership check collapses not-owned into not-found.
	if _, err := s.store.GetOrderByID(ctx, pay.OrderID, userID); err != nil {
		return nil, err
	}

	start := time.Now()
	intent, err := s.gateway.CancelIntent(ctx, intentID)
	util.GatewayRequestLatency.WithLabelValues("cancel_intent").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	result, err := s.store.FailPayment(ctx, intentID, models.PaymentStatusCancelled, "Canceled by user")
	if err != nil {
		return nil, err
	}
	if result != nil && !result.AlreadySettled {
		util.PaymentsCancelledTotal.Inc()
		s.publishOrderCancelled(ctx, result.Order, "Canceled by user")
	}

	return intent, nil
}

// PaymentStatus proxies the processor's view of an intent.
func (s *CheckoutService) PaymentStatus(ctx context.Context, intentID string) (*payment.Intent, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.PaymentStatus")
	defer span.End()

	start := time.Now()
	intent, err := s.gateway.RetrieveIntent(ctx, intentID)
	util.GatewayRequestLatency.WithLabelValues("retrieve_intent").Observe(time.Since(start).Seconds())
	return intent, err
}

func (s *CheckoutService) publishOrderCreated(ctx context.Context, order *models.Order) {
	items, err := s.store.GetOrderItems(ctx, order.ID)
	if err != nil {
		s.logger.Error("Failed to load order items for event", zap.Error(err))
		return
	}

	lines := make([]models.OrderLineData, 0, len(items))
	for _, item := range items {
		lines = append(lines, models.OrderLineData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	event := &models.OrderCreatedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderCreated),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		TotalAmount: order.Total,
		Items:       lines,
	}
	if err := s.eventPublisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}
}

func (s *CheckoutService) publishOrderCancelled(ctx context.Context, order *models.Order, reason string) {
	event := &models.OrderCancelledEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderCancelled),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Reason:      reason,
	}
	if err := s.eventPublisher.PublishOrderCancelled(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
	}
}

// GenerateOrderNumber builds a date-stamped, human-readable order number:
// ORD-<YYYYMMDD>-<8 random hex chars>.
func GenerateOrderNumber() string {
	date := time.Now().UTC().Format("20060102")
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", date, suffix)
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}
