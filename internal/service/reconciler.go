package service

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/redisclient"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// intentLockTTL bounds how long a webhook delivery may hold the per-intent
// lock before a crashed handler stops blocking redeliveries.
const intentLockTTL = 30 * time.Second

// Reconciler applies verified payment outcomes to orders, payments,
// inventory and carts, exactly once per payment intent. It is the only
// component that moves payments out of the pending state from webhook input.
type Reconciler struct {
	store          *store.Store
	redis          *redisclient.Client
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
}

// NewReconciler creates a new payment reconciler
func NewReconciler(store *store.Store, redis *redisclient.Client, eventPublisher *broker.EventPublisher) *Reconciler {
	return &Reconciler{
		store:          store,
		redis:          redis,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// HandleEvent routes one verified webhook event. Unknown event types and
// events for intents this system never issued are logged and ignored:
// answering success stops the processor from retrying something we will
// never act on.
func (r *Reconciler) HandleEvent(ctx context.Context, event *payment.Event) error {
	ctx, span := util.StartSpan(ctx, "Reconciler.HandleEvent")
	defer span.End()

	util.WebhookEventsTotal.WithLabelValues(event.Type).Inc()

	switch event.Type {
	case payment.EventPaymentSucceeded:
		return r.withIntentLock(ctx, event.IntentID, r.applySucceeded)
	case payment.EventPaymentFailed:
		reason := event.FailureReason
		if reason == "" {
			reason = "Payment failed"
		}
		return r.withIntentLock(ctx, event.IntentID, func(ctx context.Context, intentID string) error {
			return r.applyFailure(ctx, intentID, models.PaymentStatusFailed, reason)
		})
	case payment.EventPaymentCanceled:
		return r.withIntentLock(ctx, event.IntentID, func(ctx context.Context, intentID string) error {
			return r.applyFailure(ctx, intentID, models.PaymentStatusCancelled, "Payment canceled")
		})
	default:
		r.logger.Info("Ignoring unhandled webhook event type",
			zap.String("type", event.Type),
			zap.String("event_id", event.ID))
		return nil
	}
}

// withIntentLock serializes concurrent deliveries for one intent ahead of
// the database row lock. A held lock means another delivery is in flight;
// that one is reported as a conflict so the processor retries later, by
// which time the settled status gate answers it as a duplicate. Redis being
// down degrades to the row lock alone.
func (r *Reconciler) withIntentLock(ctx context.Context, intentID string, apply func(context.Context, string) error) error {
	acquired, err := r.redis.AcquireIntentLock(ctx, intentID, intentLockTTL)
	if err != nil {
		r.logger.Warn("Intent lock unavailable, relying on row lock",
			zap.String("intent_id", intentID),
			zap.Error(err))
		return apply(ctx, intentID)
	}
	if !acquired {
		return fmt.Errorf("delivery for intent %s already in flight: %w", intentID, models.ErrConflict)
	}
	defer func() {
		if err := r.redis.ReleaseIntentLock(context.Background(), intentID); err != nil {
			r.logger.Warn("Failed to release intent lock", zap.Error(err))
		}
	}()

	return apply(ctx, intentID)
}

// applySucceeded settles a succeeded payment: payment completed, order paid,
// inventory decremented per line, cart cleared, all in one transaction in
// the store. Redelivery hits the settled gate and changes nothing.
func (r *Reconciler) applySucceeded(ctx context.Context, intentID string) error {
	start := time.Now()
	defer func() {
		util.ReconcileLatency.Observe(time.Since(start).Seconds())
	}()

	result, err := r.store.SettlePayment(ctx, intentID)
	if err != nil {
		return fmt.Errorf("failed to settle payment %s: %w", intentID, err)
	}
	if result == nil {
		r.logger.Warn("Succeeded event for unknown payment intent, ignoring",
			zap.String("intent_id", intentID))
		return nil
	}
	if result.AlreadySettled {
		util.WebhookDuplicatesTotal.Inc()
		r.logger.Info("Payment already settled, skipping side effects",
			zap.String("intent_id", intentID),
			zap.String("payment_status", string(result.Payment.Status)))
		return nil
	}

	util.PaymentsReconciledTotal.WithLabelValues("completed").Inc()
	util.InventoryAdjustmentsTotal.WithLabelValues("decrement").Inc()
	r.logger.Info("Payment settled",
		zap.String("intent_id", intentID),
		zap.Int64("order_id", result.Order.ID),
		zap.String("order_number", result.Order.OrderNumber))

	event := &models.OrderPaidEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderPaid),
		OrderID:     result.Order.ID,
		OrderNumber: result.Order.OrderNumber,
		UserID:      result.Order.UserID,
		TotalAmount: result.Order.Total,
		IntentID:    intentID,
	}
	if err := r.eventPublisher.PublishOrderPaid(ctx, event); err != nil {
		r.logger.Error("Failed to publish OrderPaid event", zap.Error(err))
	}

	return nil
}

// applyFailure records a failed or canceled payment and cancels the order.
// Nothing was decremented for a pending payment, so inventory and cart are
// untouched.
func (r *Reconciler) applyFailure(ctx context.Context, intentID string, status models.PaymentStatus, reason string) error {
	result, err := r.store.FailPayment(ctx, intentID, status, reason)
	if err != nil {
		return fmt.Errorf("failed to record payment failure %s: %w", intentID, err)
	}
	if result == nil {
		r.logger.Warn("Failure event for unknown payment intent, ignoring",
			zap.String("intent_id", intentID))
		return nil
	}
	if result.AlreadySettled {
		util.WebhookDuplicatesTotal.Inc()
		r.logger.Info("Payment already settled, skipping failure transition",
			zap.String("intent_id", intentID),
			zap.String("payment_status", string(result.Payment.Status)))
		return nil
	}

	util.PaymentsReconciledTotal.WithLabelValues(string(status)).Inc()
	r.logger.Warn("Payment did not complete",
		zap.String("intent_id", intentID),
		zap.Int64("order_id", result.Order.ID),
		zap.String("reason", reason))

	failEvent := &models.PaymentFailedEvent{
		BaseEvent: newBaseEvent(models.EventTypePaymentFailed),
		OrderID:   result.Order.ID,
		IntentID:  intentID,
		Reason:    reason,
	}
	if err := r.eventPublisher.PublishPaymentFailed(ctx, failEvent); err != nil {
		r.logger.Error("Failed to publish PaymentFailed event", zap.Error(err))
	}

	cancelEvent := &models.OrderCancelledEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderCancelled),
		OrderID:     result.Order.ID,
		OrderNumber: result.Order.OrderNumber,
		UserID:      result.Order.UserID,
		Reason:      reason,
	}
	if err := r.eventPublisher.PublishOrderCancelled(ctx, cancelEvent); err != nil {
		r.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
	}

	return nil
}
