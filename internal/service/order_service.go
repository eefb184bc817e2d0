package service

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/models"
	"storefront/internal/redisclient"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.uber.org/zap"
)

const (
	summaryCacheTTL    = time.Minute
	defaultSummaryDays = 30
)

func summaryCacheKey(days int) string {
	return fmt.Sprintf("orders:summary:%d", days)
}

// OrderService is the read and admin surface over orders.
type OrderService struct {
	store  *store.Store
	redis  *redisclient.Client
	logger *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(store *store.Store, redis *redisclient.Client) *OrderService {
	return &OrderService{
		store:  store,
		redis:  redis,
		logger: util.GetLogger(),
	}
}

// OrderDetail is a fully-materialized order view: the order row, its frozen
// lines and the payment record, loaded with explicit queries.
type OrderDetail struct {
	Order   *models.Order      `json:"order"`
	Items   []models.OrderItem `json:"items"`
	Payment *models.Payment    `json:"payment"`
}

// GetOrder retrieves an order by id. A non-zero userID restricts the lookup
// to orders the user owns; absent and not-owned are both reported not found.
func (s *OrderService) GetOrder(ctx context.Context, orderID, userID int64) (*OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	return s.loadDetail(ctx, order)
}

// GetOrderByNumber retrieves an order by its human-readable number, with the
// same ownership scoping as GetOrder.
func (s *OrderService) GetOrderByNumber(ctx context.Context, number string, userID int64) (*OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrderByNumber")
	defer span.End()

	order, err := s.store.GetOrderByNumber(ctx, number, userID)
	if err != nil {
		return nil, err
	}
	return s.loadDetail(ctx, order)
}

// ListUserOrders retrieves one page of the user's orders, newest first.
func (s *OrderService) ListUserOrders(ctx context.Context, userID int64, page, limit int) ([]models.Order, int, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListUserOrders")
	defer span.End()

	page, limit, err := normalizePage(page, limit)
	if err != nil {
		return nil, 0, err
	}
	return s.store.ListOrdersByUser(ctx, userID, page, limit)
}

// ListAllOrders retrieves one page of every user's orders. Admin only;
// callers enforce the role.
func (s *OrderService) ListAllOrders(ctx context.Context, page, limit int) ([]models.Order, int, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListAllOrders")
	defer span.End()

	page, limit, err := normalizePage(page, limit)
	if err != nil {
		return nil, 0, err
	}
	return s.store.ListOrders(ctx, page, limit)
}

// UpdateStatus applies an admin status transition. Legality is enforced
// centrally against the order status state machine; shipped/delivered
// timestamps are stamped the first time only.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID int64, status models.OrderStatus, adminNotes string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus")
	defer span.End()

	if !models.ValidOrderStatus(status) {
		return nil, fmt.Errorf("unknown order status %q: %w", status, models.ErrInvalidInput)
	}

	order, err := s.store.UpdateOrderStatus(ctx, orderID, status, adminNotes)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order status updated",
		zap.Int64("order_id", orderID),
		zap.String("status", string(status)))

	// The default dashboard window is stale now; drop it rather than waiting
	// out the TTL. Other windows age out on their own.
	if err := s.redis.InvalidateCache(ctx, summaryCacheKey(defaultSummaryDays)); err != nil {
		s.logger.Warn("Failed to invalidate summary cache", zap.Error(err))
	}

	return order, nil
}

// Summary aggregates orders over a rolling day window for the admin
// dashboard, cached briefly in Redis.
func (s *OrderService) Summary(ctx context.Context, days int) (*models.OrderSummary, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Summary")
	defer span.End()

	if days <= 0 || days > 365 {
		return nil, fmt.Errorf("day window must be in 1..365: %w", models.ErrInvalidInput)
	}

	cacheKey := summaryCacheKey(days)
	var cached models.OrderSummary
	hit, err := s.redis.GetJSON(ctx, cacheKey, &cached)
	if err != nil {
		s.logger.Warn("Summary cache read failed", zap.Error(err))
	}
	if hit {
		return &cached, nil
	}

	summary, err := s.store.GetOrderSummary(ctx, days)
	if err != nil {
		return nil, err
	}

	if err := s.redis.CacheJSON(ctx, cacheKey, summary, summaryCacheTTL); err != nil {
		s.logger.Warn("Summary cache write failed", zap.Error(err))
	}

	return summary, nil
}

func (s *OrderService) loadDetail(ctx context.Context, order *models.Order) (*OrderDetail, error) {
	items, err := s.store.GetOrderItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	payment, err := s.store.GetPaymentByOrderID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return &OrderDetail{Order: order, Items: items, Payment: payment}, nil
}

func normalizePage(page, limit int) (int, int, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		return 0, 0, fmt.Errorf("page size above 100: %w", models.ErrInvalidInput)
	}
	return page, limit, nil
}
