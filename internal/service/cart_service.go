package service

import (
	"context"
	"fmt"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// CartService owns the per-user mutable cart and its lines.
type CartService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(store *store.Store) *CartService {
	return &CartService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// GetCart returns the user's cart with lines and summary. Reading never
// creates a cart row; a user without a cart sees an empty view.
func (s *CartService) GetCart(ctx context.Context, userID int64) (*models.CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.GetCart")
	defer span.End()

	cart, err := s.store.GetCartByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return emptyCartView(userID), nil
	}

	lines, err := s.store.GetCartLines(ctx, cart.ID)
	if err != nil {
		return nil, err
	}

	return &models.CartView{
		UserID:  userID,
		Items:   lines,
		Summary: SummarizeCart(lines),
	}, nil
}

// AddItem adds a product to the cart, merging quantities when the product is
// already present. The unit price is snapshotted from the current catalog
// price on first add and kept thereafter.
func (s *CartService) AddItem(ctx context.Context, userID, productID int64, quantity int) (*models.CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem")
	defer span.End()

	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", models.ErrInvalidInput)
	}

	product, err := s.store.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		// Inactive products are indistinguishable from absent ones.
		return nil, fmt.Errorf("product %d: %w", productID, models.ErrNotFound)
	}

	cart, err := s.store.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.GetCartItem(ctx, cart.ID, productID)
	if err != nil {
		return nil, err
	}
	merged := quantity
	if existing != nil {
		merged += existing.Quantity
	}
	if err := checkStock(product, merged); err != nil {
		return nil, err
	}

	item := &models.CartItem{
		CartID:    cart.ID,
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: product.Price,
	}
	if err := s.store.UpsertCartItem(ctx, item); err != nil {
		return nil, err
	}

	util.CartMutationsTotal.WithLabelValues("add").Inc()
	s.logger.Info("Cart item added",
		zap.Int64("user_id", userID),
		zap.Int64("product_id", productID),
		zap.Int("quantity", quantity))

	return s.GetCart(ctx, userID)
}

// UpdateItem overwrites a line's quantity, validated against current stock.
func (s *CartService) UpdateItem(ctx context.Context, userID, productID int64, quantity int) (*models.CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.UpdateItem")
	defer span.End()

	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", models.ErrInvalidInput)
	}

	cart, err := s.store.GetCartByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, fmt.Errorf("cart for user %d: %w", userID, models.ErrNotFound)
	}

	product, err := s.store.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := checkStock(product, quantity); err != nil {
		return nil, err
	}

	if err := s.store.SetCartItemQuantity(ctx, cart.ID, productID, quantity); err != nil {
		return nil, err
	}

	util.CartMutationsTotal.WithLabelValues("update").Inc()
	return s.GetCart(ctx, userID)
}

// RemoveItem deletes one line from the cart.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID int64) (*models.CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.RemoveItem")
	defer span.End()

	cart, err := s.store.GetCartByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, fmt.Errorf("cart for user %d: %w", userID, models.ErrNotFound)
	}

	if err := s.store.DeleteCartItem(ctx, cart.ID, productID); err != nil {
		return nil, err
	}

	util.CartMutationsTotal.WithLabelValues("remove").Inc()
	return s.GetCart(ctx, userID)
}

// Clear deletes every line in the user's cart. Idempotent; creates the cart
// when it does not exist yet.
func (s *CartService) Clear(ctx context.Context, userID int64) error {
	ctx, span := util.StartSpan(ctx, "CartService.Clear")
	defer span.End()

	cart, err := s.store.GetOrCreateCart(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.store.ClearCart(ctx, cart.ID); err != nil {
		return err
	}

	util.CartMutationsTotal.WithLabelValues("clear").Inc()
	return nil
}

// ValidateStock re-checks every cart line against the current catalog state.
// Non-mutating; used as the pre-checkout gate and as a standalone query.
func (s *CartService) ValidateStock(ctx context.Context, userID int64) ([]models.StockIssue, error) {
	ctx, span := util.StartSpan(ctx, "CartService.ValidateStock")
	defer span.End()

	cart, err := s.store.GetCartByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return []models.StockIssue{}, nil
	}

	lines, err := s.store.GetCartLines(ctx, cart.ID)
	if err != nil {
		return nil, err
	}

	return findStockIssues(lines), nil
}

// TransferCart merges the source user's cart into the destination user's cart
// and empties the source. Used for guest-to-authenticated migration. Returns
// false without error when the source cart is absent or empty.
func (s *CartService) TransferCart(ctx context.Context, fromUserID, toUserID int64) (bool, error) {
	ctx, span := util.StartSpan(ctx, "CartService.TransferCart")
	defer span.End()

	fromCart, err := s.store.GetCartByUserID(ctx, fromUserID)
	if err != nil {
		return false, err
	}
	if fromCart == nil {
		return false, nil
	}

	lines, err := s.store.GetCartLines(ctx, fromCart.ID)
	if err != nil {
		return false, err
	}
	if len(lines) == 0 {
		return false, nil
	}

	toCart, err := s.store.GetOrCreateCart(ctx, toUserID)
	if err != nil {
		return false, err
	}

	if err := s.store.TransferCart(ctx, fromCart.ID, toCart.ID); err != nil {
		return false, err
	}

	util.CartMutationsTotal.WithLabelValues("transfer").Inc()
	s.logger.Info("Cart transferred",
		zap.Int64("from_user_id", fromUserID),
		zap.Int64("to_user_id", toUserID),
		zap.Int("lines", len(lines)))
	return true, nil
}

// checkStock enforces the cart-time stock rule: a tracked product without
// backorders cannot be carted beyond its current inventory.
func checkStock(product *models.Product, requested int) error {
	if !product.TrackInventory || product.AllowBackorders {
		return nil
	}
	if requested > product.InventoryQuantity {
		return &models.InsufficientStockError{
			ProductID: product.ID,
			Requested: requested,
			Available: product.InventoryQuantity,
		}
	}
	return nil
}

// findStockIssues flags lines whose product went inactive or whose tracked
// stock fell below the carted quantity.
func findStockIssues(lines []models.CartLine) []models.StockIssue {
	issues := []models.StockIssue{}
	for _, line := range lines {
		if !line.ProductActive {
			issues = append(issues, models.StockIssue{
				ProductID:         line.ProductID,
				ProductName:       line.ProductName,
				Issue:             models.StockIssueUnavailable,
				RequestedQuantity: line.Quantity,
				AvailableQuantity: 0,
			})
			continue
		}
		if line.TrackInventory && !line.AllowBackorders && line.InventoryQuantity < line.Quantity {
			issues = append(issues, models.StockIssue{
				ProductID:         line.ProductID,
				ProductName:       line.ProductName,
				Issue:             models.StockIssueInsufficient,
				RequestedQuantity: line.Quantity,
				AvailableQuantity: line.InventoryQuantity,
			})
		}
	}
	return issues
}

func emptyCartView(userID int64) *models.CartView {
	return &models.CartView{
		UserID:  userID,
		Items:   []models.CartLine{},
		Summary: SummarizeCart(nil),
	}
}
