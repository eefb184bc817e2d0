package store

import (
	"context"
	"database/sql"
	"fmt"

	"storefront/internal/models"
)

const cartLinesQuery = `
	SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.unit_price,
	       p.name AS product_name, p.sku AS product_sku, p.is_active AS product_active,
	       p.track_inventory, p.inventory_quantity, p.allow_backorders
	FROM cart_items ci
	JOIN products p ON p.id = ci.product_id
	WHERE ci.cart_id = $1
	ORDER BY ci.id`

// GetCartByUserID retrieves a user's cart. Returns (nil, nil) when the user
// has no cart yet; reads never create one.
func (s *Store) GetCartByUserID(ctx context.Context, userID int64) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.GetContext(ctx, &cart, "SELECT * FROM carts WHERE user_id = $1", userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// GetOrCreateCart returns the user's cart, creating an empty one on first use.
func (s *Store) GetOrCreateCart(ctx context.Context, userID int64) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.GetContext(ctx, &cart,
		`INSERT INTO carts (user_id) VALUES ($1)
		 ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
		 RETURNING id, user_id, created_at, updated_at`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create cart for user %d: %w", userID, err)
	}
	return &cart, nil
}

// GetCartLines retrieves a cart's lines joined with the catalog fields needed
// for validation, fully materialized in one query.
func (s *Store) GetCartLines(ctx context.Context, cartID int64) ([]models.CartLine, error) {
	lines := []models.CartLine{}
	err := s.db.SelectContext(ctx, &lines, cartLinesQuery, cartID)
	return lines, err
}

// GetCartItem retrieves one cart line by its (cart, product) pair. Returns
// (nil, nil) when absent.
func (s *Store) GetCartItem(ctx context.Context, cartID, productID int64) (*models.CartItem, error) {
	var item models.CartItem
	err := s.db.GetContext(ctx, &item,
		"SELECT * FROM cart_items WHERE cart_id = $1 AND product_id = $2", cartID, productID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpsertCartItem inserts a cart line or merges quantity into an existing one.
// The unit price is snapshotted on first insert and left untouched on merge.
func (s *Store) UpsertCartItem(ctx context.Context, item *models.CartItem) error {
	err := s.db.GetContext(ctx, item,
		`INSERT INTO cart_items (cart_id, product_id, quantity, unit_price)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (cart_id, product_id)
		 DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
		 RETURNING *`,
		item.CartID, item.ProductID, item.Quantity, item.UnitPrice)
	if err != nil {
		return fmt.Errorf("failed to upsert cart item: %w", err)
	}
	return nil
}

// SetCartItemQuantity overwrites a line's quantity. Returns ErrNotFound when
// the line does not exist.
func (s *Store) SetCartItemQuantity(ctx context.Context, cartID, productID int64, quantity int) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE cart_items SET quantity = $1, updated_at = NOW() WHERE cart_id = $2 AND product_id = $3",
		quantity, cartID, productID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("cart item for product %d: %w", productID, models.ErrNotFound)
	}
	return nil
}

// DeleteCartItem removes one line. Returns ErrNotFound when the line is absent.
func (s *Store) DeleteCartItem(ctx context.Context, cartID, productID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2", cartID, productID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("cart item for product %d: %w", productID, models.ErrNotFound)
	}
	return nil
}

// ClearCart deletes every line in a cart. Idempotent.
func (s *Store) ClearCart(ctx context.Context, cartID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM cart_items WHERE cart_id = $1", cartID)
	return err
}

// TransferCart merges all lines of the source cart into the destination cart
// in one transaction, summing quantities on conflict, then empties the
// source. Snapshotted unit prices travel with the lines.
func (s *Store) TransferCart(ctx context.Context, fromCartID, toCartID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO cart_items (cart_id, product_id, quantity, unit_price)
		 SELECT $1, product_id, quantity, unit_price FROM cart_items WHERE cart_id = $2
		 ON CONFLICT (cart_id, product_id)
		 DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()`,
		toCartID, fromCartID)
	if err != nil {
		return fmt.Errorf("failed to merge cart lines: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE cart_id = $1", fromCartID); err != nil {
		return fmt.Errorf("failed to empty source cart: %w", err)
	}

	return tx.Commit()
}
