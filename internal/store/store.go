package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT id, email FROM users WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetProductByID retrieves a product by ID. Callers decide whether an
// inactive product is acceptable.
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductBySKU retrieves a product by SKU
func (s *Store) GetProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE sku = $1", sku)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product %s: %w", sku, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// AdjustInventory applies a delta to a tracked product's stock in a single
// statement, clamped at zero. Untracked products are left alone. Safe under
// concurrent invocation: the decrement happens inside the UPDATE, never as a
// read-modify-write in application memory.
func (s *Store) AdjustInventory(ctx context.Context, productID int64, delta int) error {
	return adjustInventory(ctx, s.db, productID, delta)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func adjustInventory(ctx context.Context, e execer, productID int64, delta int) error {
	_, err := e.ExecContext(ctx,
		`UPDATE products
		 SET inventory_quantity = GREATEST(inventory_quantity + $1, 0)
		 WHERE id = $2 AND track_inventory`,
		delta, productID)
	if err != nil {
		return fmt.Errorf("failed to adjust inventory for product %d: %w", productID, err)
	}
	return nil
}
