package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain failure taxonomy. Services wrap these with
// context via fmt.Errorf("%w", ...); the API layer matches with errors.Is to
// pick the response status.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrEmptyCart        = errors.New("cart is empty")
	ErrConflict         = errors.New("conflict")
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrForbidden        = errors.New("forbidden")
	ErrPaymentGateway   = errors.New("payment gateway error")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidPayload   = errors.New("invalid webhook payload")

	// ErrInsufficientStock is the match target for InsufficientStockError.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// InsufficientStockError carries the availability details the client needs to
// correct the request.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Is makes errors.Is(err, ErrInsufficientStock) succeed for this type.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
