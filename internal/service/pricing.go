package service

import (
	"fmt"

	"storefront/config"
	"storefront/internal/models"

	"github.com/shopspring/decimal"
)

// PricingEngine computes order totals from a cart snapshot. It is a pure
// calculator: deterministic, no storage access, reusable at checkout and for
// later audits. All arithmetic is fixed-point decimal; binary floating point
// never touches money here.
type PricingEngine struct {
	taxRate           decimal.Decimal
	freeShippingAbove decimal.Decimal
	shippingFee       decimal.Decimal
	currency          string
}

// NewPricingEngine parses the business configuration into decimals once, at
// startup, so a malformed rate fails fast instead of at checkout time.
func NewPricingEngine(cfg config.BusinessConfig) (*PricingEngine, error) {
	taxRate, err := decimal.NewFromString(cfg.TaxRate)
	if err != nil {
		return nil, fmt.Errorf("invalid tax rate %q: %w", cfg.TaxRate, err)
	}
	threshold, err := decimal.NewFromString(cfg.FreeShippingThreshold)
	if err != nil {
		return nil, fmt.Errorf("invalid free shipping threshold %q: %w", cfg.FreeShippingThreshold, err)
	}
	fee, err := decimal.NewFromString(cfg.ShippingFee)
	if err != nil {
		return nil, fmt.Errorf("invalid shipping fee %q: %w", cfg.ShippingFee, err)
	}

	return &PricingEngine{
		taxRate:           taxRate,
		freeShippingAbove: threshold,
		shippingFee:       fee,
		currency:          cfg.CurrencyCode,
	}, nil
}

// Currency returns the configured ISO currency code.
func (e *PricingEngine) Currency() string {
	return e.currency
}

// ComputeOrderTotals prices a set of cart lines: subtotal from the
// snapshotted unit prices, tax on the subtotal, flat shipping waived at the
// free-shipping threshold.
func (e *PricingEngine) ComputeOrderTotals(lines []models.CartLine) models.OrderTotals {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.LineTotal())
	}

	tax := subtotal.Mul(e.taxRate)

	shipping := e.shippingFee
	if subtotal.GreaterThanOrEqual(e.freeShippingAbove) {
		shipping = decimal.Zero
	}

	return models.OrderTotals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping),
	}
}

// SummarizeCart aggregates cart lines into the summary shown alongside the
// cart. The same decimal representation is used here and in order totals so
// the two surfaces never disagree on rounding.
func SummarizeCart(lines []models.CartLine) models.CartSummary {
	summary := models.CartSummary{Subtotal: decimal.Zero}
	for _, line := range lines {
		summary.Subtotal = summary.Subtotal.Add(line.LineTotal())
		summary.TotalItems += line.Quantity
	}
	summary.ItemsCount = len(lines)
	return summary
}
