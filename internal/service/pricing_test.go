package service

import (
	"testing"

	"storefront/config"
	"storefront/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPricing(t *testing.T) *PricingEngine {
	t.Helper()
	engine, err := NewPricingEngine(config.BusinessConfig{
		TaxRate:               "0.085",
		FreeShippingThreshold: "100.00",
		ShippingFee:           "9.99",
		CurrencyCode:          "usd",
	})
	require.NoError(t, err)
	return engine
}

func line(price string, quantity int) models.CartLine {
	return models.CartLine{
		UnitPrice: decimal.RequireFromString(price),
		Quantity:  quantity,
	}
}

func TestComputeOrderTotals(t *testing.T) {
	engine := newTestPricing(t)

	totals := engine.ComputeOrderTotals([]models.CartLine{
		line("10.00", 3),
		line("25.00", 1),
	})

	assert.True(t, totals.Subtotal.Equal(decimal.RequireFromString("55.00")), "subtotal %s", totals.Subtotal)
	assert.True(t, totals.Tax.Equal(decimal.RequireFromString("4.675")), "tax %s", totals.Tax)
	assert.True(t, totals.Shipping.Equal(decimal.RequireFromString("9.99")), "shipping %s", totals.Shipping)
	assert.True(t, totals.Total.Equal(decimal.RequireFromString("69.665")), "total %s", totals.Total)
}

func TestComputeOrderTotalsFreeShippingBoundary(t *testing.T) {
	engine := newTestPricing(t)

	// Exactly at the threshold qualifies.
	at := engine.ComputeOrderTotals([]models.CartLine{line("100.00", 1)})
	assert.True(t, at.Shipping.IsZero(), "shipping %s", at.Shipping)

	// One cent below does not.
	below := engine.ComputeOrderTotals([]models.CartLine{line("99.99", 1)})
	assert.True(t, below.Shipping.Equal(decimal.RequireFromString("9.99")), "shipping %s", below.Shipping)
}

func TestComputeOrderTotalsEmpty(t *testing.T) {
	engine := newTestPricing(t)

	totals := engine.ComputeOrderTotals(nil)

	assert.True(t, totals.Subtotal.IsZero())
	assert.True(t, totals.Tax.IsZero())
	// An empty set of lines is below the free shipping threshold.
	assert.True(t, totals.Shipping.Equal(decimal.RequireFromString("9.99")))
	assert.True(t, totals.Total.Equal(decimal.RequireFromString("9.99")))
}

func TestNewPricingEngineRejectsMalformedConfig(t *testing.T) {
	_, err := NewPricingEngine(config.BusinessConfig{
		TaxRate:               "eight percent",
		FreeShippingThreshold: "100.00",
		ShippingFee:           "9.99",
	})
	assert.Error(t, err)
}

func TestSummarizeCart(t *testing.T) {
	lines := []models.CartLine{
		line("19.99", 2),
		line("5.00", 3),
	}

	summary := SummarizeCart(lines)

	assert.True(t, summary.Subtotal.Equal(decimal.RequireFromString("54.98")), "subtotal %s", summary.Subtotal)
	assert.Equal(t, 5, summary.TotalItems)
	assert.Equal(t, 2, summary.ItemsCount)
}

func TestSummarizeCartEmpty(t *testing.T) {
	summary := SummarizeCart(nil)

	assert.True(t, summary.Subtotal.IsZero())
	assert.Equal(t, 0, summary.TotalItems)
	assert.Equal(t, 0, summary.ItemsCount)
}
