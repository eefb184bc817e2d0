package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// Event type strings as delivered by the processor. Anything else is
// accepted and ignored by the reconciler.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
	EventPaymentCanceled  = "payment_intent.canceled"
)

// Intent is a snapshot of a payment-in-progress at the processor. Amount is
// in minor units (cents).
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
}

// Event is a verified inbound webhook event. IntentID is the join key back
// to the internal payment record.
type Event struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	IntentID      string `json:"intent_id"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// Gateway is the thin adapter over the external payment processor. The live
// implementation talks to Stripe; the demo implementation fabricates
// plausible responses so everything downstream is testable offline. The
// choice is made once, at startup.
type Gateway interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*Intent, error)
	RetrieveIntent(ctx context.Context, id string) (*Intent, error)
	CancelIntent(ctx context.Context, id string) (*Intent, error)

	// VerifyWebhook authenticates a raw webhook delivery before any of its
	// content is trusted, and returns the decoded event.
	VerifyWebhook(payload []byte, signature string) (*Event, error)
}

// MinorUnits converts a decimal currency amount to integer minor units,
// rounding half away from zero. 69.665 becomes 6967.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
