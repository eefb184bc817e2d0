package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"storefront/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

// StripeGateway is the live Gateway implementation backed by the Stripe API.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

// NewStripeGateway constructs the live gateway. Both the API key and the
// webhook signing secret are required.
func NewStripeGateway(apiKey, webhookSecret string) (*StripeGateway, error) {
	if apiKey == "" {
		return nil, errors.New("stripe: api key is required")
	}
	if webhookSecret == "" {
		return nil, errors.New("stripe: webhook secret is required")
	}
	return &StripeGateway{
		api:           client.New(apiKey, nil),
		webhookSecret: webhookSecret,
	}, nil
}

// CreateIntent creates a payment intent for the given decimal amount.
func (g *StripeGateway) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(MinorUnits(amount)),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create intent: %v: %w", err, models.ErrPaymentGateway)
	}
	return intentFromStripe(pi), nil
}

// RetrieveIntent fetches the current intent snapshot from Stripe.
func (g *StripeGateway) RetrieveIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe retrieve intent %s: %v: %w", id, err, models.ErrPaymentGateway)
	}
	return intentFromStripe(pi), nil
}

// CancelIntent cancels an intent at Stripe.
func (g *StripeGateway) CancelIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Cancel(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe cancel intent %s: %v: %w", id, err, models.ErrPaymentGateway)
	}
	return intentFromStripe(pi), nil
}

// VerifyWebhook checks the Stripe-Signature header against the signing
// secret and decodes the event. The payload is not trusted until the
// signature verifies.
func (g *StripeGateway) VerifyWebhook(payload []byte, signature string) (*Event, error) {
	if signature == "" {
		return nil, models.ErrInvalidSignature
	}

	event, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, models.ErrInvalidSignature)
	}

	decoded := &Event{
		ID:   event.ID,
		Type: string(event.Type),
	}

	var object struct {
		ID               string `json:"id"`
		LastPaymentError *struct {
			Message string `json:"message"`
		} `json:"last_payment_error"`
	}
	if err := json.Unmarshal(event.Data.Raw, &object); err != nil {
		return nil, fmt.Errorf("%v: %w", err, models.ErrInvalidPayload)
	}
	decoded.IntentID = object.ID
	if object.LastPaymentError != nil {
		decoded.FailureReason = object.LastPaymentError.Message
	}

	return decoded, nil
}

func intentFromStripe(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
	}
}
