package payment

import (
	"context"
	"testing"

	"storefront/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemoCreateIntent(t *testing.T) {
	g := NewDemoGateway("usd")
	ctx := context.Background()

	intent, err := g.CreateIntent(ctx, decimal.RequireFromString("69.665"), "usd", nil)
	require.NoError(t, err)

	assert.Regexp(t, `^pi_demo_[0-9a-f]{16}$`, intent.ID)
	assert.Equal(t, intent.ID+"_secret_demo", intent.ClientSecret)
	assert.Equal(t, int64(6967), intent.Amount)
	assert.Equal(t, "usd", intent.Currency)
	assert.Equal(t, "requires_payment_method", intent.Status)
}

func TestDemoRetrieveIntent(t *testing.T) {
	g := NewDemoGateway("usd")
	ctx := context.Background()

	created, err := g.CreateIntent(ctx, decimal.RequireFromString("10.00"), "usd", nil)
	require.NoError(t, err)

	got, err := g.RetrieveIntent(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, int64(1000), got.Amount)

	// Unknown ids still get a plausible snapshot rather than an error.
	unknown, err := g.RetrieveIntent(ctx, "pi_demo_0000000000000000")
	require.NoError(t, err)
	assert.Equal(t, "requires_payment_method", unknown.Status)
}

func TestDemoCancelIntent(t *testing.T) {
	g := NewDemoGateway("usd")
	ctx := context.Background()

	created, err := g.CreateIntent(ctx, decimal.RequireFromString("10.00"), "usd", nil)
	require.NoError(t, err)

	canceled, err := g.CancelIntent(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "canceled", canceled.Status)

	got, err := g.RetrieveIntent(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "canceled", got.Status)
}

func TestDemoVerifyWebhook(t *testing.T) {
	g := NewDemoGateway("usd")

	payload := []byte(`{
		"id": "evt_1",
		"type": "payment_intent.payment_failed",
		"data": {"object": {"id": "pi_demo_abc", "last_payment_error": {"message": "card declined"}}}
	}`)

	event, err := g.VerifyWebhook(payload, "demo-signature")
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, EventPaymentFailed, event.Type)
	assert.Equal(t, "pi_demo_abc", event.IntentID)
	assert.Equal(t, "card declined", event.FailureReason)
}

func TestDemoVerifyWebhookMissingSignature(t *testing.T) {
	g := NewDemoGateway("usd")

	_, err := g.VerifyWebhook([]byte(`{}`), "")
	assert.ErrorIs(t, err, models.ErrInvalidSignature)
}

func TestDemoVerifyWebhookBadPayload(t *testing.T) {
	g := NewDemoGateway("usd")

	_, err := g.VerifyWebhook([]byte(`not json`), "sig")
	assert.ErrorIs(t, err, models.ErrInvalidPayload)

	// Well-formed JSON without the intent id is still rejected.
	_, err = g.VerifyWebhook([]byte(`{"id":"evt_2","type":"payment_intent.succeeded","data":{"object":{}}}`), "sig")
	assert.ErrorIs(t, err, models.ErrInvalidPayload)
}

func TestMinorUnits(t *testing.T) {
	cases := []struct {
		amount string
		want   int64
	}{
		{"0", 0},
		{"10.00", 1000},
		{"69.665", 6967},
		{"0.005", 1},
		{"99.99", 9999},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MinorUnits(decimal.RequireFromString(tc.amount)), "amount %s", tc.amount)
	}
}
