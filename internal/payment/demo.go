package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DemoGateway fabricates plausible processor responses so the rest of the
// system runs without Stripe credentials. Intents it creates are remembered
// in memory, so retrieve and cancel return consistent snapshots. Webhook
// payloads are accepted with any non-empty signature: demo deployments have
// no signing secret to verify against.
type DemoGateway struct {
	currency string

	mu      sync.Mutex
	intents map[string]*Intent
}

// NewDemoGateway constructs the offline gateway.
func NewDemoGateway(currency string) *DemoGateway {
	return &DemoGateway{
		currency: currency,
		intents:  make(map[string]*Intent),
	}
}

// CreateIntent fabricates a new intent in the requires_payment_method state.
func (g *DemoGateway) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*Intent, error) {
	id := "pi_demo_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
	intent := &Intent{
		ID:           id,
		ClientSecret: id + "_secret_demo",
		Amount:       MinorUnits(amount),
		Currency:     currency,
		Status:       "requires_payment_method",
	}

	g.mu.Lock()
	g.intents[id] = intent
	g.mu.Unlock()

	return copyIntent(intent), nil
}

// RetrieveIntent returns the remembered snapshot, or a plausible one for ids
// this process never created.
func (g *DemoGateway) RetrieveIntent(ctx context.Context, id string) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if intent, ok := g.intents[id]; ok {
		return copyIntent(intent), nil
	}
	return &Intent{
		ID:       id,
		Amount:   0,
		Currency: g.currency,
		Status:   "requires_payment_method",
	}, nil
}

// CancelIntent marks a remembered intent canceled.
func (g *DemoGateway) CancelIntent(ctx context.Context, id string) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	intent, ok := g.intents[id]
	if !ok {
		intent = &Intent{ID: id, Currency: g.currency}
		g.intents[id] = intent
	}
	intent.Status = "canceled"
	return copyIntent(intent), nil
}

// VerifyWebhook decodes a processor-shaped event payload. The signature must
// be present but is not cryptographically checked in demo mode.
func (g *DemoGateway) VerifyWebhook(payload []byte, signature string) (*Event, error) {
	if signature == "" {
		return nil, models.ErrInvalidSignature
	}

	var raw struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID               string `json:"id"`
				LastPaymentError *struct {
					Message string `json:"message"`
				} `json:"last_payment_error"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%v: %w", err, models.ErrInvalidPayload)
	}
	if raw.Type == "" || raw.Data.Object.ID == "" {
		return nil, fmt.Errorf("missing event type or intent id: %w", models.ErrInvalidPayload)
	}

	event := &Event{
		ID:       raw.ID,
		Type:     raw.Type,
		IntentID: raw.Data.Object.ID,
	}
	if raw.Data.Object.LastPaymentError != nil {
		event.FailureReason = raw.Data.Object.LastPaymentError.Message
	}
	return event, nil
}

func copyIntent(in *Intent) *Intent {
	out := *in
	return &out
}
