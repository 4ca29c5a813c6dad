// Package payments talks to the payment provider.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// ErrNotConfigured is returned by NewStripeGateway without a secret key.
var ErrNotConfigured = errors.New("payments: stripe secret key is not set")

// Intent is the provider's view of a created payment intent.
type Intent struct {
	ID           string
	ClientSecret string
}

// StripeGateway creates card payment intents through the Stripe API.
type StripeGateway struct {
	api *client.API
}

func NewStripeGateway(secretKey string) (*StripeGateway, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, ErrNotConfigured
	}
	return &StripeGateway{api: client.New(secretKey, nil)}, nil
}

func (g *StripeGateway) CreateIntent(ctx context.Context, amount int64, currency string) (Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(amount),
		Currency:           stripe.String(currency),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return Intent{}, fmt.Errorf("create payment intent: %w", err)
	}
	return Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}
