package gateway

import (
	"context"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// Intent is the provider-agnostic view of a created payment intent.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

// PaymentGateway creates payment intents against the external processor.
// The portal only ever observes the downstream effect of a confirmed intent
// (a succeeded Payment record); it never polls the processor.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, amount float64, currency string) (*Intent, error)
}

// StripeGateway implements PaymentGateway on the Stripe API.
type StripeGateway struct {
	api             *client.API
	defaultCurrency string
}

// NewStripeGateway constructs a gateway from a secret key.
func NewStripeGateway(secretKey, defaultCurrency string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	if defaultCurrency == "" {
		defaultCurrency = "lkr"
	}
	return &StripeGateway{api: api, defaultCurrency: defaultCurrency}
}

// CreateIntent creates a payment intent. Amount is in major currency units;
// Stripe expects minor units.
func (g *StripeGateway) CreateIntent(ctx context.Context, amount float64, currency string) (*Intent, error) {
	if currency == "" {
		currency = g.defaultCurrency
	}
	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(int64(amount * 100)),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, err
	}
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}
