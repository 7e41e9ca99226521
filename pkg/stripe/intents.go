package stripe

import (
	"context"

	"github.com/stripe/stripe-go/v82"
	stripeclient "github.com/stripe/stripe-go/v82/client"

	pkgerrors "github.com/skyfare-io/skyfare-backend/pkg/errors"
)

// IntentCreator exposes payment intent creation against the configured
// Stripe account.
type IntentCreator struct {
	api *stripeclient.API
}

// Intents returns the payment intent surface of this client.
func (c *Client) Intents() *IntentCreator {
	if c == nil {
		return nil
	}
	return &IntentCreator{api: c.api}
}

// Create opens a payment intent, threading the caller's context through
// to the Stripe request.
func (ic *IntentCreator) Create(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if ic == nil || ic.api == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client not initialized")
	}
	if params == nil {
		params = &stripe.PaymentIntentParams{}
	}
	if params.Params.Context == nil {
		params.Params.Context = ctx
	}
	return ic.api.PaymentIntents.New(params)
}
