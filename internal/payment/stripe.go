// Package payment looks up the state of payments made for paid services.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/paymentintent"

	"github.com/hackgods/tenant-booking-engine/internal/appointment"
)

var ErrInvalidReference = errors.New("payment reference is not a payment intent id")

// intentFetcher is the part of the Stripe client used here.
type intentFetcher interface {
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeChecker resolves payment references as Stripe PaymentIntent IDs.
type StripeChecker struct {
	intents intentFetcher
}

func NewStripeChecker(secretKey string) *StripeChecker {
	return &StripeChecker{
		intents: &paymentintent.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey},
	}
}

func (c *StripeChecker) PaymentStatus(ctx context.Context, reference string) (appointment.PaymentStatus, error) {
	if !strings.HasPrefix(reference, "pi_") {
		return "", fmt.Errorf("%w: %q", ErrInvalidReference, reference)
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge")

	pi, err := c.intents.Get(reference, params)
	if err != nil {
		return "", fmt.Errorf("stripe: get payment intent %s: %w", reference, err)
	}
	return statusOf(pi), nil
}

func statusOf(pi *stripe.PaymentIntent) appointment.PaymentStatus {
	if pi.LatestCharge != nil && pi.LatestCharge.Refunded {
		return appointment.PaymentRefunded
	}
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return appointment.PaymentPaid
	case stripe.PaymentIntentStatusProcessing,
		stripe.PaymentIntentStatusRequiresAction,
		stripe.PaymentIntentStatusRequiresCapture,
		stripe.PaymentIntentStatusRequiresConfirmation:
		return appointment.PaymentPending
	default:
		return appointment.PaymentUnpaid
	}
}

// Static reports the same status for every reference. Used when no Stripe
// key is configured, so paid services stay pending until confirmed by hand.
type Static appointment.PaymentStatus

func (s Static) PaymentStatus(context.Context, string) (appointment.PaymentStatus, error) {
	return appointment.PaymentStatus(s), nil
}
