package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"

	"github.com/hackgods/tenant-booking-engine/internal/appointment"
)

type fakeIntents struct {
	intents map[string]*stripe.PaymentIntent
	calls   int
	expand  []*string
}

func (f *fakeIntents) Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.calls++
	f.expand = params.Expand
	pi, ok := f.intents[id]
	if !ok {
		return nil, errors.New("no such payment_intent")
	}
	return pi, nil
}

func TestStripeCheckerStatus(t *testing.T) {
	fake := &fakeIntents{intents: map[string]*stripe.PaymentIntent{
		"pi_paid":     {Status: stripe.PaymentIntentStatusSucceeded},
		"pi_capture":  {Status: stripe.PaymentIntentStatusRequiresCapture},
		"pi_card":     {Status: stripe.PaymentIntentStatusRequiresPaymentMethod},
		"pi_canceled": {Status: stripe.PaymentIntentStatusCanceled},
		"pi_refunded": {
			Status:       stripe.PaymentIntentStatusSucceeded,
			LatestCharge: &stripe.Charge{Refunded: true},
		},
	}}
	checker := &StripeChecker{intents: fake}

	tests := map[string]appointment.PaymentStatus{
		"pi_paid":     appointment.PaymentPaid,
		"pi_capture":  appointment.PaymentPending,
		"pi_card":     appointment.PaymentUnpaid,
		"pi_canceled": appointment.PaymentUnpaid,
		"pi_refunded": appointment.PaymentRefunded,
	}
	for ref, want := range tests {
		t.Run(ref, func(t *testing.T) {
			got, err := checker.PaymentStatus(context.Background(), ref)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
	require.NotEmpty(t, fake.expand)
	assert.Equal(t, "latest_charge", *fake.expand[0])
}

func TestStripeCheckerErrors(t *testing.T) {
	fake := &fakeIntents{intents: map[string]*stripe.PaymentIntent{}}
	checker := &StripeChecker{intents: fake}

	_, err := checker.PaymentStatus(context.Background(), "cs_test_123")
	assert.ErrorIs(t, err, ErrInvalidReference)
	assert.Zero(t, fake.calls)

	_, err = checker.PaymentStatus(context.Background(), "pi_missing")
	assert.Error(t, err)
	assert.Equal(t, 1, fake.calls)
}

func TestStatic(t *testing.T) {
	st, err := Static(appointment.PaymentPending).PaymentStatus(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, appointment.PaymentPending, st)
}
