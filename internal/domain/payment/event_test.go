//go:build unit

package payment_test

import (
	"testing"

	"barberbook/internal/domain/payment"

	"github.com/stretchr/testify/assert"
)

func TestKindForStripeEventType(t *testing.T) {
	testCases := []struct {
		eventType string
		kind      payment.EventKind
		known     bool
	}{
		{"payment_intent.succeeded", payment.EventSucceeded, true},
		{"payment_intent.payment_failed", payment.EventFailed, true},
		{"payment_intent.canceled", payment.EventCanceled, true},
		{"charge.refunded", payment.EventRefunded, true},
		{"payment_intent.created", "", false},
		{"charge.dispute.created", "", false},
		{"", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.eventType, func(t *testing.T) {
			kind, ok := payment.KindForStripeEventType(tc.eventType)
			assert.Equal(t, tc.known, ok)
			assert.Equal(t, tc.kind, kind)
		})
	}
}

func TestIntentStatus(t *testing.T) {
	assert.True(t, payment.IntentCreated.IsValid())
	assert.False(t, payment.IntentStatus("pending").IsValid())

	assert.False(t, payment.IntentCreated.IsTerminal())
	assert.True(t, payment.IntentSucceeded.IsTerminal())
	assert.True(t, payment.IntentFailed.IsTerminal())
	assert.True(t, payment.IntentRefunded.IsTerminal())
}
