package response

import (
	"barberbook/internal/domain/payment"

	"github.com/google/uuid"
)

type PaymentIntentResponse struct {
	IntentID     string    `json:"intentId"`
	BookingID    uuid.UUID `json:"bookingId"`
	AmountCents  int64     `json:"amountCents"`
	Currency     string    `json:"currency"`
	Status       string    `json:"status"`
	ClientSecret string    `json:"clientSecret"`
}

func FromPaymentIntent(intent *payment.Intent) *PaymentIntentResponse {
	return &PaymentIntentResponse{
		IntentID:     intent.ID,
		BookingID:    intent.BookingID,
		AmountCents:  intent.AmountCents,
		Currency:     intent.Currency,
		Status:       string(intent.Status),
		ClientSecret: intent.ClientSecret,
	}
}
