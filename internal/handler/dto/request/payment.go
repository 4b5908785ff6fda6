package request

import (
	"github.com/google/uuid"
)

type CreateIntentRequest struct {
	BookingID uuid.UUID `json:"booking_id" binding:"required"`
}
