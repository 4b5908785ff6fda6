package request

import (
	"time"

	"barberbook/internal/usecase/commands"

	"github.com/google/uuid"
)

type CreateBookingRequest struct {
	ProviderID uuid.UUID `json:"provider_id" binding:"required"`
	ServiceID  uuid.UUID `json:"service_id" binding:"required"`
	StartTime  time.Time `json:"start_time" binding:"required"`
	EndTime    time.Time `json:"end_time" binding:"required"`
}

func (r CreateBookingRequest) ToParams() commands.CreateBookingParams {
	return commands.CreateBookingParams{
		ProviderID: r.ProviderID,
		ServiceID:  r.ServiceID,
		StartTime:  r.StartTime.UTC(),
		EndTime:    r.EndTime.UTC(),
	}
}

type CancelBookingRequest struct {
	ExpectedVersion int32 `json:"expected_version" binding:"required"`
}
