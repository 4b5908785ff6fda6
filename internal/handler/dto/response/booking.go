package response

import (
	"time"

	"barberbook/internal/usecase/queries"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

type BookingResponse struct {
	ID              uuid.UUID `json:"id"`
	ProviderID      uuid.UUID `json:"providerId"`
	CustomerID      uuid.UUID `json:"customerId"`
	ServiceID       uuid.UUID `json:"serviceId"`
	ServiceName     string    `json:"serviceName"`
	PriceCents      int64     `json:"priceCents"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	Status          string    `json:"status"`
	PaymentIntentID *string   `json:"paymentIntentId,omitempty"`
	PaymentDueAt    time.Time `json:"paymentDueAt"`
	Version         int32     `json:"version"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type BookingListResponse struct {
	ID          uuid.UUID `json:"id"`
	ProviderID  uuid.UUID `json:"providerId"`
	ServiceName string    `json:"serviceName"`
	PriceCents  int64     `json:"priceCents"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Field names track the read model one-to-one, so both conversions
// lean on copier instead of hand-written assignments.
func FromBookingView(rm *queries.BookingView) *BookingResponse {
	var res BookingResponse
	_ = copier.Copy(&res, rm)
	return &res
}

func FromBookingListItem(rm *queries.BookingListItem) *BookingListResponse {
	var res BookingListResponse
	_ = copier.Copy(&res, rm)
	return &res
}
