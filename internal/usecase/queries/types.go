package queries

import (
	"time"

	"github.com/google/uuid"
)

// Read models (DTOs for the read side)
type BookingView struct {
	ID              uuid.UUID `json:"id"`
	ProviderID      uuid.UUID `json:"provider_id"`
	CustomerID      uuid.UUID `json:"customer_id"`
	ServiceID       uuid.UUID `json:"service_id"`
	ServiceName     string    `json:"service_name"`
	PriceCents      int64     `json:"price_cents"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Status          string    `json:"status"`
	PaymentIntentID *string   `json:"payment_intent_id,omitempty"`
	PaymentDueAt    time.Time `json:"payment_due_at"`
	Version         int32     `json:"version"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type BookingListItem struct {
	ID          uuid.UUID `json:"id"`
	ProviderID  uuid.UUID `json:"provider_id"`
	ServiceName string    `json:"service_name"`
	PriceCents  int64     `json:"price_cents"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

type FreeSlot struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}
