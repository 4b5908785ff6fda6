//go:build e2e

package booking_test

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"barberbook/internal/handler/dto/request"
	"barberbook/internal/handler/dto/response"
	"barberbook/tests/common/authtest"
	"barberbook/tests/common/dbtest"
	"barberbook/tests/common/httptest"
	"barberbook/tests/e2e"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	bookingsURL     = "/api/bookings"
	intentURL       = "/api/payments/intent"
	webhookURL      = "/api/payments/webhook"
	availabilityURL = "/api/availability"
)

type BookingSuite struct {
	e2e.SharedSuite
}

func (s *BookingSuite) SetupSubTest() {
	s.SharedSuite.SetupSubTest()
}

func TestBookingSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(BookingSuite))
}

// futureSlot returns a half-hour slot comfortably in the future so the
// past-slot guard and the cancellation cutoff never interfere.
func futureSlot() (time.Time, time.Time) {
	start := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Hour)
	return start, start.Add(30 * time.Minute)
}

func (s *BookingSuite) token(t *testing.T, userID uuid.UUID) string {
	return authtest.NewJWTHelper(s.Config.JWT).GenerateToken(t, userID, "customer")
}

// seedProvider creates a provider with one 30-minute service and a
// round-the-clock calendar.
func (s *BookingSuite) seedProvider(t *testing.T) (uuid.UUID, uuid.UUID) {
	providerID := dbtest.CreateTestProvider(t, s.DB, "Test Barber")
	serviceID := dbtest.CreateTestService(t, s.DB, providerID, "Haircut", 3000, 30)
	dbtest.OpenAllWeek(t, s.DB, providerID)
	return providerID, serviceID
}

func (s *BookingSuite) createBooking(t *testing.T, token string, providerID, serviceID uuid.UUID, start, end time.Time, idempotencyKey string) (response.BookingResponse, int) {
	body := request.CreateBookingRequest{
		ProviderID: providerID,
		ServiceID:  serviceID,
		StartTime:  start,
		EndTime:    end,
	}
	w := httptest.PerformRequestWithHeaders(t, s.Router, http.MethodPost, bookingsURL, body, token,
		map[string]string{"Idempotency-Key": idempotencyKey})

	var created response.BookingResponse
	if w.Code == http.StatusCreated || w.Code == http.StatusOK {
		require.NoError(t, httptest.DecodeResponseBody(t, w.Body, &created))
	}
	return created, w.Code
}

func (s *BookingSuite) postWebhook(t *testing.T, eventID, eventType, intentID string) {
	t.Helper()

	body := map[string]string{"id": eventID, "type": eventType, "intent_id": intentID}
	w := httptest.PerformRequestWithHeaders(t, s.Router, http.MethodPost, webhookURL, body, "",
		map[string]string{"Stripe-Signature": e2e.TestSignature})
	require.Equal(t, http.StatusOK, w.Code)
}

// =============================================================================
// TestBookingLifecycle - create, pay, confirm
// =============================================================================

func (s *BookingSuite) TestBookingLifecycle() {
	s.Run("Normal case: booking is created and confirmed by the payment webhook", func() {
		t := s.T()

		providerID, serviceID := s.seedProvider(t)
		customerID := uuid.New()
		token := s.token(t, customerID)
		start, end := futureSlot()

		created, code := s.createBooking(t, token, providerID, serviceID, start, end, "lifecycle-key-1")
		require.Equal(t, http.StatusCreated, code)
		require.Equal(t, "pending_payment", created.Status)
		require.Equal(t, customerID, created.CustomerID)
		require.Equal(t, int64(3000), created.PriceCents)
		require.Equal(t, int32(1), created.Version)
		require.NotNil(t, created.PaymentIntentID, "intent should be opened during create")

		// Explicit intent creation replays the intent opened during create
		var intent response.PaymentIntentResponse
		w := httptest.PerformRequest(t, s.Router, http.MethodPost, intentURL,
			request.CreateIntentRequest{BookingID: created.ID}, token)
		httptest.AssertSuccessResponse(t, w, http.StatusOK, &intent)
		require.Equal(t, *created.PaymentIntentID, intent.IntentID)
		require.NotEmpty(t, intent.ClientSecret)

		s.postWebhook(t, "evt_1", "payment_intent.succeeded", intent.IntentID)

		var confirmed response.BookingResponse
		w = httptest.PerformRequest(t, s.Router, http.MethodGet, bookingsURL+"/"+created.ID.String(), nil, token)
		httptest.AssertSuccessResponse(t, w, http.StatusOK, &confirmed)
		require.Equal(t, "confirmed", confirmed.Status)
		require.Equal(t, int32(2), confirmed.Version)
	})

	s.Run("Normal case: failed payment releases the slot", func() {
		t := s.T()

		providerID, serviceID := s.seedProvider(t)
		token := s.token(t, uuid.New())
		start, end := futureSlot()

		created, code := s.createBooking(t, token, providerID, serviceID, start, end, "lifecycle-key-2")
		require.Equal(t, http.StatusCreated, code)
		require.NotNil(t, created.PaymentIntentID)

		s.postWebhook(t, "evt_2", "payment_intent.payment_failed", *created.PaymentIntentID)

		var after response.BookingResponse
		w := httptest.PerformRequest(t, s.Router, http.MethodGet, bookingsURL+"/"+created.ID.String(), nil, token)
		httptest.AssertSuccessResponse(t, w, http.StatusOK, &after)
		require.Equal(t, "canceled", after.Status)

		// The released slot is bookable again
		_, code = s.createBooking(t, token, providerID, serviceID, start, end, "lifecycle-key-2-retry")
		require.Equal(t, http.StatusCreated, code)
	})

	s.Run("Normal case: expiry sweep frees the slot of an unpaid booking", func() {
		t := s.T()
		ctx := context.Background()

		providerID, serviceID := s.seedProvider(t)
		token := s.token(t, uuid.New())
		start, end := futureSlot()

		created, code := s.createBooking(t, token, providerID, serviceID, start, end, "expiry-key")
		require.Equal(t, http.StatusCreated, code)
		require.Equal(t, "pending_payment", created.Status)

		// Age the payment deadline past due instead of waiting out the TTL.
		_, err := s.DB.Exec(ctx,
			"UPDATE bookings SET payment_due_at = now() - interval '1 minute' WHERE id = $1", created.ID)
		require.NoError(t, err)

		expired, err := s.Expiry.ExpireOverdue(ctx, 100)
		require.NoError(t, err)
		require.Equal(t, 1, expired)

		var after response.BookingResponse
		w := httptest.PerformRequest(t, s.Router, http.MethodGet, bookingsURL+"/"+created.ID.String(), nil, token)
		httptest.AssertSuccessResponse(t, w, http.StatusOK, &after)
		require.Equal(t, "expired", after.Status)

		// The expired booking no longer blocks the interval.
		rebooked, code := s.createBooking(t, token, providerID, serviceID, start, end, "expiry-key-rebook")
		require.Equal(t, http.StatusCreated, code)
		require.Equal(t, "pending_payment", rebooked.Status)
		require.NotEqual(t, created.ID, rebooked.ID)
	})

	s.Run("Error case: webhook for an unknown intent asks for redelivery", func() {
		t := s.T()

		// The event precedes any local intent row, so the handler answers
		// 5xx and the provider keeps the event in its retry queue.
		body := map[string]string{"id": "evt_x", "type": "payment_intent.succeeded", "intent_id": "pi_does_not_exist"}
		w := httptest.PerformRequestWithHeaders(t, s.Router, http.MethodPost, webhookURL, body, "",
			map[string]string{"Stripe-Signature": e2e.TestSignature})
		require.Equal(t, http.StatusInternalServerError, w.Code)
	})

	s.Run("Error case: webhook with a bad signature is rejected", func() {
		t := s.T()

		body := map[string]string{"id": "evt_y", "type": "payment_intent.succeeded", "intent_id": "pi_1"}
		w := httptest.PerformRequestWithHeaders(t, s.Router, http.MethodPost, webhookURL, body, "",
			map[string]string{"Stripe-Signature": "t=0,v1=forged"})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

// =============================================================================
// TestIdempotencyAndConflicts
// =============================================================================

func (s *BookingSuite) TestIdempotencyAndConflicts() {
	s.Run("Normal case: replaying the same idempotency key returns the original booking", func() {
		t := s.T()

		providerID, serviceID := s.seedProvider(t)
		token := s.token(t, uuid.New())
		start, end := futureSlot()

		first, code := s.createBooking(t, token, providerID, serviceID, start, end, "replay-key")
		require.Equal(t, http.StatusCreated, code)

		second, code := s.createBooking(t, token, providerID, serviceID, start, end, "replay-key")
		require.Equal(t, http.StatusOK, code, "replay should not create a second booking")
		require.Equal(t, first.ID, second.ID)
	})

	s.Run("Error case: reusing an idempotency key with different parameters fails", func() {
		t := s.T()

		providerID, serviceID := s.seedProvider(t)
		token := s.token(t, uuid.New())
		start, end := futureSlot()

		_, code := s.createBooking(t, token, providerID, serviceID, start, end, "mutated-key")
		require.Equal(t, http.StatusCreated, code)

		_, code = s.createBooking(t, token, providerID, serviceID, start.Add(time.Hour), end.Add(time.Hour), "mutated-key")
		require.Equal(t, http.StatusConflict, code)
	})

	s.Run("Error case: a second customer cannot take the same slot", func() {
		t := s.T()

		providerID, serviceID := s.seedProvider(t)
		start, end := futureSlot()

		_, code := s.createBooking(t, s.token(t, uuid.New()), providerID, serviceID, start, end, "holder-key")
		require.Equal(t, http.StatusCreated, code)

		_, code = s.createBooking(t, s.token(t, uuid.New()), providerID, serviceID, start, end, "rival-key")
		require.Equal(t, http.StatusConflict, code)

		// The losing key replays the conflict outcome
		_, code = s.createBooking(t, s.token(t, uuid.New()), providerID, serviceID, start, end, "rival-key")
		require.Equal(t, http.StatusConflict, code)
	})

	s.Run("Normal case: back-to-back slots do not conflict", func() {
		t := s.T()

		providerID, serviceID := s.seedProvider(t)
		token := s.token(t, uuid.New())
		start, end := futureSlot()

		_, code := s.createBooking(t, token, providerID, serviceID, start, end, "slot-a")
		require.Equal(t, http.StatusCreated, code)

		_, code = s.createBooking(t, token, providerID, serviceID, end, end.Add(30*time.Minute), "slot-b")
		require.Equal(t, http.StatusCreated, code)
	})
}

// =============================================================================
// TestCancelBooking
// =============================================================================

func (s *BookingSuite) TestCancelBooking() {
	s.Run("Normal case: pending booking is canceled with the expected version", func() {
		t := s.T()

		providerID, serviceID := s.seedProvider(t)
		token := s.token(t, uuid.New())
		start, end := futureSlot()

		created, code := s.createBooking(t, token, providerID, serviceID, start, end, "cancel-pending")
		require.Equal(t, http.StatusCreated, code)

		var canceled response.BookingResponse
		w := httptest.PerformRequest(t, s.Router, http.MethodPost,
			bookingsURL+"/"+created.ID.String()+"/cancel",
			request.CancelBookingRequest{ExpectedVersion: created.Version}, token)
		httptest.AssertSuccessResponse(t, w, http.StatusOK, &canceled)
		require.Equal(t, "canceled", canceled.Status)
		require.Equal(t, created.Version+1, canceled.Version)
	})

	s.Run("Normal case: canceling a confirmed booking refunds the intent", func() {
		t := s.T()

		providerID, serviceID := s.seedProvider(t)
		token := s.token(t, uuid.New())
		start, end := futureSlot()

		created, code := s.createBooking(t, token, providerID, serviceID, start, end, "cancel-confirmed")
		require.Equal(t, http.StatusCreated, code)
		require.NotNil(t, created.PaymentIntentID)

		s.postWebhook(t, "evt_c", "payment_intent.succeeded", *created.PaymentIntentID)

		var refunded response.BookingResponse
		w := httptest.PerformRequest(t, s.Router, http.MethodPost,
			bookingsURL+"/"+created.ID.String()+"/cancel",
			request.CancelBookingRequest{ExpectedVersion: created.Version + 1}, token)
		httptest.AssertSuccessResponse(t, w, http.StatusOK, &refunded)
		require.Equal(t, "refunded", refunded.Status)
		require.Equal(t, []string{*created.PaymentIntentID}, s.Authority.Refunds())
	})

	s.Run("Error case: stale version is rejected", func() {
		t := s.T()

		providerID, serviceID := s.seedProvider(t)
		token := s.token(t, uuid.New())
		start, end := futureSlot()

		created, code := s.createBooking(t, token, providerID, serviceID, start, end, "cancel-stale")
		require.Equal(t, http.StatusCreated, code)

		w := httptest.PerformRequest(t, s.Router, http.MethodPost,
			bookingsURL+"/"+created.ID.String()+"/cancel",
			request.CancelBookingRequest{ExpectedVersion: created.Version + 5}, token)
		httptest.AssertErrorResponse(t, w, http.StatusConflict, "Booking was modified by another request")
	})

	s.Run("Error case: another customer cannot cancel the booking", func() {
		t := s.T()

		providerID, serviceID := s.seedProvider(t)
		token := s.token(t, uuid.New())
		start, end := futureSlot()

		created, code := s.createBooking(t, token, providerID, serviceID, start, end, "cancel-foreign")
		require.Equal(t, http.StatusCreated, code)

		w := httptest.PerformRequest(t, s.Router, http.MethodPost,
			bookingsURL+"/"+created.ID.String()+"/cancel",
			request.CancelBookingRequest{ExpectedVersion: created.Version}, s.token(t, uuid.New()))
		httptest.AssertErrorResponse(t, w, http.StatusNotFound, "Booking not found")
	})
}

// =============================================================================
// TestReadEndpoints
// =============================================================================

func (s *BookingSuite) TestReadEndpoints() {
	s.Run("Normal case: availability excludes a booked slot", func() {
		t := s.T()

		providerID, serviceID := s.seedProvider(t)
		token := s.token(t, uuid.New())
		start, end := futureSlot()

		_, code := s.createBooking(t, token, providerID, serviceID, start, end, "availability-key")
		require.Equal(t, http.StatusCreated, code)

		query := url.Values{}
		query.Set("provider_id", providerID.String())
		query.Set("from", start.Add(-time.Hour).Format(time.RFC3339))
		query.Set("to", end.Add(time.Hour).Format(time.RFC3339))
		query.Set("duration_min", "30")

		var availability response.AvailabilityResponse
		w := httptest.PerformRequest(t, s.Router, http.MethodGet,
			availabilityURL+"?"+query.Encode(), nil, token)
		httptest.AssertSuccessResponse(t, w, http.StatusOK, &availability)

		require.NotEmpty(t, availability.Slots)
		for _, slot := range availability.Slots {
			require.False(t, slot.StartTime.Equal(start),
				fmt.Sprintf("booked slot %s should not be offered", start))
		}
	})

	s.Run("Normal case: customer lists own bookings newest slot first", func() {
		t := s.T()

		providerID, serviceID := s.seedProvider(t)
		customerID := uuid.New()
		token := s.token(t, customerID)
		start, end := futureSlot()

		early, code := s.createBooking(t, token, providerID, serviceID, start, end, "list-early")
		require.Equal(t, http.StatusCreated, code)
		late, code := s.createBooking(t, token, providerID, serviceID, start.Add(2*time.Hour), end.Add(2*time.Hour), "list-late")
		require.Equal(t, http.StatusCreated, code)

		// Another customer's booking never shows up
		_, code = s.createBooking(t, s.token(t, uuid.New()), providerID, serviceID, start.Add(4*time.Hour), end.Add(4*time.Hour), "list-other")
		require.Equal(t, http.StatusCreated, code)

		var items []response.BookingListResponse
		w := httptest.PerformRequest(t, s.Router, http.MethodGet, bookingsURL, nil, token)
		httptest.AssertSuccessResponse(t, w, http.StatusOK, &items)

		require.Len(t, items, 2)
		require.Equal(t, late.ID, items[0].ID)
		require.Equal(t, early.ID, items[1].ID)
	})

	s.Run("Error case: foreign booking reads as not found", func() {
		t := s.T()

		providerID, serviceID := s.seedProvider(t)
		start, end := futureSlot()

		created, code := s.createBooking(t, s.token(t, uuid.New()), providerID, serviceID, start, end, "read-foreign")
		require.Equal(t, http.StatusCreated, code)

		w := httptest.PerformRequest(t, s.Router, http.MethodGet,
			bookingsURL+"/"+created.ID.String(), nil, s.token(t, uuid.New()))
		httptest.AssertErrorResponse(t, w, http.StatusNotFound, "Booking not found")
	})

	s.Run("Auth test - Unauthorized when not logged in", func() {
		t := s.T()

		w := httptest.PerformRequest(t, s.Router, http.MethodGet, bookingsURL, nil, "")
		require.Equal(t, http.StatusUnauthorized, w.Code)

		w = httptest.PerformRequest(t, s.Router, http.MethodPost, bookingsURL, nil, "")
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	s.Run("Auth test - Expired token is rejected", func() {
		t := s.T()

		expired := authtest.NewJWTHelper(s.Config.JWT).CreateExpiredToken(t, uuid.New(), "customer")
		w := httptest.PerformRequest(t, s.Router, http.MethodGet, bookingsURL, nil, expired)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
