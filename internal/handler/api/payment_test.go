//go:build unit

package api_test

import (
	"errors"
	"net/http"
	"testing"

	"barberbook/internal/domain/payment"
	"barberbook/internal/handler/api"
	resdto "barberbook/internal/handler/dto/response"
	"barberbook/internal/usecase/commands"
	"barberbook/tests/common/httptest"
	commandsmock "barberbook/tests/mock/commands"
	sharedmock "barberbook/tests/mock/shared"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type PaymentHandlerTestSuite struct {
	suite.Suite
	router       *gin.Engine
	mockCtrl     *gomock.Controller
	mockCommands *commandsmock.MockPaymentCommands
	mockVerifier *sharedmock.MockWebhookVerifier
	handler      *api.PaymentHandler
	userID       uuid.UUID
}

func (s *PaymentHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.router = gin.New()
	s.userID = uuid.New()

	s.mockCtrl = gomock.NewController(s.T())
	s.mockCommands = commandsmock.NewMockPaymentCommands(s.mockCtrl)
	s.mockVerifier = sharedmock.NewMockWebhookVerifier(s.mockCtrl)
	s.handler = api.NewPaymentHandler(s.mockCommands, s.mockVerifier)

	authMiddleware := func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		c.Set("user_id", s.userID)
		c.Next()
	}

	s.router.POST("/payments/intent", authMiddleware, s.handler.CreateIntent)
	// The webhook authenticates with its signature, not a bearer token.
	s.router.POST("/payments/webhook", s.handler.Webhook)
}

func (s *PaymentHandlerTestSuite) TearDownTest() {
	s.mockCtrl.Finish()
}

func TestPaymentHandlerSuite(t *testing.T) {
	suite.Run(t, new(PaymentHandlerTestSuite))
}

// ================================================================================
// TestCreateIntent
// ================================================================================

func (s *PaymentHandlerTestSuite) TestCreateIntent() {
	url := "/payments/intent"
	bookingID := uuid.New()
	reqBody := map[string]any{"booking_id": bookingID.String()}

	returnIntent := &payment.Intent{
		ID:           "pi_test_1",
		BookingID:    bookingID,
		AmountCents:  3500,
		Currency:     "usd",
		Status:       payment.IntentCreated,
		ClientSecret: "pi_test_1_secret",
	}

	s.Run("success: returns 200 OK with the intent", func() {
		s.mockCommands.EXPECT().
			CreateIntent(gomock.Any(), bookingID, s.userID).
			Return(returnIntent, nil).Times(1)

		rec := httptest.PerformRequest(s.T(), s.router, http.MethodPost, url, reqBody, "bearer-token")

		var response resdto.PaymentIntentResponse
		httptest.AssertSuccessResponse(s.T(), rec, http.StatusOK, &response)
		s.Equal("pi_test_1", response.IntentID)
		s.Equal("pi_test_1_secret", response.ClientSecret)
	})

	s.Run("error: 400 Bad Request without a booking id", func() {
		rec := httptest.PerformRequest(s.T(), s.router, http.MethodPost, url, map[string]any{}, "bearer-token")
		httptest.AssertErrorResponse(s.T(), rec, http.StatusBadRequest, "")
	})

	s.Run("error: 401 Unauthorized when unauthenticated", func() {
		rec := httptest.PerformRequest(s.T(), s.router, http.MethodPost, url, reqBody, "")
		httptest.AssertErrorResponse(s.T(), rec, http.StatusUnauthorized, "")
	})

	s.Run("error: maps usecase errors to proper statuses", func() {
		testCases := []struct {
			name           string
			commandsError  error
			expectedStatus int
		}{
			{"booking not found", commands.ErrBookingNotFound, http.StatusNotFound},
			{"someone else's booking", commands.ErrBookingAccess, http.StatusNotFound},
			{"not awaiting payment", commands.ErrIntentNotAllowed, http.StatusConflict},
			{"authority timeout", commands.ErrPaymentTimeout, http.StatusGatewayTimeout},
			{"internal error", errors.New("database error"), http.StatusInternalServerError},
		}

		for _, tc := range testCases {
			s.Run(tc.name, func() {
				s.mockCommands.EXPECT().
					CreateIntent(gomock.Any(), bookingID, s.userID).
					Return(nil, tc.commandsError).Times(1)

				rec := httptest.PerformRequest(s.T(), s.router, http.MethodPost, url, reqBody, "bearer-token")
				httptest.AssertErrorResponse(s.T(), rec, tc.expectedStatus, "")
			})
		}
	})
}

// ================================================================================
// TestWebhook
// ================================================================================

func (s *PaymentHandlerTestSuite) TestWebhook() {
	url := "/payments/webhook"
	sigHeaders := map[string]string{"Stripe-Signature": "t=123,v1=abc"}
	payload := map[string]any{"id": "evt_1", "type": "payment_intent.succeeded"}

	event := &payment.Event{ID: "evt_1", IntentID: "pi_test_1", Kind: payment.EventSucceeded}

	s.Run("success: verified event is applied and acknowledged", func() {
		s.mockVerifier.EXPECT().
			VerifyEvent(gomock.Any(), "t=123,v1=abc").
			Return(event, nil).Times(1)
		s.mockCommands.EXPECT().
			ApplyEvent(gomock.Any(), event).
			Return(nil).Times(1)

		rec := httptest.PerformRequestWithHeaders(s.T(), s.router, http.MethodPost, url, payload, "", sigHeaders)

		var body map[string]string
		httptest.AssertSuccessResponse(s.T(), rec, http.StatusOK, &body)
		s.Equal("ok", body["status"])
	})

	s.Run("success: irrelevant event types are acknowledged without work", func() {
		s.mockVerifier.EXPECT().
			VerifyEvent(gomock.Any(), gomock.Any()).
			Return(nil, nil).Times(1)

		rec := httptest.PerformRequestWithHeaders(s.T(), s.router, http.MethodPost, url, payload, "", sigHeaders)

		var body map[string]string
		httptest.AssertSuccessResponse(s.T(), rec, http.StatusOK, &body)
		s.Equal("ignored", body["status"])
	})

	s.Run("error: 400 Bad Request on a bad signature", func() {
		s.mockVerifier.EXPECT().
			VerifyEvent(gomock.Any(), gomock.Any()).
			Return(nil, errors.New("signature mismatch")).Times(1)

		rec := httptest.PerformRequestWithHeaders(s.T(), s.router, http.MethodPost, url, payload, "", sigHeaders)
		httptest.AssertErrorResponse(s.T(), rec, http.StatusBadRequest, "")
	})

	s.Run("error: 500 on apply failure so the provider redelivers", func() {
		s.mockVerifier.EXPECT().
			VerifyEvent(gomock.Any(), gomock.Any()).
			Return(event, nil).Times(1)
		s.mockCommands.EXPECT().
			ApplyEvent(gomock.Any(), event).
			Return(errors.New("storage failure")).Times(1)

		rec := httptest.PerformRequestWithHeaders(s.T(), s.router, http.MethodPost, url, payload, "", sigHeaders)
		httptest.AssertErrorResponse(s.T(), rec, http.StatusInternalServerError, "")
	})
}
