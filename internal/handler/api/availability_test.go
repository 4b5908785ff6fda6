//go:build unit

package api_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"barberbook/internal/handler/api"
	resdto "barberbook/internal/handler/dto/response"
	"barberbook/internal/pkg/errs"
	"barberbook/internal/usecase/queries"
	"barberbook/tests/common/httptest"
	queriesmock "barberbook/tests/mock/queries"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type AvailabilityHandlerTestSuite struct {
	suite.Suite
	router      *gin.Engine
	mockCtrl    *gomock.Controller
	mockQueries *queriesmock.MockAvailabilityQueries
	handler     *api.AvailabilityHandler
}

func (s *AvailabilityHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.router = gin.New()

	s.mockCtrl = gomock.NewController(s.T())
	s.mockQueries = queriesmock.NewMockAvailabilityQueries(s.mockCtrl)
	s.handler = api.NewAvailabilityHandler(s.mockQueries)

	s.router.GET("/availability", s.handler.GetFreeSlots)
}

func (s *AvailabilityHandlerTestSuite) TearDownTest() {
	s.mockCtrl.Finish()
}

func TestAvailabilityHandlerSuite(t *testing.T) {
	suite.Run(t, new(AvailabilityHandlerTestSuite))
}

func availabilityURL(providerID uuid.UUID, from, to time.Time, durationMin int) string {
	q := url.Values{}
	q.Set("provider_id", providerID.String())
	q.Set("from", from.Format(time.RFC3339))
	q.Set("to", to.Format(time.RFC3339))
	q.Set("duration_min", fmt.Sprintf("%d", durationMin))
	return "/availability?" + q.Encode()
}

func (s *AvailabilityHandlerTestSuite) TestGetFreeSlots() {
	providerID := uuid.New()
	from := time.Date(2030, 6, 3, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	s.Run("success: returns 200 OK with free slots", func() {
		slots := []queries.FreeSlot{
			{StartTime: from.Add(9 * time.Hour), EndTime: from.Add(9*time.Hour + 30*time.Minute)},
			{StartTime: from.Add(10 * time.Hour), EndTime: from.Add(10*time.Hour + 30*time.Minute)},
		}
		s.mockQueries.EXPECT().
			FreeSlots(gomock.Any(), providerID, from, to, 30*time.Minute).
			Return(slots, nil).Times(1)

		rec := httptest.PerformRequest(s.T(), s.router, http.MethodGet, availabilityURL(providerID, from, to, 30), nil, "")

		var response resdto.AvailabilityResponse
		httptest.AssertSuccessResponse(s.T(), rec, http.StatusOK, &response)
		s.Len(response.Slots, 2)
		s.True(response.Slots[0].StartTime.Equal(slots[0].StartTime))
	})

	s.Run("success: empty calendar yields an empty slot list", func() {
		s.mockQueries.EXPECT().
			FreeSlots(gomock.Any(), providerID, from, to, 30*time.Minute).
			Return(nil, nil).Times(1)

		rec := httptest.PerformRequest(s.T(), s.router, http.MethodGet, availabilityURL(providerID, from, to, 30), nil, "")

		var response resdto.AvailabilityResponse
		httptest.AssertSuccessResponse(s.T(), rec, http.StatusOK, &response)
		s.Empty(response.Slots)
	})

	s.Run("error: 400 Bad Request on malformed parameters", func() {
		testCases := []struct {
			name string
			url  string
		}{
			{"bad provider id", "/availability?provider_id=nope&from=2030-06-03T00:00:00Z&to=2030-06-04T00:00:00Z&duration_min=30"},
			{"bad from", "/availability?provider_id=" + providerID.String() + "&from=today&to=2030-06-04T00:00:00Z&duration_min=30"},
			{"bad to", "/availability?provider_id=" + providerID.String() + "&from=2030-06-03T00:00:00Z&to=tomorrow&duration_min=30"},
			{"zero duration", availabilityURL(providerID, from, to, 0)},
			{"negative duration", availabilityURL(providerID, from, to, -15)},
		}
		for _, tc := range testCases {
			s.Run(tc.name, func() {
				rec := httptest.PerformRequest(s.T(), s.router, http.MethodGet, tc.url, nil, "")
				httptest.AssertErrorResponse(s.T(), rec, http.StatusBadRequest, "")
			})
		}
	})

	s.Run("error: maps query errors to proper statuses", func() {
		testCases := []struct {
			name           string
			queryError     error
			expectedStatus int
		}{
			{"provider not found", queries.ErrProviderNotFound, http.StatusNotFound},
			{"provider not found with its cause attached", errs.Mark(errors.New("no rows in result set"), queries.ErrProviderNotFound), http.StatusNotFound},
			{"inverted range", queries.ErrInvalidRange, http.StatusBadRequest},
			{"internal error", errors.New("database error"), http.StatusInternalServerError},
		}
		for _, tc := range testCases {
			s.Run(tc.name, func() {
				s.mockQueries.EXPECT().
					FreeSlots(gomock.Any(), providerID, from, to, 30*time.Minute).
					Return(nil, tc.queryError).Times(1)

				rec := httptest.PerformRequest(s.T(), s.router, http.MethodGet, availabilityURL(providerID, from, to, 30), nil, "")
				httptest.AssertErrorResponse(s.T(), rec, tc.expectedStatus, "")
			})
		}
	})
}
