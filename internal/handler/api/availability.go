package api

import (
	"net/http"
	"strconv"
	"time"

	resdto "barberbook/internal/handler/dto/response"
	"barberbook/internal/pkg/errs"
	"barberbook/internal/usecase/queries"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AvailabilityHandler struct {
	availabilityQueries queries.AvailabilityQueries
}

func NewAvailabilityHandler(availabilityQueries queries.AvailabilityQueries) *AvailabilityHandler {
	return &AvailabilityHandler{availabilityQueries: availabilityQueries}
}

// @Summary Free slots
// @Description List a provider's free slots of the given duration in a time range
// @Tags availability
// @Produce json
// @Security BearerAuth
// @Param provider_id query string true "Provider ID"
// @Param from query string true "Range start (RFC3339)"
// @Param to query string true "Range end (RFC3339)"
// @Param duration_min query int true "Slot duration in minutes"
// @Success 200 {object} resdto.AvailabilityResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /availability [get]
func (h *AvailabilityHandler) GetFreeSlots(c *gin.Context) {
	providerID, err := uuid.Parse(c.Query("provider_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid provider ID format",
		})
		return
	}

	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid 'from' timestamp",
		})
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid 'to' timestamp",
		})
		return
	}

	durationMin, err := strconv.Atoi(c.Query("duration_min"))
	if err != nil || durationMin <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid duration",
		})
		return
	}

	slots, err := h.availabilityQueries.FreeSlots(
		c.Request.Context(), providerID,
		from.UTC(), to.UTC(),
		time.Duration(durationMin)*time.Minute,
	)
	if err != nil {
		switch {
		case errs.IsAny(err, queries.ErrProviderNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Provider not found",
			})
		case errs.IsAny(err, queries.ErrInvalidRange):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid availability range",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
			})
		}
		return
	}

	c.JSON(http.StatusOK, resdto.FromFreeSlots(slots))
}
