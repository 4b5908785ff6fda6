package api

import (
	"io"
	"log/slog"
	"net/http"

	reqdto "barberbook/internal/handler/dto/request"
	resdto "barberbook/internal/handler/dto/response"
	"barberbook/internal/handler/middleware"
	"barberbook/internal/pkg/errs"
	"barberbook/internal/usecase/commands"
	"barberbook/internal/usecase/shared"

	"github.com/gin-gonic/gin"
)

// Stripe sends at most a few hundred KB; anything larger is not ours.
const maxWebhookBodyBytes = 1 << 20

type PaymentHandler struct {
	paymentCommands commands.PaymentCommands
	verifier        shared.WebhookVerifier
}

func NewPaymentHandler(paymentCommands commands.PaymentCommands, verifier shared.WebhookVerifier) *PaymentHandler {
	return &PaymentHandler{
		paymentCommands: paymentCommands,
		verifier:        verifier,
	}
}

// @Summary Create payment intent
// @Description Open (or return the existing) payment intent for a pending booking
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body reqdto.CreateIntentRequest true "Intent request"
// @Success 200 {object} resdto.PaymentIntentResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 504 {object} map[string]string
// @Router /payments/intent [post]
func (h *PaymentHandler) CreateIntent(c *gin.Context) {
	actorID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
		return
	}

	var req reqdto.CreateIntentRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return
	}

	intent, err := h.paymentCommands.CreateIntent(c.Request.Context(), req.BookingID, actorID)
	if err != nil {
		switch {
		case errs.IsAny(err, commands.ErrBookingNotFound, commands.ErrBookingAccess):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Booking not found",
			})
		case errs.IsAny(err, commands.ErrIntentNotAllowed):
			c.JSON(http.StatusConflict, gin.H{
				"error": "Booking is not awaiting payment",
			})
		case errs.IsAny(err, commands.ErrPaymentTimeout):
			c.JSON(http.StatusGatewayTimeout, gin.H{
				"error": "Payment service did not respond in time",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
			})
		}
		return
	}

	c.JSON(http.StatusOK, resdto.FromPaymentIntent(intent))
}

// @Summary Payment webhook
// @Description Receive signed payment events from the payment provider
// @Tags payments
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Webhook signature"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /payments/webhook [post]
func (h *PaymentHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to read request body",
		})
		return
	}

	evt, err := h.verifier.VerifyEvent(body, c.GetHeader("Stripe-Signature"))
	if err != nil {
		slog.Warn("webhook signature verification failed", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid signature",
		})
		return
	}
	if evt == nil {
		// Verified but irrelevant event type.
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if err := h.paymentCommands.ApplyEvent(c.Request.Context(), evt); err != nil {
		// 5xx makes the provider redeliver; the ledger makes that safe.
		slog.Error("failed to apply payment event", "event_id", evt.ID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
