package controllers

import (
	"errors"
	"io"
	"net/http"

	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxWebhookBody bounds the raw body read before signature verification.
const maxWebhookBody = 64 << 10

// StripeWebhook verifies and dispatches a Stripe event. The body is read raw;
// nothing in it is decoded before the signature checks out.
func (pc *PaymentController) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook"})
		return
	}

	err = pc.Webhooks.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"received": true})
	case errors.Is(err, services.ErrSignatureVerification):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook signature"})
	default:
		pc.Logger.Error("Stripe webhook processing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook processing failed"})
	}
}
