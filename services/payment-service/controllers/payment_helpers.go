package controllers

import (
	"errors"
	"net/http"

	apperrors "github.com/PraiaOps/PraiAtiva-sub001/services/common/errors"
	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/repository"
	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/services"
	"github.com/gin-gonic/gin"
)

// toAppError maps service errors onto HTTP statuses. Anything unknown is a 500.
func toAppError(err error) *apperrors.Error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, services.ErrInvalidPayment):
		return apperrors.BadRequest("Invalid payment request", err)
	case errors.Is(err, services.ErrAmountMismatch):
		return apperrors.BadRequest("Amount does not match payment", err)
	case errors.Is(err, services.ErrPaymentNotFound):
		return apperrors.NotFound("Payment not found", err)
	case errors.Is(err, services.ErrTransactionNotFound):
		return apperrors.NotFound("Transaction not found", err)
	case errors.Is(err, services.ErrPaymentNotPending):
		return apperrors.Conflict("Payment is no longer pending", err)
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.Conflict("Payment already exists", err)
	case errors.Is(err, services.ErrNotRefundable):
		return apperrors.Conflict("Payment is not refundable", err)
	case errors.Is(err, services.ErrReceiptsDisabled):
		return apperrors.New(http.StatusServiceUnavailable, "Receipts are not available", err)
	case errors.Is(err, services.ErrPaymentSession):
		return apperrors.Internal("Failed to create payment session", err)
	default:
		return apperrors.Internal("Internal server error", err)
	}
}

// fail hands err to the error middleware and stops the chain.
func fail(c *gin.Context, err error) {
	_ = c.Error(toAppError(err))
	c.Abort()
}
