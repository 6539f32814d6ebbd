package services

import (
	"errors"
	"fmt"
)

var (
	// ErrSignatureVerification is returned when a webhook payload does not match
	// its signature header. Nothing in the payload is trusted.
	ErrSignatureVerification = errors.New("webhook signature verification failed")
	// ErrPaymentSession means the processor rejected or could not be reached
	// while creating a checkout session.
	ErrPaymentSession = errors.New("payment session could not be created")
	// ErrSessionNotPersisted means a processor session exists but could not be
	// stored on the payment.
	ErrSessionNotPersisted = fmt.Errorf("%w: session not persisted", ErrPaymentSession)

	ErrPaymentNotFound     = errors.New("payment not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrIllegalTransition   = errors.New("illegal payment status transition")
	ErrInvalidPayment      = errors.New("invalid payment")
	ErrPaymentNotPending   = errors.New("payment is no longer pending")
	ErrAmountMismatch      = errors.New("amount does not match payment")
	ErrNotRefundable       = errors.New("payment is not refundable")
	ErrReceiptsDisabled    = errors.New("receipt storage is not configured")
)
