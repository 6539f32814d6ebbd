package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	aws_pkg "github.com/PraiaOps/PraiAtiva-sub001/pkg/aws"
	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/models"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// MessageSource delivers queue message bodies to a handler until ctx ends.
type MessageSource interface {
	StartPolling(ctx context.Context, handler aws_pkg.MessageHandler) error
}

// PaymentRequestConsumer turns enrollment payment requests from SQS into
// pending payments with an open checkout session.
type PaymentRequestConsumer struct {
	source          MessageSource
	snsPublisher    aws_pkg.SNSPublisher
	paymentTopicArn string
	payments        *PaymentService
	sessions        *SessionService
	validate        *validator.Validate
	metrics         aws_pkg.MetricsRecorder
	logger          *zap.Logger
}

func NewPaymentRequestConsumer(
	source MessageSource,
	snsPublisher aws_pkg.SNSPublisher,
	paymentTopicArn string,
	payments *PaymentService,
	sessions *SessionService,
	logger *zap.Logger,
) *PaymentRequestConsumer {
	return &PaymentRequestConsumer{
		source:          source,
		snsPublisher:    snsPublisher,
		paymentTopicArn: paymentTopicArn,
		payments:        payments,
		sessions:        sessions,
		validate:        validator.New(),
		logger:          logger,
	}
}

func (c *PaymentRequestConsumer) WithMetrics(m aws_pkg.MetricsRecorder) *PaymentRequestConsumer {
	c.metrics = m
	return c
}

// Start blocks polling the queue until ctx is cancelled.
func (c *PaymentRequestConsumer) Start(ctx context.Context) {
	c.logger.Info("Starting PaymentRequestConsumer (SQS)")

	err := c.source.StartPolling(ctx, c.HandleMessage)
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Error("SQS consumer error", zap.Error(err))
	}
}

// HandleMessage processes one queue message. Returning an error leaves the
// message on the queue for redelivery; malformed messages are not retried.
func (c *PaymentRequestConsumer) HandleMessage(ctx context.Context, body string) error {
	if c.metrics != nil {
		_ = c.metrics.RecordCount(ctx, aws_pkg.MetricSQSMessages, map[string]string{"Queue": "payment-requests"})
	}

	var req models.PaymentRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		c.logger.Warn("Invalid payment request JSON, dropping", zap.Error(err))
		return nil
	}
	if err := c.validate.Struct(req); err != nil {
		c.logger.Warn("Invalid payment request, dropping", zap.String("payment_id", req.PaymentID), zap.Error(err))
		return nil
	}

	payment, err := c.payments.GetOrCreatePayment(ctx, NewPaymentInput{
		ID:           req.PaymentID,
		EnrollmentID: req.EnrollmentID,
		StudentID:    req.StudentID,
		InstructorID: req.InstructorID,
		StudentName:  req.StudentName,
		ActivityName: req.ActivityName,
		Amount:       req.Amount,
	})
	if err != nil {
		if errors.Is(err, ErrAmountMismatch) || errors.Is(err, ErrInvalidPayment) {
			c.logger.Warn("Payment request conflicts with stored payment, dropping", zap.String("payment_id", req.PaymentID), zap.Error(err))
			return nil
		}
		c.logger.Error("Failed to create payment record", zap.String("payment_id", req.PaymentID), zap.Error(err))
		return err
	}
	if payment.Status != models.PaymentStatusPending {
		c.logger.Info("Payment already settled, ignoring request", zap.String("payment_id", payment.ID), zap.String("status", string(payment.Status)))
		return nil
	}

	session, err := c.sessions.CreatePaymentSession(ctx, SessionRequest{
		PaymentID:    payment.ID,
		EnrollmentID: payment.EnrollmentID,
		Amount:       payment.Amount,
		StudentName:  payment.StudentName,
		ActivityName: payment.ActivityName,
	})
	if err != nil {
		c.publish(ctx, models.PaymentEvent{
			Type:         models.EventCheckoutSessionFailed,
			PaymentID:    payment.ID,
			EnrollmentID: payment.EnrollmentID,
			Amount:       payment.Amount,
			Currency:     payment.Currency,
			Timestamp:    time.Now().UTC(),
		})
		if errors.Is(err, ErrInvalidPayment) || errors.Is(err, ErrPaymentNotPending) {
			c.logger.Warn("Payment request cannot open a session, dropping", zap.String("payment_id", payment.ID), zap.Error(err))
			return nil
		}
		return fmt.Errorf("payment request %s: %w", payment.ID, err)
	}

	c.publish(ctx, models.PaymentEvent{
		Type:         models.EventCheckoutSessionCreated,
		PaymentID:    payment.ID,
		EnrollmentID: payment.EnrollmentID,
		CheckoutURL:  session.URL,
		Amount:       payment.Amount,
		Currency:     payment.Currency,
		Timestamp:    time.Now().UTC(),
	})
	c.logger.Info("Payment request processed",
		zap.String("payment_id", payment.ID),
		zap.String("session_id", session.ID),
		zap.String("checkout_url", session.URL),
	)
	return nil
}

func (c *PaymentRequestConsumer) publish(ctx context.Context, event models.PaymentEvent) {
	if c.snsPublisher == nil || c.paymentTopicArn == "" {
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		c.logger.Warn("Failed to marshal payment event", zap.Error(err))
		return
	}
	if err := c.snsPublisher.Publish(ctx, c.paymentTopicArn, event.Type, body); err != nil {
		c.logger.Warn("Failed to publish payment event", zap.String("type", event.Type), zap.Error(err))
	}
}
