package services

import (
	"context"
	"encoding/json"
	"fmt"

	aws_pkg "github.com/PraiaOps/PraiAtiva-sub001/pkg/aws"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
)

const (
	eventCheckoutSessionCompleted = "checkout.session.completed"
	eventCheckoutAsyncSucceeded   = "checkout.session.async_payment_succeeded"
	eventCheckoutAsyncFailed      = "checkout.session.async_payment_failed"
	eventChargeRefunded           = "charge.refunded"
)

// Settler is the part of the ledger the webhook dispatcher drives.
type Settler interface {
	ApplySuccess(ctx context.Context, paymentID, processorTxID string) error
	ApplyRefund(ctx context.Context, paymentID, processorTxID string) error
}

// WebhookService verifies processor callbacks and routes them to the ledger.
type WebhookService struct {
	processor Processor
	ledger    Settler
	logger    *zap.Logger
	metrics   aws_pkg.MetricsRecorder
}

func NewWebhookService(processor Processor, ledger Settler, logger *zap.Logger) *WebhookService {
	return &WebhookService{processor: processor, ledger: ledger, logger: logger}
}

func (w *WebhookService) WithMetrics(m aws_pkg.MetricsRecorder) *WebhookService {
	w.metrics = m
	return w
}

// HandleWebhook verifies rawBody against signatureHeader and dispatches the
// event. A nil error means the event may be acknowledged.
func (w *WebhookService) HandleWebhook(ctx context.Context, rawBody []byte, signatureHeader string) error {
	event, err := w.processor.ConstructEvent(rawBody, signatureHeader)
	if err != nil {
		w.logger.Warn("Stripe webhook signature verification failed", zap.Error(err))
		if w.metrics != nil {
			_ = w.metrics.RecordCount(ctx, aws_pkg.MetricWebhookRejected, nil)
		}
		return fmt.Errorf("%w: %v", ErrSignatureVerification, err)
	}

	log := w.logger.With(zap.String("event_id", event.ID), zap.String("event_type", string(event.Type)))
	log.Info("Processing Stripe webhook")

	switch event.Type {
	case eventCheckoutSessionCompleted, eventCheckoutAsyncSucceeded:
		return w.handleCheckoutCompleted(ctx, event, log)
	case eventCheckoutAsyncFailed:
		// The payment stays pending so the student can start a new checkout.
		log.Warn("Delayed checkout payment failed")
		return nil
	case eventChargeRefunded:
		return w.handleChargeRefunded(ctx, event, log)
	default:
		log.Info("Unhandled webhook event type")
		return nil
	}
}

func (w *WebhookService) handleCheckoutCompleted(ctx context.Context, event stripe.Event, log *zap.Logger) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		log.Warn("Failed to decode checkout session", zap.Error(err))
		return nil
	}

	paymentID := sess.Metadata[MetaPaymentID]
	var intentID string
	if sess.PaymentIntent != nil {
		intentID = sess.PaymentIntent.ID
	}
	if paymentID == "" || intentID == "" {
		log.Warn("Checkout session missing payment correlation",
			zap.String("session_id", sess.ID),
			zap.Any("metadata", sess.Metadata),
			zap.String("payment_intent", intentID),
		)
		return nil
	}
	// Boleto and other delayed methods complete the session before the money
	// arrives; settlement waits for async_payment_succeeded.
	if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		log.Info("Checkout completed with payment still pending",
			zap.String("payment_id", paymentID),
			zap.String("session_id", sess.ID),
		)
		return nil
	}

	return w.ledger.ApplySuccess(ctx, paymentID, intentID)
}

func (w *WebhookService) handleChargeRefunded(ctx context.Context, event stripe.Event, log *zap.Logger) error {
	var charge stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		log.Warn("Failed to decode charge", zap.Error(err))
		return nil
	}

	paymentID := charge.Metadata[MetaPaymentID]
	if paymentID == "" {
		log.Warn("Refunded charge missing paymentId metadata", zap.String("charge_id", charge.ID))
		return nil
	}

	return w.ledger.ApplyRefund(ctx, paymentID, latestRefundID(&charge))
}

// latestRefundID picks the newest refund on the charge, falling back to the
// charge id when the event does not embed refunds.
func latestRefundID(charge *stripe.Charge) string {
	var id string
	var newest int64
	if charge.Refunds != nil {
		for _, r := range charge.Refunds.Data {
			if r != nil && r.ID != "" && (id == "" || r.Created >= newest) {
				id, newest = r.ID, r.Created
			}
		}
	}
	if id == "" {
		return charge.ID
	}
	return id
}
