package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	aws_pkg "github.com/PraiaOps/PraiAtiva-sub001/pkg/aws"
	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/models"
	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/repository"
	"go.uber.org/zap"
)

// ObjectStore persists receipts and hands out time-limited download links.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// ReceiptKey is the object key of the receipt for tx.
func ReceiptKey(tx *models.Transaction) string {
	return fmt.Sprintf("receipts/%s/%s.json", tx.EnrollmentID, tx.ID)
}

// Receipt is the document stored for every settled transaction.
type Receipt struct {
	Transaction  *models.Transaction `json:"transaction"`
	StudentName  string              `json:"studentName"`
	ActivityName string              `json:"activityName"`
	StudentID    string              `json:"studentId,omitempty"`
	InstructorID string              `json:"instructorId,omitempty"`
	IssuedAt     time.Time           `json:"issuedAt"`
}

// LedgerService applies verified settlement events to payments and records
// the matching ledger entries.
type LedgerService struct {
	store    repository.Store
	logger   *zap.Logger
	events   aws_pkg.SNSPublisher
	topicArn string
	receipts ObjectStore
	metrics  aws_pkg.MetricsRecorder
	now      func() time.Time
}

type LedgerOption func(*LedgerService)

// WithEventPublisher publishes a PaymentEvent to topicArn after every settlement.
func WithEventPublisher(pub aws_pkg.SNSPublisher, topicArn string) LedgerOption {
	return func(l *LedgerService) {
		l.events = pub
		l.topicArn = topicArn
	}
}

func WithReceiptStore(store ObjectStore) LedgerOption {
	return func(l *LedgerService) { l.receipts = store }
}

func WithLedgerMetrics(m aws_pkg.MetricsRecorder) LedgerOption {
	return func(l *LedgerService) { l.metrics = m }
}

func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(l *LedgerService) { l.now = now }
}

func NewLedgerService(store repository.Store, logger *zap.Logger, opts ...LedgerOption) *LedgerService {
	l := &LedgerService{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ApplySuccess marks a pending payment as paid and records a payment entry.
// A payment that is already paid or refunded is left untouched.
func (l *LedgerService) ApplySuccess(ctx context.Context, paymentID, processorTxID string) error {
	return l.apply(ctx, paymentID, processorTxID, models.PaymentStatusPending, models.PaymentStatusPaid, models.TransactionTypePayment)
}

// ApplyRefund marks a paid payment as refunded and records a refund entry.
// Refunding a pending payment fails with ErrIllegalTransition.
func (l *LedgerService) ApplyRefund(ctx context.Context, paymentID, processorTxID string) error {
	return l.apply(ctx, paymentID, processorTxID, models.PaymentStatusPaid, models.PaymentStatusRefunded, models.TransactionTypeRefund)
}

func (l *LedgerService) apply(ctx context.Context, paymentID, processorTxID string, from, to models.PaymentStatus, txType models.TransactionType) error {
	log := l.logger.With(
		zap.String("payment_id", paymentID),
		zap.String("processor_transaction_id", processorTxID),
		zap.String("transaction_type", string(txType)),
	)

	payment, err := l.loadPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	if payment.Status.Reached(to) {
		log.Info("Payment already settled, skipping", zap.String("status", string(payment.Status)))
		return nil
	}
	if payment.Status != from || !models.CanTransition(from, to) {
		log.Warn("Rejected settlement", zap.String("status", string(payment.Status)))
		return fmt.Errorf("%w: %s -> %s for payment %s", ErrIllegalTransition, payment.Status, to, paymentID)
	}

	now := l.now()
	tx, err := models.NewTransaction(payment, txType, processorTxID, now)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayment, err)
	}
	settlement := repository.Settlement{
		PaymentID:   paymentID,
		From:        from,
		To:          to,
		Transaction: tx,
		At:          now,
	}
	if to == models.PaymentStatusPaid {
		settlement.ProcessorPaymentID = processorTxID
	}

	if err := l.store.Settle(ctx, settlement); err != nil {
		if !errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("settle payment %s: %w", paymentID, err)
		}
		current, rerr := l.loadPayment(ctx, paymentID)
		if rerr != nil {
			return rerr
		}
		if current.Status.Reached(to) {
			log.Info("Concurrent delivery already settled payment", zap.String("status", string(current.Status)))
			return nil
		}
		return fmt.Errorf("settle payment %s: %w", paymentID, err)
	}

	log.Info("Payment settled",
		zap.String("transaction_id", tx.ID),
		zap.String("status", string(to)),
		zap.Int64("amount_minor", int64(tx.Amount)),
		zap.Int64("commission_minor", int64(tx.Commission)),
	)
	l.afterSettle(ctx, payment, tx)
	return nil
}

func (l *LedgerService) loadPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	payment, err := l.store.GetPayment(ctx, paymentID)
	if errors.Is(err, repository.ErrNotFound) {
		l.logger.Error("Settlement references unknown payment", zap.String("payment_id", paymentID))
		return nil, fmt.Errorf("%w: %s", ErrPaymentNotFound, paymentID)
	}
	if err != nil {
		return nil, fmt.Errorf("load payment %s: %w", paymentID, err)
	}
	return payment, nil
}

// afterSettle runs the side effects of a committed settlement. None of them
// can undo or fail the settlement.
func (l *LedgerService) afterSettle(ctx context.Context, payment *models.Payment, tx *models.Transaction) {
	eventType := models.EventPaymentSucceeded
	metric := aws_pkg.MetricPaymentSucceeded
	if tx.Type == models.TransactionTypeRefund {
		eventType = models.EventPaymentRefunded
		metric = aws_pkg.MetricPaymentRefunded
	}

	if l.events != nil && l.topicArn != "" {
		body, _ := json.Marshal(models.PaymentEvent{
			Type:          eventType,
			PaymentID:     payment.ID,
			EnrollmentID:  payment.EnrollmentID,
			TransactionID: tx.ID,
			Amount:        tx.Amount,
			Commission:    tx.Commission,
			Currency:      tx.Currency,
			Timestamp:     tx.CreatedAt,
		})
		if err := l.events.Publish(ctx, l.topicArn, eventType, body); err != nil {
			l.logger.Warn("Failed to publish payment event", zap.String("payment_id", payment.ID), zap.Error(err))
		}
	}

	if l.receipts != nil {
		body, _ := json.Marshal(Receipt{
			Transaction:  tx,
			StudentName:  payment.StudentName,
			ActivityName: payment.ActivityName,
			StudentID:    payment.StudentID,
			InstructorID: payment.InstructorID,
			IssuedAt:     tx.CreatedAt,
		})
		if err := l.receipts.PutObject(ctx, ReceiptKey(tx), body, "application/json"); err != nil {
			l.logger.Warn("Failed to store receipt", zap.String("transaction_id", tx.ID), zap.Error(err))
		}
	}

	if l.metrics != nil {
		dims := map[string]string{"Currency": tx.Currency}
		_ = l.metrics.RecordCount(ctx, metric, dims)
		_ = l.metrics.RecordValue(ctx, aws_pkg.MetricCommissionMinor, float64(tx.Commission), dims)
	}
}

// GetTransaction returns one ledger entry.
func (l *LedgerService) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	tx, err := l.store.GetTransaction(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
	}
	return tx, err
}

// ListByEnrollment returns the ledger entries of one enrollment, oldest first.
func (l *LedgerService) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Transaction, error) {
	return l.store.ListTransactionsByEnrollment(ctx, enrollmentID)
}

// ReceiptURL returns a presigned download link for a transaction's receipt.
func (l *LedgerService) ReceiptURL(ctx context.Context, transactionID string, expiry time.Duration) (string, error) {
	if l.receipts == nil {
		return "", ErrReceiptsDisabled
	}
	tx, err := l.GetTransaction(ctx, transactionID)
	if err != nil {
		return "", err
	}
	return l.receipts.PresignGet(ctx, ReceiptKey(tx), expiry)
}
