package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/models"
	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NewPaymentInput describes the payment an enrollment needs. ID is generated
// when empty.
type NewPaymentInput struct {
	ID           string
	EnrollmentID string
	StudentID    string
	InstructorID string
	StudentName  string
	ActivityName string
	Amount       models.Money
	Currency     string
}

// PaymentService owns the payment records outside of settlement.
type PaymentService struct {
	payments  repository.PaymentRepository
	processor Processor
	currency  string
	logger    *zap.Logger
	now       func() time.Time
}

func NewPaymentService(payments repository.PaymentRepository, processor Processor, currency string, logger *zap.Logger) *PaymentService {
	if currency == "" {
		currency = "brl"
	}
	return &PaymentService{
		payments:  payments,
		processor: processor,
		currency:  strings.ToLower(currency),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreatePayment stores a new pending payment. An existing id yields
// repository.ErrDuplicate.
func (s *PaymentService) CreatePayment(ctx context.Context, in NewPaymentInput) (*models.Payment, error) {
	if strings.TrimSpace(in.EnrollmentID) == "" || strings.TrimSpace(in.StudentName) == "" || strings.TrimSpace(in.ActivityName) == "" {
		return nil, fmt.Errorf("%w: enrollmentId, studentName and activityName are required", ErrInvalidPayment)
	}
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidPayment)
	}
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	currency := strings.ToLower(in.Currency)
	if currency == "" {
		currency = s.currency
	}

	now := s.now()
	payment := &models.Payment{
		ID:           id,
		EnrollmentID: in.EnrollmentID,
		StudentID:    in.StudentID,
		InstructorID: in.InstructorID,
		StudentName:  in.StudentName,
		ActivityName: in.ActivityName,
		Amount:       in.Amount,
		Currency:     currency,
		Status:       models.PaymentStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.payments.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}
	s.logger.Info("Payment created",
		zap.String("payment_id", payment.ID),
		zap.String("enrollment_id", payment.EnrollmentID),
		zap.String("amount", payment.Amount.String()),
	)
	return payment, nil
}

// GetOrCreatePayment returns the stored payment for in.ID, creating it when it
// does not exist yet. An existing payment must carry the same amount.
func (s *PaymentService) GetOrCreatePayment(ctx context.Context, in NewPaymentInput) (*models.Payment, error) {
	if in.ID != "" {
		existing, err := s.payments.GetPayment(ctx, in.ID)
		if err == nil {
			if existing.Amount != in.Amount {
				return nil, fmt.Errorf("%w: requested %s, stored %s", ErrAmountMismatch, in.Amount, existing.Amount)
			}
			return existing, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("load payment %s: %w", in.ID, err)
		}
	}
	p, err := s.CreatePayment(ctx, in)
	if errors.Is(err, repository.ErrDuplicate) {
		// Lost a race with another creator of the same id.
		return s.GetPayment(ctx, in.ID)
	}
	return p, err
}

func (s *PaymentService) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	p, err := s.payments.GetPayment(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrPaymentNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load payment %s: %w", id, err)
	}
	return p, nil
}

// RequestRefund asks the processor to refund a paid payment. The payment
// itself only changes when the verified charge.refunded event arrives.
func (s *PaymentService) RequestRefund(ctx context.Context, id string) (string, error) {
	p, err := s.GetPayment(ctx, id)
	if err != nil {
		return "", err
	}
	if p.Status != models.PaymentStatusPaid || p.ProcessorPaymentID == nil || *p.ProcessorPaymentID == "" {
		return "", fmt.Errorf("%w: payment %s is %s", ErrNotRefundable, id, p.Status)
	}
	refundID, err := s.processor.Refund(ctx, *p.ProcessorPaymentID, p.ID)
	if err != nil {
		s.logger.Error("Stripe refund failed", zap.String("payment_id", id), zap.Error(err))
		return "", fmt.Errorf("refund payment %s: %w", id, err)
	}
	s.logger.Info("Refund requested", zap.String("payment_id", id), zap.String("refund_id", refundID))
	return refundID, nil
}
