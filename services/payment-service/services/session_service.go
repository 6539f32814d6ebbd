package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	aws_pkg "github.com/PraiaOps/PraiAtiva-sub001/pkg/aws"
	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/models"
	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/repository"
	"go.uber.org/zap"
)

// SessionRequest asks for a hosted checkout of an existing pending payment.
// EnrollmentID is optional; when set it must match the stored payment.
type SessionRequest struct {
	PaymentID    string
	EnrollmentID string
	Amount       models.Money
	StudentName  string
	ActivityName string
}

// SessionService opens processor checkout sessions for pending payments.
type SessionService struct {
	payments  repository.PaymentRepository
	processor Processor
	baseURL   string
	currency  string
	logger    *zap.Logger
	metrics   aws_pkg.MetricsRecorder
	now       func() time.Time
}

func NewSessionService(payments repository.PaymentRepository, processor Processor, baseURL, currency string, logger *zap.Logger) *SessionService {
	if currency == "" {
		currency = "brl"
	}
	return &SessionService{
		payments:  payments,
		processor: processor,
		baseURL:   strings.TrimRight(baseURL, "/"),
		currency:  strings.ToLower(currency),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithMetrics enables CloudWatch counters for created and failed sessions.
func (s *SessionService) WithMetrics(m aws_pkg.MetricsRecorder) *SessionService {
	s.metrics = m
	return s
}

func (s *SessionService) successURL() string {
	// Stripe substitutes the literal placeholder, so it must not be escaped.
	return s.baseURL + "/pagamento/sucesso?session_id={CHECKOUT_SESSION_ID}"
}

func (s *SessionService) cancelURL(paymentID string) string {
	return s.baseURL + "/pagamento/cancelado?payment_id=" + url.QueryEscape(paymentID)
}

func validateSessionRequest(req SessionRequest) error {
	var missing []string
	if strings.TrimSpace(req.PaymentID) == "" {
		missing = append(missing, "paymentId")
	}
	if strings.TrimSpace(req.StudentName) == "" {
		missing = append(missing, "studentName")
	}
	if strings.TrimSpace(req.ActivityName) == "" {
		missing = append(missing, "activityName")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidPayment, strings.Join(missing, ", "))
	}
	if req.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidPayment)
	}
	return nil
}

// CreatePaymentSession opens a hosted checkout for the payment and stores the
// session id on it. On processor failure the payment is left untouched.
func (s *SessionService) CreatePaymentSession(ctx context.Context, req SessionRequest) (*models.CheckoutSession, error) {
	if err := validateSessionRequest(req); err != nil {
		return nil, err
	}

	payment, err := s.payments.GetPayment(ctx, req.PaymentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrPaymentNotFound, req.PaymentID)
	}
	if err != nil {
		return nil, fmt.Errorf("load payment %s: %w", req.PaymentID, err)
	}
	if payment.Status != models.PaymentStatusPending {
		return nil, fmt.Errorf("%w: payment %s is %s", ErrPaymentNotPending, payment.ID, payment.Status)
	}
	if payment.Amount != req.Amount {
		return nil, fmt.Errorf("%w: requested %s, stored %s", ErrAmountMismatch, req.Amount, payment.Amount)
	}
	if req.EnrollmentID != "" && req.EnrollmentID != payment.EnrollmentID {
		return nil, fmt.Errorf("%w: enrollment does not match payment", ErrInvalidPayment)
	}
	if payment.EnrollmentID == "" {
		return nil, fmt.Errorf("%w: payment %s has no enrollment", ErrInvalidPayment, payment.ID)
	}

	log := s.logger.With(zap.String("payment_id", payment.ID), zap.String("enrollment_id", payment.EnrollmentID))

	currency := payment.Currency
	if currency == "" {
		currency = s.currency
	}
	// The stored payment is the source of truth for what gets charged and shown.
	studentName, activityName := payment.StudentName, payment.ActivityName
	if studentName == "" {
		studentName = req.StudentName
	}
	if activityName == "" {
		activityName = req.ActivityName
	}
	session, err := s.processor.CreateCheckoutSession(ctx, CheckoutRequest{
		PaymentID:    payment.ID,
		EnrollmentID: payment.EnrollmentID,
		StudentName:  studentName,
		ActivityName: activityName,
		Amount:       payment.Amount,
		Currency:     currency,
		SuccessURL:   s.successURL(),
		CancelURL:    s.cancelURL(payment.ID),
	})
	if err != nil {
		log.Error("Failed to create checkout session", zap.Error(err))
		s.count(ctx, aws_pkg.MetricCheckoutSessionsFailed)
		return nil, fmt.Errorf("%w: %v", ErrPaymentSession, err)
	}

	if err := s.payments.AttachSession(ctx, payment.ID, *session, s.now()); err != nil {
		log.Error("Checkout session created but not persisted; session is orphaned",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
		s.count(ctx, aws_pkg.MetricCheckoutSessionsFailed)
		return nil, fmt.Errorf("%w: session %s: %v", ErrSessionNotPersisted, session.ID, err)
	}

	log.Info("Checkout session created", zap.String("session_id", session.ID))
	s.count(ctx, aws_pkg.MetricCheckoutSessionsCreated)
	return session, nil
}

func (s *SessionService) count(ctx context.Context, metric string) {
	if s.metrics == nil {
		return
	}
	_ = s.metrics.RecordCount(ctx, metric, map[string]string{"Currency": s.currency})
}
