package repository

import (
	"context"
	"errors"
	"time"

	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
	// ErrConflict means a conditional write lost: the record was not in the
	// expected state, or the ledger entry already exists.
	ErrConflict = errors.New("conditional write failed")
)

// PaymentRepository stores Payment documents.
type PaymentRepository interface {
	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	// AttachSession records the checkout session on a payment that is still pending.
	AttachSession(ctx context.Context, id string, session models.CheckoutSession, at time.Time) error
}

// Settlement is one status transition of a payment together with the ledger
// entry it produces.
type Settlement struct {
	PaymentID string
	From      models.PaymentStatus
	To        models.PaymentStatus
	// ProcessorPaymentID is stored on the payment when it becomes paid.
	ProcessorPaymentID string
	Transaction        *models.Transaction
	At                 time.Time
}

// LedgerRepository applies settlements and reads the append-only ledger.
type LedgerRepository interface {
	// Settle moves the payment from s.From to s.To and inserts s.Transaction as a
	// single atomic write. It returns ErrConflict when the payment is not in
	// s.From or the transaction id already exists; nothing is written then.
	Settle(ctx context.Context, s Settlement) error
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	ListTransactionsByEnrollment(ctx context.Context, enrollmentID string) ([]models.Transaction, error)
}

// Store is the document store the payment service runs on.
type Store interface {
	PaymentRepository
	LedgerRepository
}
