package models

import (
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	TransactionTypePayment TransactionType = "payment"
	TransactionTypeRefund  TransactionType = "refund"
)

type TransactionStatus string

const TransactionStatusCompleted TransactionStatus = "completed"

// Transaction is an immutable ledger entry written once per settled event.
type Transaction struct {
	ID                     string            `json:"id" bson:"_id"`
	PaymentID              string            `json:"paymentId" bson:"payment_id"`
	EnrollmentID           string            `json:"enrollmentId" bson:"enrollment_id"`
	Type                   TransactionType   `json:"type" bson:"type"`
	Amount                 Money             `json:"amount" bson:"amount"`
	Commission             Money             `json:"commission" bson:"commission"`
	InstructorAmount       Money             `json:"instructorAmount" bson:"instructor_amount"`
	Currency               string            `json:"currency" bson:"currency"`
	Status                 TransactionStatus `json:"status" bson:"status"`
	ProcessorTransactionID string            `json:"processorTransactionId" bson:"processor_transaction_id"`
	CreatedAt              time.Time         `json:"createdAt" bson:"created_at"`
	CompletedAt            time.Time         `json:"completedAt" bson:"completed_at"`
}

var transactionNamespace = uuid.MustParse("8f5b2f0e-6c1d-4d4e-9a63-2b7f5f0c9a11")

// TransactionID derives the ledger id for a payment's entry of type t. A payment
// settles at most once per type, so the id doubles as the idempotency key.
func TransactionID(paymentID string, t TransactionType) string {
	return uuid.NewSHA1(transactionNamespace, []byte(paymentID+":"+string(t))).String()
}

// NewTransaction builds the ledger entry for settling p with type t.
func NewTransaction(p *Payment, t TransactionType, processorTxID string, now time.Time) (*Transaction, error) {
	commission, instructor, err := Split(p.Amount)
	if err != nil {
		return nil, err
	}
	return &Transaction{
		ID:                     TransactionID(p.ID, t),
		PaymentID:              p.ID,
		EnrollmentID:           p.EnrollmentID,
		Type:                   t,
		Amount:                 p.Amount,
		Commission:             commission,
		InstructorAmount:       instructor,
		Currency:               p.Currency,
		Status:                 TransactionStatusCompleted,
		ProcessorTransactionID: processorTxID,
		CreatedAt:              now,
		CompletedAt:            now,
	}, nil
}
