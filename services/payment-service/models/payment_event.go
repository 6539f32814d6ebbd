package models

import "time"

// PaymentEvent is published to SNS after session creation and settlement.
type PaymentEvent struct {
	Type          string    `json:"type"` // checkout_session_created, checkout_session_failed, payment_succeeded, payment_refunded
	PaymentID     string    `json:"payment_id"`
	EnrollmentID  string    `json:"enrollment_id"`
	TransactionID string    `json:"transaction_id,omitempty"`
	CheckoutURL   string    `json:"checkout_url,omitempty"`
	Amount        Money     `json:"amount"`
	Commission    Money     `json:"commission,omitempty"`
	Currency      string    `json:"currency"`
	Timestamp     time.Time `json:"timestamp"`
}

const (
	EventCheckoutSessionCreated = "checkout_session_created"
	EventCheckoutSessionFailed  = "checkout_session_failed"
	EventPaymentSucceeded       = "payment_succeeded"
	EventPaymentRefunded        = "payment_refunded"
)

// PaymentRequest is the SQS message the enrollment flow sends to start a checkout.
type PaymentRequest struct {
	PaymentID    string `json:"paymentId" validate:"required"`
	EnrollmentID string `json:"enrollmentId" validate:"required"`
	StudentID    string `json:"studentId"`
	InstructorID string `json:"instructorId"`
	Amount       Money  `json:"amount" validate:"gt=0"`
	StudentName  string `json:"studentName" validate:"required"`
	ActivityName string `json:"activityName" validate:"required"`
}
