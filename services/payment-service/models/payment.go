package models

import (
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// CanTransition reports whether from -> to is a legal payment status change.
// The lifecycle is strictly pending -> paid -> refunded.
func CanTransition(from, to PaymentStatus) bool {
	switch {
	case from == PaymentStatusPending && to == PaymentStatusPaid:
		return true
	case from == PaymentStatusPaid && to == PaymentStatusRefunded:
		return true
	default:
		return false
	}
}

// Reached reports whether a payment in status s has already gone through target.
func (s PaymentStatus) Reached(target PaymentStatus) bool {
	return s.rank() >= target.rank()
}

func (s PaymentStatus) rank() int {
	switch s {
	case PaymentStatusPending:
		return 0
	case PaymentStatusPaid:
		return 1
	case PaymentStatusRefunded:
		return 2
	default:
		return -1
	}
}

// Payment is one intended charge for one activity enrollment. It is never
// deleted; Amount never changes after creation.
type Payment struct {
	ID                 string        `json:"id" bson:"_id"`
	EnrollmentID       string        `json:"enrollmentId" bson:"enrollment_id"`
	StudentID          string        `json:"studentId,omitempty" bson:"student_id,omitempty"`
	InstructorID       string        `json:"instructorId,omitempty" bson:"instructor_id,omitempty"`
	StudentName        string        `json:"studentName" bson:"student_name"`
	ActivityName       string        `json:"activityName" bson:"activity_name"`
	Amount             Money         `json:"amount" bson:"amount"`
	Currency           string        `json:"currency" bson:"currency"`
	SessionID          *string       `json:"sessionId,omitempty" bson:"session_id,omitempty"`
	CheckoutURL        *string       `json:"checkoutUrl,omitempty" bson:"checkout_url,omitempty"`
	ProcessorPaymentID *string       `json:"processorPaymentId,omitempty" bson:"processor_payment_id,omitempty"`
	Status             PaymentStatus `json:"status" bson:"status"`
	CreatedAt          time.Time     `json:"createdAt" bson:"created_at"`
	UpdatedAt          time.Time     `json:"updatedAt" bson:"updated_at"`
	PaidAt             *time.Time    `json:"paidAt,omitempty" bson:"paid_at,omitempty"`
	RefundedAt         *time.Time    `json:"refundedAt,omitempty" bson:"refunded_at,omitempty"`
}

// CheckoutSession is what the processor returns for a hosted checkout.
type CheckoutSession struct {
	ID  string
	URL string
}
