package services

import (
	"context"
	"fmt"

	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/models"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"github.com/stripe/stripe-go/v80/webhook"
)

// Metadata keys echoed back by the processor on settlement events.
const (
	MetaPaymentID    = "paymentId"
	MetaEnrollmentID = "enrollmentId"
	MetaStudentName  = "studentName"
	MetaActivityName = "activityName"
)

// CheckoutRequest is everything the processor needs for one hosted checkout.
type CheckoutRequest struct {
	PaymentID    string
	EnrollmentID string
	StudentName  string
	ActivityName string
	Amount       models.Money
	Currency     string
	SuccessURL   string
	CancelURL    string
}

func (r CheckoutRequest) metadata() map[string]string {
	return map[string]string{
		MetaPaymentID:    r.PaymentID,
		MetaEnrollmentID: r.EnrollmentID,
		MetaStudentName:  r.StudentName,
		MetaActivityName: r.ActivityName,
	}
}

// Processor is the payment processor as seen by the settlement core.
type Processor interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*models.CheckoutSession, error)
	ConstructEvent(payload []byte, signatureHeader string) (stripe.Event, error)
	Refund(ctx context.Context, paymentIntentID, paymentID string) (string, error)
}

// StripeService talks to Stripe through a per-instance client so the secret
// key is never stored in package state.
type StripeService struct {
	api           *client.API
	webhookSecret string
}

func NewStripeService(secretKey, webhookSecret string) *StripeService {
	return &StripeService{api: client.New(secretKey, nil), webhookSecret: webhookSecret}
}

func (s *StripeService) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*models.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(req.PaymentID),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(req.Currency),
				UnitAmount: stripe.Int64(int64(req.Amount)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(req.ActivityName),
					Description: stripe.String(fmt.Sprintf("Inscrição de %s", req.StudentName)),
				},
			},
			Quantity: stripe.Int64(1),
		}},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: req.metadata(),
		},
	}
	for k, v := range req.metadata() {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, err
	}
	return &models.CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// ConstructEvent verifies the signature header against the raw payload and
// only then decodes the event.
func (s *StripeService) ConstructEvent(payload []byte, signatureHeader string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, signatureHeader, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

// Refund issues a full refund for the PaymentIntent and returns the refund id.
func (s *StripeService) Refund(ctx context.Context, paymentIntentID, paymentID string) (string, error) {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(paymentIntentID)}
	params.AddMetadata(MetaPaymentID, paymentID)
	params.Context = ctx
	r, err := s.api.Refunds.New(params)
	if err != nil {
		return "", err
	}
	return r.ID, nil
}
