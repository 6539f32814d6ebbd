package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/models"
	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/repository"
	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/services"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"
)

const testWebhookSecret = "whsec_test_secret"

// fakeProcessor creates sessions locally and verifies webhooks with the real
// Stripe signature scheme.
type fakeProcessor struct {
	mu         sync.Mutex
	verifier   *services.StripeService
	sessionErr error
	refundErr  error
	requests   []services.CheckoutRequest
	refunds    []string
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{verifier: services.NewStripeService("sk_test_unused", testWebhookSecret)}
}

func (f *fakeProcessor) CreateCheckoutSession(_ context.Context, req services.CheckoutRequest) (*models.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	id := "cs_test_" + req.PaymentID
	return &models.CheckoutSession{ID: id, URL: "https://checkout.stripe.com/c/pay/" + id}, nil
}

func (f *fakeProcessor) ConstructEvent(payload []byte, header string) (stripe.Event, error) {
	return f.verifier.ConstructEvent(payload, header)
}

func (f *fakeProcessor) Refund(_ context.Context, intentID, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refundErr != nil {
		return "", f.refundErr
	}
	f.refunds = append(f.refunds, intentID)
	return "re_" + intentID, nil
}

type publishedMessage struct {
	topic     string
	eventType string
	body      []byte
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, topicArn, eventType string, message []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, publishedMessage{topic: topicArn, eventType: eventType, body: message})
	return f.err
}

func (f *fakePublisher) events(t *testing.T) []models.PaymentEvent {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PaymentEvent
	for _, m := range f.messages {
		var ev models.PaymentEvent
		require.NoError(t, json.Unmarshal(m.body, &ev))
		out = append(out, ev)
	}
	return out
}

type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (f *fakeObjectStore) PutObject(_ context.Context, key string, body []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.objects[key] = body
	return nil
}

func (f *fakeObjectStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://receipts.example/" + key + "?X-Amz-Signature=test", nil
}

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{counts: make(map[string]int)}
}

func (m *countingMetrics) RecordCount(_ context.Context, name string, _ map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[name]++
	return nil
}

func (m *countingMetrics) RecordValue(_ context.Context, name string, _ float64, _ map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[name]++
	return nil
}

func (m *countingMetrics) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name]
}

// failingSessionStore lets session attachment fail after the processor succeeded.
type failingSessionStore struct {
	*repository.MemoryStore
}

func (failingSessionStore) AttachSession(context.Context, string, models.CheckoutSession, time.Time) error {
	return errors.New("dynamodb UpdateItem failed: connection reset")
}

func seedPayment(t *testing.T, store repository.PaymentRepository, id string, amount models.Money, status models.PaymentStatus) *models.Payment {
	t.Helper()
	now := time.Now().UTC()
	p := &models.Payment{
		ID:           id,
		EnrollmentID: "enr-" + id,
		StudentID:    "stu-1",
		InstructorID: "ins-1",
		StudentName:  "Ana Souza",
		ActivityName: "Aula de Surf",
		Amount:       amount,
		Currency:     "brl",
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, store.CreatePayment(context.Background(), p))
	return p
}

// signedEvent builds a Stripe event envelope around object and signs it.
func signedEvent(t *testing.T, eventType string, object map[string]interface{}) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"id":          "evt_" + eventType,
		"object":      "event",
		"api_version": stripe.APIVersion,
		"type":        eventType,
		"data":        map[string]interface{}{"object": object},
	})
	require.NoError(t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: testWebhookSecret})
	return signed.Payload, signed.Header
}

func checkoutCompleted(paymentID, intentID string) map[string]interface{} {
	obj := map[string]interface{}{
		"id":             "cs_test_" + paymentID,
		"object":         "checkout.session",
		"payment_status": "paid",
		"metadata":       map[string]string{"paymentId": paymentID},
	}
	if intentID != "" {
		obj["payment_intent"] = intentID
	}
	return obj
}

func chargeRefunded(paymentID, chargeID string, refundIDs ...string) map[string]interface{} {
	var refunds []map[string]interface{}
	for i, id := range refundIDs {
		refunds = append(refunds, map[string]interface{}{"id": id, "object": "refund", "created": 1700000000 + i})
	}
	obj := map[string]interface{}{
		"id":       chargeID,
		"object":   "charge",
		"refunded": true,
		"metadata": map[string]string{"paymentId": paymentID},
	}
	if len(refunds) > 0 {
		obj["refunds"] = map[string]interface{}{"object": "list", "data": refunds}
	}
	return obj
}
