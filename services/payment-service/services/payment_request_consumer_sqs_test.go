package services_test

import (
	"context"
	"errors"
	"testing"

	aws_pkg "github.com/PraiaOps/PraiAtiva-sub001/pkg/aws"
	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/models"
	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/repository"
	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type noopSource struct{}

func (noopSource) StartPolling(ctx context.Context, _ aws_pkg.MessageHandler) error {
	<-ctx.Done()
	return ctx.Err()
}

func newConsumerFixture() (*repository.MemoryStore, *fakeProcessor, *fakePublisher, *services.PaymentRequestConsumer) {
	store := repository.NewMemoryStore()
	proc := newFakeProcessor()
	pub := &fakePublisher{}
	payments := services.NewPaymentService(store, proc, "brl", zap.NewNop())
	sessions := services.NewSessionService(store, proc, "https://praiativa.example", "brl", zap.NewNop())
	consumer := services.NewPaymentRequestConsumer(noopSource{}, pub, "arn:topic", payments, sessions, zap.NewNop())
	return store, proc, pub, consumer
}

const validRequest = `{"paymentId":"p1","enrollmentId":"enr-1","studentId":"stu-1","instructorId":"ins-1","amount":100.00,"studentName":"Ana","activityName":"Surf"}`

func TestConsumer_CreatesPaymentAndSession(t *testing.T) {
	store, _, pub, consumer := newConsumerFixture()

	require.NoError(t, consumer.HandleMessage(context.Background(), validRequest))

	p, err := store.GetPayment(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, models.Money(10000), p.Amount)
	assert.Equal(t, "ins-1", p.InstructorID)
	require.NotNil(t, p.SessionID)

	events := pub.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventCheckoutSessionCreated, events[0].Type)
	assert.NotEmpty(t, events[0].CheckoutURL)
}

func TestConsumer_DropsMalformedMessages(t *testing.T) {
	store, proc, pub, consumer := newConsumerFixture()

	assert.NoError(t, consumer.HandleMessage(context.Background(), "{not json"))
	assert.NoError(t, consumer.HandleMessage(context.Background(), `{"paymentId":"p1","amount":10}`))
	assert.NoError(t, consumer.HandleMessage(context.Background(), `{"paymentId":"p1","enrollmentId":"e","amount":0,"studentName":"A","activityName":"B"}`))

	_, err := store.GetPayment(context.Background(), "p1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Empty(t, proc.requests)
	assert.Empty(t, pub.events(t))
}

func TestConsumer_ProcessorFailureIsRetried(t *testing.T) {
	store, proc, pub, consumer := newConsumerFixture()
	proc.sessionErr = errors.New("stripe unavailable")

	err := consumer.HandleMessage(context.Background(), validRequest)
	assert.ErrorIs(t, err, services.ErrPaymentSession)

	events := pub.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventCheckoutSessionFailed, events[0].Type)

	p, err := store.GetPayment(context.Background(), "p1")
	require.NoError(t, err)
	assert.Nil(t, p.SessionID)

	proc.sessionErr = nil
	require.NoError(t, consumer.HandleMessage(context.Background(), validRequest))
	p, _ = store.GetPayment(context.Background(), "p1")
	assert.NotNil(t, p.SessionID)
}

func TestConsumer_StartStopsOnCancel(t *testing.T) {
	_, _, _, consumer := newConsumerFixture()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		consumer.Start(ctx)
		close(done)
	}()
	cancel()
	<-done
}
