package services_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	aws_pkg "github.com/PraiaOps/PraiAtiva-sub001/pkg/aws"
	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/models"
	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/repository"
	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// racingStore reports a lost conditional write after letting a competing
// settlement commit first.
type racingStore struct {
	*repository.MemoryStore
	competitor func()
}

func (r *racingStore) Settle(ctx context.Context, s repository.Settlement) error {
	if r.competitor != nil {
		r.competitor()
		r.competitor = nil
	}
	return r.MemoryStore.Settle(ctx, s)
}

func TestApplySuccess_SplitsCommission(t *testing.T) {
	store := repository.NewMemoryStore()
	seedPayment(t, store, "p1", 10000, models.PaymentStatusPending)
	ledger := services.NewLedgerService(store, zap.NewNop())

	require.NoError(t, ledger.ApplySuccess(context.Background(), "p1", "tx_1"))

	p, err := store.GetPayment(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, p.Status)
	require.NotNil(t, p.ProcessorPaymentID)
	assert.Equal(t, "tx_1", *p.ProcessorPaymentID)

	txs, err := ledger.ListByEnrollment(context.Background(), "enr-p1")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	tx := txs[0]
	assert.Equal(t, models.TransactionTypePayment, tx.Type)
	assert.Equal(t, models.TransactionStatusCompleted, tx.Status)
	assert.Equal(t, models.Money(10000), tx.Amount)
	assert.Equal(t, models.Money(1500), tx.Commission)
	assert.Equal(t, models.Money(8500), tx.InstructorAmount)
	assert.Equal(t, "tx_1", tx.ProcessorTransactionID)
}

func TestApplySuccess_Idempotent(t *testing.T) {
	store := repository.NewMemoryStore()
	seedPayment(t, store, "p1", 4990, models.PaymentStatusPending)
	ledger := services.NewLedgerService(store, zap.NewNop())

	require.NoError(t, ledger.ApplySuccess(context.Background(), "p1", "tx_1"))
	require.NoError(t, ledger.ApplySuccess(context.Background(), "p1", "tx_1"))

	assert.Equal(t, 1, store.TransactionCount())
	p, _ := store.GetPayment(context.Background(), "p1")
	assert.Equal(t, models.PaymentStatusPaid, p.Status)
}

func TestApplySuccess_ConcurrentDeliveries(t *testing.T) {
	store := repository.NewMemoryStore()
	seedPayment(t, store, "p1", 10000, models.PaymentStatusPending)
	ledger := services.NewLedgerService(store, zap.NewNop())

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- ledger.ApplySuccess(context.Background(), "p1", "tx_1")
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, store.TransactionCount())
}

func TestApplySuccess_LostRaceIsNoop(t *testing.T) {
	mem := repository.NewMemoryStore()
	seedPayment(t, mem, "p1", 10000, models.PaymentStatusPending)
	store := &racingStore{MemoryStore: mem}
	competitor := services.NewLedgerService(mem, zap.NewNop())
	store.competitor = func() {
		require.NoError(t, competitor.ApplySuccess(context.Background(), "p1", "tx_1"))
	}
	ledger := services.NewLedgerService(store, zap.NewNop())

	require.NoError(t, ledger.ApplySuccess(context.Background(), "p1", "tx_1"))
	assert.Equal(t, 1, mem.TransactionCount())
}

func TestApplySuccess_AfterRefundIsNoop(t *testing.T) {
	store := repository.NewMemoryStore()
	seedPayment(t, store, "p1", 10000, models.PaymentStatusRefunded)
	ledger := services.NewLedgerService(store, zap.NewNop())

	require.NoError(t, ledger.ApplySuccess(context.Background(), "p1", "tx_late"))
	assert.Equal(t, 0, store.TransactionCount())
}

func TestApplySuccess_PaymentNotFound(t *testing.T) {
	ledger := services.NewLedgerService(repository.NewMemoryStore(), zap.NewNop())
	err := ledger.ApplySuccess(context.Background(), "missing", "tx_1")
	assert.ErrorIs(t, err, services.ErrPaymentNotFound)
}

func TestApplyRefund_RequiresPaid(t *testing.T) {
	store := repository.NewMemoryStore()
	seedPayment(t, store, "p1", 10000, models.PaymentStatusPending)
	ledger := services.NewLedgerService(store, zap.NewNop())

	err := ledger.ApplyRefund(context.Background(), "p1", "re_1")
	assert.ErrorIs(t, err, services.ErrIllegalTransition)
	assert.Equal(t, 0, store.TransactionCount())
	p, _ := store.GetPayment(context.Background(), "p1")
	assert.Equal(t, models.PaymentStatusPending, p.Status)
}

func TestApplyRefund_AfterSuccess(t *testing.T) {
	store := repository.NewMemoryStore()
	seedPayment(t, store, "p1", 10000, models.PaymentStatusPending)
	ledger := services.NewLedgerService(store, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, ledger.ApplySuccess(ctx, "p1", "tx_1"))
	require.NoError(t, ledger.ApplyRefund(ctx, "p1", "tx_2"))
	require.NoError(t, ledger.ApplyRefund(ctx, "p1", "tx_2"))

	p, _ := store.GetPayment(ctx, "p1")
	assert.Equal(t, models.PaymentStatusRefunded, p.Status)
	assert.NotNil(t, p.RefundedAt)

	txs, err := ledger.ListByEnrollment(ctx, "enr-p1")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	refund := txs[1]
	assert.Equal(t, models.TransactionTypeRefund, refund.Type)
	assert.Equal(t, models.Money(10000), refund.Amount)
	assert.Equal(t, models.Money(1500), refund.Commission)
	assert.Equal(t, models.Money(8500), refund.InstructorAmount)
	assert.Equal(t, "tx_2", refund.ProcessorTransactionID)
}

func TestLedger_SideEffectsAfterCommit(t *testing.T) {
	store := repository.NewMemoryStore()
	seedPayment(t, store, "p1", 10000, models.PaymentStatusPending)
	pub := &fakePublisher{}
	receipts := newFakeObjectStore()
	metrics := newCountingMetrics()
	ledger := services.NewLedgerService(store, zap.NewNop(),
		services.WithEventPublisher(pub, "arn:aws:sns:us-east-1:000000000000:payment-events"),
		services.WithReceiptStore(receipts),
		services.WithLedgerMetrics(metrics),
	)
	ctx := context.Background()

	require.NoError(t, ledger.ApplySuccess(ctx, "p1", "tx_1"))
	require.NoError(t, ledger.ApplySuccess(ctx, "p1", "tx_1"))

	events := pub.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventPaymentSucceeded, events[0].Type)
	assert.Equal(t, models.Money(1500), events[0].Commission)
	assert.Equal(t, models.EventPaymentSucceeded, pub.messages[0].eventType)
	assert.Equal(t, models.TransactionID("p1", models.TransactionTypePayment), events[0].TransactionID)

	tx, err := ledger.GetTransaction(ctx, models.TransactionID("p1", models.TransactionTypePayment))
	require.NoError(t, err)
	body, ok := receipts.objects[services.ReceiptKey(tx)]
	require.True(t, ok)
	var receipt services.Receipt
	require.NoError(t, json.Unmarshal(body, &receipt))
	assert.Equal(t, "Aula de Surf", receipt.ActivityName)
	assert.Equal(t, models.Money(8500), receipt.Transaction.InstructorAmount)

	assert.Equal(t, 1, metrics.count(aws_pkg.MetricPaymentSucceeded))

	url, err := ledger.ReceiptURL(ctx, tx.ID, 0)
	require.NoError(t, err)
	assert.Contains(t, url, services.ReceiptKey(tx))
}

func TestLedger_SideEffectFailuresDoNotFailSettlement(t *testing.T) {
	store := repository.NewMemoryStore()
	seedPayment(t, store, "p1", 10000, models.PaymentStatusPending)
	pub := &fakePublisher{err: assert.AnError}
	receipts := newFakeObjectStore()
	receipts.err = assert.AnError
	ledger := services.NewLedgerService(store, zap.NewNop(),
		services.WithEventPublisher(pub, "arn:topic"),
		services.WithReceiptStore(receipts),
	)

	require.NoError(t, ledger.ApplySuccess(context.Background(), "p1", "tx_1"))
	assert.Equal(t, 1, store.TransactionCount())
}

func TestLedger_ReceiptLookups(t *testing.T) {
	ledger := services.NewLedgerService(repository.NewMemoryStore(), zap.NewNop())
	_, err := ledger.ReceiptURL(context.Background(), "tx", 0)
	assert.ErrorIs(t, err, services.ErrReceiptsDisabled)

	ledger = services.NewLedgerService(repository.NewMemoryStore(), zap.NewNop(), services.WithReceiptStore(newFakeObjectStore()))
	_, err = ledger.ReceiptURL(context.Background(), "missing", 0)
	assert.ErrorIs(t, err, services.ErrTransactionNotFound)
}
