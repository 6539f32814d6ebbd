package models_test

import (
	"testing"
	"time"

	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, models.CanTransition(models.PaymentStatusPending, models.PaymentStatusPaid))
	assert.True(t, models.CanTransition(models.PaymentStatusPaid, models.PaymentStatusRefunded))

	assert.False(t, models.CanTransition(models.PaymentStatusPending, models.PaymentStatusRefunded))
	assert.False(t, models.CanTransition(models.PaymentStatusPaid, models.PaymentStatusPaid))
	assert.False(t, models.CanTransition(models.PaymentStatusRefunded, models.PaymentStatusPaid))
	assert.False(t, models.CanTransition(models.PaymentStatusRefunded, models.PaymentStatusPending))
}

func TestReached(t *testing.T) {
	assert.True(t, models.PaymentStatusPaid.Reached(models.PaymentStatusPaid))
	assert.True(t, models.PaymentStatusRefunded.Reached(models.PaymentStatusPaid))
	assert.False(t, models.PaymentStatusPending.Reached(models.PaymentStatusPaid))
	assert.False(t, models.PaymentStatusPaid.Reached(models.PaymentStatusRefunded))
}

func TestNewTransaction(t *testing.T) {
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	p := &models.Payment{ID: "p1", EnrollmentID: "e1", Amount: 10000, Currency: "brl"}

	tx, err := models.NewTransaction(p, models.TransactionTypePayment, "tx_1", now)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionID("p1", models.TransactionTypePayment), tx.ID)
	assert.Equal(t, models.Money(10000), tx.Amount)
	assert.Equal(t, models.Money(1500), tx.Commission)
	assert.Equal(t, models.Money(8500), tx.InstructorAmount)
	assert.Equal(t, models.TransactionStatusCompleted, tx.Status)
	assert.Equal(t, "tx_1", tx.ProcessorTransactionID)
	assert.Equal(t, "e1", tx.EnrollmentID)
}

func TestTransactionID_StablePerPaymentAndType(t *testing.T) {
	a := models.TransactionID("p1", models.TransactionTypePayment)
	assert.Equal(t, a, models.TransactionID("p1", models.TransactionTypePayment))
	assert.NotEqual(t, a, models.TransactionID("p1", models.TransactionTypeRefund))
	assert.NotEqual(t, a, models.TransactionID("p2", models.TransactionTypePayment))
}
