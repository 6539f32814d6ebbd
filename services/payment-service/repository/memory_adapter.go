package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/models"
)

// MemoryStore is a process-local Store with the same conditional-write
// semantics as the DynamoDB and MongoDB adapters. It backs tests and
// STORE_DRIVER=memory local runs.
type MemoryStore struct {
	mu           sync.Mutex
	payments     map[string]models.Payment
	transactions map[string]models.Transaction
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		payments:     make(map[string]models.Payment),
		transactions: make(map[string]models.Transaction),
	}
}

func (m *MemoryStore) CreatePayment(_ context.Context, payment *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[payment.ID]; ok {
		return ErrDuplicate
	}
	m.payments[payment.ID] = *payment
	return nil
}

func (m *MemoryStore) GetPayment(_ context.Context, id string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *MemoryStore) AttachSession(_ context.Context, id string, session models.CheckoutSession, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.Status != models.PaymentStatusPending {
		return ErrConflict
	}
	sid, url := session.ID, session.URL
	p.SessionID = &sid
	if url != "" {
		p.CheckoutURL = &url
	}
	p.UpdatedAt = at
	m.payments[id] = p
	return nil
}

func (m *MemoryStore) Settle(_ context.Context, s Settlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[s.PaymentID]
	if !ok || p.Status != s.From {
		return ErrConflict
	}
	if _, exists := m.transactions[s.Transaction.ID]; exists {
		return ErrConflict
	}

	at := s.At
	p.Status = s.To
	p.UpdatedAt = at
	switch s.To {
	case models.PaymentStatusPaid:
		p.PaidAt = &at
		if s.ProcessorPaymentID != "" {
			ppid := s.ProcessorPaymentID
			p.ProcessorPaymentID = &ppid
		}
	case models.PaymentStatusRefunded:
		p.RefundedAt = &at
	}
	m.payments[p.ID] = p
	m.transactions[s.Transaction.ID] = *s.Transaction
	return nil
}

func (m *MemoryStore) GetTransaction(_ context.Context, id string) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &tx, nil
}

func (m *MemoryStore) ListTransactionsByEnrollment(_ context.Context, enrollmentID string) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Transaction
	for _, tx := range m.transactions {
		if tx.EnrollmentID == enrollmentID {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// TransactionCount is a test helper.
func (m *MemoryStore) TransactionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transactions)
}
