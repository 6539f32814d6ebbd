package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoAdapter keeps payments and transactions in two collections of one
// database. Settle needs a replica set for multi-document transactions.
type MongoAdapter struct {
	client       *mongo.Client
	payments     *mongo.Collection
	transactions *mongo.Collection
}

func NewMongoAdapter(client *mongo.Client, db *mongo.Database) *MongoAdapter {
	return &MongoAdapter{
		client:       client,
		payments:     db.Collection("payments"),
		transactions: db.Collection("transactions"),
	}
}

// EnsureIndexes creates the enrollment lookup index on transactions.
func (m *MongoAdapter) EnsureIndexes(ctx context.Context) error {
	_, err := m.transactions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "enrollment_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "payment_id", Value: 1}}},
	})
	return err
}

func (m *MongoAdapter) CreatePayment(ctx context.Context, payment *models.Payment) error {
	if _, err := m.payments.InsertOne(ctx, payment); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (m *MongoAdapter) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	var p models.Payment
	err := m.payments.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find payment: %w", err)
	}
	return &p, nil
}

func (m *MongoAdapter) AttachSession(ctx context.Context, id string, session models.CheckoutSession, at time.Time) error {
	set := bson.M{"session_id": session.ID, "updated_at": at}
	if session.URL != "" {
		set["checkout_url"] = session.URL
	}
	res, err := m.payments.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.PaymentStatusPending},
		bson.M{"$set": set},
	)
	if err != nil {
		return fmt.Errorf("update payment session: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrConflict
	}
	return nil
}

func (m *MongoAdapter) Settle(ctx context.Context, s Settlement) error {
	if s.Transaction == nil {
		return errors.New("settlement without transaction")
	}
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	set := bson.M{"status": s.To, "updated_at": s.At}
	switch s.To {
	case models.PaymentStatusPaid:
		set["paid_at"] = s.At
		if s.ProcessorPaymentID != "" {
			set["processor_payment_id"] = s.ProcessorPaymentID
		}
	case models.PaymentStatusRefunded:
		set["refunded_at"] = s.At
	}

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		res, err := m.payments.UpdateOne(sc,
			bson.M{"_id": s.PaymentID, "status": s.From},
			bson.M{"$set": set},
		)
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 0 {
			return nil, ErrConflict
		}
		if _, err := m.transactions.InsertOne(sc, s.Transaction); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, ErrConflict
			}
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return ErrConflict
		}
		return fmt.Errorf("settle payment %s: %w", s.PaymentID, err)
	}
	return nil
}

func (m *MongoAdapter) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	var tx models.Transaction
	err := m.transactions.FindOne(ctx, bson.M{"_id": id}).Decode(&tx)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find transaction: %w", err)
	}
	return &tx, nil
}

func (m *MongoAdapter) ListTransactionsByEnrollment(ctx context.Context, enrollmentID string) ([]models.Transaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := m.transactions.Find(ctx, bson.M{"enrollment_id": enrollmentID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var txs []models.Transaction
	if err := cursor.All(ctx, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// ForEachPayment streams every stored payment to fn in batches.
func (m *MongoAdapter) ForEachPayment(ctx context.Context, fn func(*models.Payment) error) error {
	cursor, err := m.payments.Find(ctx, bson.M{}, options.Find().SetBatchSize(500))
	if err != nil {
		return fmt.Errorf("find payments: %w", err)
	}
	defer cursor.Close(ctx)
	for cursor.Next(ctx) {
		var p models.Payment
		if err := cursor.Decode(&p); err != nil {
			return fmt.Errorf("decode payment: %w", err)
		}
		if err := fn(&p); err != nil {
			return err
		}
	}
	return cursor.Err()
}

// ForEachTransaction streams every ledger entry to fn in batches.
func (m *MongoAdapter) ForEachTransaction(ctx context.Context, fn func(*models.Transaction) error) error {
	cursor, err := m.transactions.Find(ctx, bson.M{}, options.Find().SetBatchSize(500))
	if err != nil {
		return fmt.Errorf("find transactions: %w", err)
	}
	defer cursor.Close(ctx)
	for cursor.Next(ctx) {
		var tx models.Transaction
		if err := cursor.Decode(&tx); err != nil {
			return fmt.Errorf("decode transaction: %w", err)
		}
		if err := fn(&tx); err != nil {
			return err
		}
	}
	return cursor.Err()
}
