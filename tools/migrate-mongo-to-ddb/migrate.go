package main

import (
	"context"
	"errors"

	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/models"
	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/repository"
	"go.uber.org/zap"
)

type source interface {
	ForEachPayment(ctx context.Context, fn func(*models.Payment) error) error
	ForEachTransaction(ctx context.Context, fn func(*models.Transaction) error) error
}

type sink interface {
	CreatePayment(ctx context.Context, p *models.Payment) error
	ImportTransaction(ctx context.Context, tx *models.Transaction) error
}

type result struct {
	Payments     int
	Transactions int
	Skipped      int
	Failed       int
}

// migrate copies payments first, then ledger entries. Records that already
// exist in the destination are skipped, so the tool can be re-run.
func migrate(ctx context.Context, src source, dst sink, logger *zap.Logger) (result, error) {
	var res result

	err := src.ForEachPayment(ctx, func(p *models.Payment) error {
		if p.UpdatedAt.IsZero() {
			p.UpdatedAt = p.CreatedAt
		}
		switch err := dst.CreatePayment(ctx, p); {
		case err == nil:
			res.Payments++
			if res.Payments%100 == 0 {
				logger.Info("migrated payments", zap.Int("count", res.Payments))
			}
		case errors.Is(err, repository.ErrDuplicate):
			res.Skipped++
		default:
			res.Failed++
			logger.Warn("failed to write payment", zap.String("payment_id", p.ID), zap.Error(err))
		}
		return ctx.Err()
	})
	if err != nil {
		return res, err
	}

	err = src.ForEachTransaction(ctx, func(tx *models.Transaction) error {
		switch err := dst.ImportTransaction(ctx, tx); {
		case err == nil:
			res.Transactions++
		case errors.Is(err, repository.ErrDuplicate):
			res.Skipped++
		default:
			res.Failed++
			logger.Warn("failed to write transaction", zap.String("transaction_id", tx.ID), zap.Error(err))
		}
		return ctx.Err()
	})
	return res, err
}
