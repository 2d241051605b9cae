package mirror

import (
	"context"
	"fmt"
	"time"

	"github.com/mwynne/curio/pkg/database"
	"github.com/mwynne/curio/pkg/ledger"
)

type Service struct {
	repo      Repository
	txManager database.TransactionManager
}

func NewService(repo Repository, txManager database.TransactionManager) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
	}
}

// ProcessEnvelope mirrors one receipt into the relational store. Redelivered
// envelopes are detected by transaction hash and acknowledged without effect.
func (s *Service) ProcessEnvelope(ctx context.Context, envelope *ledger.Envelope) error {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	processed, err := s.repo.IsEventProcessed(ctx, tx, envelope.Receipt.TxHash)
	if err != nil {
		return fmt.Errorf("failed to check idempotency: %w", err)
	}
	if processed {
		return nil
	}

	txn := &ChainTransaction{
		BlockNumber:          envelope.Receipt.BlockNumber,
		BlockTimestamp:       envelope.Receipt.Timestamp,
		TxHash:               envelope.Receipt.TxHash,
		From:                 envelope.Receipt.From,
		To:                   envelope.Receipt.To,
		GasUsed:              envelope.Receipt.GasUsed,
		Status:               envelope.Receipt.Status,
		EventType:            envelope.EventType,
		OperationDescription: envelope.Receipt.OperationDescription,
		CreatedAt:            time.Now(),
	}
	if err := s.repo.InsertTransaction(ctx, tx, txn); err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	if err := s.repo.MarkEventProcessed(ctx, tx, envelope.Receipt.TxHash, time.Now()); err != nil {
		return fmt.Errorf("failed to mark event as processed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListRecent retrieves the newest mirrored transactions.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]*ChainTransaction, error) {
	return s.repo.ListRecent(ctx, limit)
}

// DailyActivity aggregates transactions and gas per day over a trailing window.
func (s *Service) DailyActivity(ctx context.Context, days int) ([]*DailyActivity, error) {
	return s.repo.DailyActivity(ctx, days)
}

// OperationBreakdown aggregates transactions and gas per event type.
func (s *Service) OperationBreakdown(ctx context.Context) ([]*OperationBreakdown, error) {
	return s.repo.OperationBreakdown(ctx)
}

// AddressActivity aggregates per originating address, most active first.
func (s *Service) AddressActivity(ctx context.Context, limit int) ([]*AddressActivity, error) {
	return s.repo.AddressActivity(ctx, limit)
}
