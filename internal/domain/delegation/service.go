package delegation

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mwynne/curio/pkg/database"
	"github.com/mwynne/curio/pkg/events"
	"github.com/mwynne/curio/pkg/ledger"
)

// Validation errors
var (
	ErrNotOwner       = fmt.Errorf("caller does not own the token")
	ErrInvalidGrantee = fmt.Errorf("grantee must not be the zero address")
)

// DelegationService manages per-token settlement allow-lists
type DelegationService struct {
	txManager  database.TransactionManager
	grantRepo  GrantRepository
	itemRepo   ItemRepository
	outboxRepo OutboxRepository
}

// NewDelegationService creates a new delegation service
func NewDelegationService(
	txManager database.TransactionManager,
	grantRepo GrantRepository,
	itemRepo ItemRepository,
	outboxRepo OutboxRepository,
) *DelegationService {
	return &DelegationService{
		txManager:  txManager,
		grantRepo:  grantRepo,
		itemRepo:   itemRepo,
		outboxRepo: outboxRepo,
	}
}

// Authorize adds grantee to the token's settlement allow-list. Idempotent:
// re-granting an existing grantee succeeds without a second effective grant,
// and without emitting a second event.
func (s *DelegationService) Authorize(ctx context.Context, caller common.Address, tokenID int64, grantee common.Address) error {
	if grantee == ledger.ZeroAddress {
		return ErrInvalidGrantee
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	item, err := s.itemRepo.GetItemForUpdate(ctx, tx, tokenID)
	if err != nil {
		return err
	}
	if item.Owner != caller {
		return ErrNotOwner
	}

	grant := &Grant{
		TokenID:   tokenID,
		Grantee:   grantee,
		GrantedBy: caller,
		CreatedAt: time.Now(),
	}
	inserted, err := s.grantRepo.InsertGrant(ctx, tx, grant)
	if err != nil {
		return fmt.Errorf("failed to insert grant: %w", err)
	}

	if inserted {
		payload := ledger.GrantAuthorized{TokenID: tokenID, Owner: caller, Grantee: grantee}
		description := fmt.Sprintf("Authorize %s to settle token #%d", grantee.Hex(), tokenID)
		if emitErr := s.recordEvent(ctx, tx, ledger.EventGrantAuthorized, caller, description, payload); emitErr != nil {
			return emitErr
		}
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return fmt.Errorf("failed to commit transaction: %w", commitErr)
	}
	return nil
}

// Revoke removes grantee from the token's settlement allow-list. Revoking an
// address that was never granted is a tolerated no-op.
func (s *DelegationService) Revoke(ctx context.Context, caller common.Address, tokenID int64, grantee common.Address) error {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	item, err := s.itemRepo.GetItemForUpdate(ctx, tx, tokenID)
	if err != nil {
		return err
	}
	if item.Owner != caller {
		return ErrNotOwner
	}

	deleted, err := s.grantRepo.DeleteGrant(ctx, tx, tokenID, grantee)
	if err != nil {
		return fmt.Errorf("failed to delete grant: %w", err)
	}

	if deleted {
		payload := ledger.GrantRevoked{TokenID: tokenID, Owner: caller, Grantee: grantee}
		description := fmt.Sprintf("Revoke settlement grant on token #%d from %s", tokenID, grantee.Hex())
		if emitErr := s.recordEvent(ctx, tx, ledger.EventGrantRevoked, caller, description, payload); emitErr != nil {
			return emitErr
		}
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return fmt.Errorf("failed to commit transaction: %w", commitErr)
	}
	return nil
}

// IsAuthorized reports whether address may settle the token's auctions:
// true for the current owner and for any standing grantee.
func (s *DelegationService) IsAuthorized(ctx context.Context, tokenID int64, address common.Address) (bool, error) {
	item, err := s.itemRepo.GetItem(ctx, tokenID)
	if err != nil {
		return false, err
	}
	if item.Owner == address {
		return true, nil
	}
	return s.grantRepo.IsGranted(ctx, tokenID, address)
}

// ListGrantees retrieves the token's allow-list, oldest grant first.
func (s *DelegationService) ListGrantees(ctx context.Context, tokenID int64) ([]*Grant, error) {
	return s.grantRepo.ListGrantees(ctx, tokenID)
}

// ListTokensForGrantee retrieves the token ids an address may settle.
func (s *DelegationService) ListTokensForGrantee(ctx context.Context, grantee common.Address) ([]int64, error) {
	return s.grantRepo.ListTokensForGrantee(ctx, grantee)
}

func (s *DelegationService) recordEvent(ctx context.Context, tx pgx.Tx, eventType string, from common.Address, description string, payload any) error {
	block, err := s.outboxRepo.NextBlockNumber(ctx, tx)
	if err != nil {
		return fmt.Errorf("failed to claim block number: %w", err)
	}

	envelope, err := ledger.NewEnvelope(eventType, block, time.Now(), from, description, payload)
	if err != nil {
		return err
	}
	body, err := envelope.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	event := &events.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   body,
		Status:    events.OutboxStatusPending,
		CreatedAt: time.Now(),
	}
	if err := s.outboxRepo.SaveEvent(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}
	return nil
}
