package accreditation

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mwynne/curio/internal/domain/items"
	"github.com/mwynne/curio/pkg/database"
	"github.com/mwynne/curio/pkg/events"
	"github.com/mwynne/curio/pkg/ledger"
)

// Validation errors
var (
	ErrNotOwner                = fmt.Errorf("caller does not own the token")
	ErrAccreditationNotAllowed = fmt.Errorf("token does not accept attestations")
	ErrAlreadyAccredited       = fmt.Errorf("institution already attested to this token")
	ErrInvalidAttestationURI   = fmt.Errorf("attestation URI must not be empty")
)

// AccreditationService manages the per-token attestation gate and the
// append-only attestation log behind it
type AccreditationService struct {
	txManager  database.TransactionManager
	accredRepo AccreditationRepository
	itemRepo   ItemRepository
	outboxRepo OutboxRepository
}

// NewAccreditationService creates a new accreditation service
func NewAccreditationService(
	txManager database.TransactionManager,
	accredRepo AccreditationRepository,
	itemRepo ItemRepository,
	outboxRepo OutboxRepository,
) *AccreditationService {
	return &AccreditationService{
		txManager:  txManager,
		accredRepo: accredRepo,
		itemRepo:   itemRepo,
		outboxRepo: outboxRepo,
	}
}

// SetAllowed toggles the token's attestation gate. Closing the gate never
// invalidates attestations already on record.
func (s *AccreditationService) SetAllowed(ctx context.Context, caller common.Address, tokenID int64, allowed bool) error {
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

	if item.AccreditationAllowed != allowed {
		if updateErr := s.itemRepo.SetAccreditationAllowed(ctx, tx, tokenID, allowed); updateErr != nil {
			return fmt.Errorf("failed to update attestation gate: %w", updateErr)
		}

		payload := ledger.AccreditationChanged{TokenID: tokenID, Owner: caller, Allowed: allowed}
		verb := "Close"
		if allowed {
			verb = "Open"
		}
		description := fmt.Sprintf("%s attestation gate on token #%d", verb, tokenID)
		if emitErr := s.recordEvent(ctx, tx, ledger.EventAccreditationChanged, caller, description, payload); emitErr != nil {
			return emitErr
		}
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return fmt.Errorf("failed to commit transaction: %w", commitErr)
	}
	return nil
}

// Perform records an institution's attestation. The token's gate must be
// open, and each institution may attest at most once per token.
func (s *AccreditationService) Perform(ctx context.Context, cmd PerformCommand) (*Record, error) {
	if cmd.AttestationURI == "" {
		return nil, ErrInvalidAttestationURI
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	item, err := s.itemRepo.GetItemForUpdate(ctx, tx, cmd.TokenID)
	if err != nil {
		return nil, err
	}
	if !item.AccreditationAllowed {
		return nil, ErrAccreditationNotAllowed
	}

	record := &Record{
		ID:             uuid.New(),
		TokenID:        cmd.TokenID,
		Institution:    cmd.Institution,
		AttestationURI: cmd.AttestationURI,
		CreatedAt:      time.Now(),
	}
	inserted, err := s.accredRepo.InsertRecord(ctx, tx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to insert attestation: %w", err)
	}
	if !inserted {
		return nil, ErrAlreadyAccredited
	}

	payload := ledger.AccreditationPerformed{
		TokenID:        cmd.TokenID,
		Institution:    cmd.Institution,
		AttestationURI: cmd.AttestationURI,
	}
	description := fmt.Sprintf("Record attestation for token #%d by %s", cmd.TokenID, cmd.Institution.Hex())
	if emitErr := s.recordEvent(ctx, tx, ledger.EventAccreditationRecorded, cmd.Institution, description, payload); emitErr != nil {
		return nil, emitErr
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", commitErr)
	}

	return record, nil
}

// ListRecords retrieves a token's attestations, oldest first.
func (s *AccreditationService) ListRecords(ctx context.Context, tokenID int64) ([]*Record, error) {
	return s.accredRepo.ListByToken(ctx, tokenID)
}

// Count returns the number of attestations on a token.
func (s *AccreditationService) Count(ctx context.Context, tokenID int64) (int, error) {
	return s.accredRepo.CountByToken(ctx, tokenID)
}

// ListAccreditable retrieves all items whose attestation gate is open.
func (s *AccreditationService) ListAccreditable(ctx context.Context) ([]*items.Item, error) {
	return s.itemRepo.ListAccreditable(ctx)
}

func (s *AccreditationService) recordEvent(ctx context.Context, tx pgx.Tx, eventType string, from common.Address, description string, payload any) error {
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
