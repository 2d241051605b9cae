package accreditation

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"github.com/mwynne/curio/internal/domain/items"
	"github.com/mwynne/curio/pkg/events"
)

// AccreditationRepository defines the interface for attestation persistence
type AccreditationRepository interface {
	// InsertRecord adds an attestation within a transaction. Returns false
	// without error when the institution already attested to the token.
	InsertRecord(ctx context.Context, tx pgx.Tx, record *Record) (bool, error)

	// ListByToken retrieves all attestations for a token, oldest first
	ListByToken(ctx context.Context, tokenID int64) ([]*Record, error)

	// CountByToken counts the attestations on a token
	CountByToken(ctx context.Context, tokenID int64) (int, error)

	// ListInstitutions retrieves the institutions accredited on a token
	// within a transaction, in attestation order
	ListInstitutions(ctx context.Context, tx pgx.Tx, tokenID int64) ([]common.Address, error)
}

// ItemRepository is the slice of item persistence accreditation needs
type ItemRepository interface {
	// GetItemForUpdate retrieves an item and locks its row
	// Must be called within a transaction
	GetItemForUpdate(ctx context.Context, tx pgx.Tx, tokenID int64) (*items.Item, error)

	// SetAccreditationAllowed toggles the attestation gate within a transaction
	SetAccreditationAllowed(ctx context.Context, tx pgx.Tx, tokenID int64, allowed bool) error

	// ListAccreditable retrieves all items whose attestation gate is open
	ListAccreditable(ctx context.Context) ([]*items.Item, error)
}

// OutboxRepository defines the interface for outbox event persistence
type OutboxRepository interface {
	SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error
	NextBlockNumber(ctx context.Context, tx pgx.Tx) (int64, error)
}
