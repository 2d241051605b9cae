package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mwynne/curio/internal/domain/items"
	pkgdb "github.com/mwynne/curio/pkg/database"
)

// PostgresItemRepository implements the item persistence ports using pgx
type PostgresItemRepository struct {
	pool *pgxpool.Pool // Keep pool for non-transactional reads
}

// NewPostgresItemRepository creates a new PostgreSQL item repository
func NewPostgresItemRepository(pool *pgxpool.Pool) *PostgresItemRepository {
	return &PostgresItemRepository{pool: pool}
}

const itemColumns = `token_id, owner_address, creator_address, royalty_bps, metadata_uri, accreditation_allowed, listed, price, created_at, updated_at`

// CreateItem inserts a new item and returns it with the assigned token id
func (r *PostgresItemRepository) CreateItem(ctx context.Context, tx pgx.Tx, item *items.Item) (*items.Item, error) {
	query := `
		INSERT INTO items (owner_address, creator_address, royalty_bps, metadata_uri, accreditation_allowed, listed, price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING token_id
	`
	err := tx.QueryRow(ctx, query,
		item.Owner.Hex(),
		item.Creator.Hex(),
		item.RoyaltyBasisPoints,
		item.MetadataURI,
		item.AccreditationAllowed,
		item.Listed,
		item.Price,
		item.CreatedAt,
		item.UpdatedAt,
	).Scan(&item.TokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert item: %w", err)
	}
	return item, nil
}

// GetItem retrieves an item by token id (non-transactional read)
func (r *PostgresItemRepository) GetItem(ctx context.Context, tokenID int64) (*items.Item, error) {
	return r.getItem(ctx, r.pool, tokenID, false)
}

// GetItemForUpdate retrieves an item and locks its row (transactional)
func (r *PostgresItemRepository) GetItemForUpdate(ctx context.Context, tx pgx.Tx, tokenID int64) (*items.Item, error) {
	return r.getItem(ctx, tx, tokenID, true)
}

// getItem is the internal implementation that works with any DBTX
func (r *PostgresItemRepository) getItem(ctx context.Context, db pkgdb.DBTX, tokenID int64, forUpdate bool) (*items.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE token_id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}

	item, err := scanItem(db.QueryRow(ctx, query, tokenID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, items.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// ListByOwner retrieves all items owned by an address
func (r *PostgresItemRepository) ListByOwner(ctx context.Context, owner common.Address) ([]*items.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE owner_address = $1 ORDER BY token_id`
	return r.queryItems(ctx, query, owner.Hex())
}

// ListAll retrieves items newest first
func (r *PostgresItemRepository) ListAll(ctx context.Context, limit, offset int) ([]*items.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items ORDER BY token_id DESC LIMIT $1 OFFSET $2`
	return r.queryItems(ctx, query, limit, offset)
}

// ListListed retrieves all items currently up for fixed-price sale
func (r *PostgresItemRepository) ListListed(ctx context.Context) ([]*items.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE listed ORDER BY updated_at DESC`
	return r.queryItems(ctx, query)
}

// ListAccreditable retrieves all items whose attestation gate is open
func (r *PostgresItemRepository) ListAccreditable(ctx context.Context) ([]*items.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE accreditation_allowed ORDER BY token_id`
	return r.queryItems(ctx, query)
}

// UpdateListing sets the fixed-price sale state
func (r *PostgresItemRepository) UpdateListing(ctx context.Context, tx pgx.Tx, tokenID int64, listed bool, price int64) error {
	query := `
		UPDATE items
		SET listed = $1, price = $2, updated_at = NOW()
		WHERE token_id = $3
	`
	result, err := tx.Exec(ctx, query, listed, price, tokenID)
	if err != nil {
		return fmt.Errorf("failed to update listing: %w", err)
	}
	if result.RowsAffected() == 0 {
		return items.ErrItemNotFound
	}
	return nil
}

// TransferOwner moves the token to a new owner
func (r *PostgresItemRepository) TransferOwner(ctx context.Context, tx pgx.Tx, tokenID int64, newOwner common.Address) error {
	query := `
		UPDATE items
		SET owner_address = $1, updated_at = NOW()
		WHERE token_id = $2
	`
	result, err := tx.Exec(ctx, query, newOwner.Hex(), tokenID)
	if err != nil {
		return fmt.Errorf("failed to transfer ownership: %w", err)
	}
	if result.RowsAffected() == 0 {
		return items.ErrItemNotFound
	}
	return nil
}

// SetAccreditationAllowed toggles the attestation gate
func (r *PostgresItemRepository) SetAccreditationAllowed(ctx context.Context, tx pgx.Tx, tokenID int64, allowed bool) error {
	query := `
		UPDATE items
		SET accreditation_allowed = $1, updated_at = NOW()
		WHERE token_id = $2
	`
	result, err := tx.Exec(ctx, query, allowed, tokenID)
	if err != nil {
		return fmt.Errorf("failed to update attestation gate: %w", err)
	}
	if result.RowsAffected() == 0 {
		return items.ErrItemNotFound
	}
	return nil
}

func (r *PostgresItemRepository) queryItems(ctx context.Context, query string, args ...any) ([]*items.Item, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var result []*items.Item
	for rows.Next() {
		item, scanErr := scanItem(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan item: %w", scanErr)
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

func scanItem(row pgx.Row) (*items.Item, error) {
	var item items.Item
	var owner, creator string
	if err := row.Scan(
		&item.TokenID,
		&owner,
		&creator,
		&item.RoyaltyBasisPoints,
		&item.MetadataURI,
		&item.AccreditationAllowed,
		&item.Listed,
		&item.Price,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		return nil, err
	}
	item.Owner = common.HexToAddress(owner)
	item.Creator = common.HexToAddress(creator)
	return &item, nil
}
