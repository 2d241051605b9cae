package database

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mwynne/curio/internal/domain/delegation"
)

// PostgresGrantRepository implements delegation.GrantRepository using pgx
type PostgresGrantRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresGrantRepository creates a new PostgreSQL grant repository
func NewPostgresGrantRepository(pool *pgxpool.Pool) *PostgresGrantRepository {
	return &PostgresGrantRepository{pool: pool}
}

// InsertGrant adds a grant. The composite primary key makes duplicates a
// conflict, reported as inserted=false rather than an error.
func (r *PostgresGrantRepository) InsertGrant(ctx context.Context, tx pgx.Tx, grant *delegation.Grant) (bool, error) {
	query := `
		INSERT INTO auction_grants (token_id, grantee_address, granted_by, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token_id, grantee_address) DO NOTHING
	`
	result, err := tx.Exec(ctx, query,
		grant.TokenID,
		grant.Grantee.Hex(),
		grant.GrantedBy.Hex(),
		grant.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert grant: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// DeleteGrant removes a grant, reporting whether one existed
func (r *PostgresGrantRepository) DeleteGrant(ctx context.Context, tx pgx.Tx, tokenID int64, grantee common.Address) (bool, error) {
	query := `DELETE FROM auction_grants WHERE token_id = $1 AND grantee_address = $2`
	result, err := tx.Exec(ctx, query, tokenID, grantee.Hex())
	if err != nil {
		return false, fmt.Errorf("failed to delete grant: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// DeleteAllForToken removes every grant on a token
func (r *PostgresGrantRepository) DeleteAllForToken(ctx context.Context, tx pgx.Tx, tokenID int64) (int64, error) {
	query := `DELETE FROM auction_grants WHERE token_id = $1`
	result, err := tx.Exec(ctx, query, tokenID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete grants: %w", err)
	}
	return result.RowsAffected(), nil
}

// HasGrant reports whether grantee holds a grant on the token (transactional)
func (r *PostgresGrantRepository) HasGrant(ctx context.Context, tx pgx.Tx, tokenID int64, grantee common.Address) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM auction_grants WHERE token_id = $1 AND grantee_address = $2)`
	var exists bool
	if err := tx.QueryRow(ctx, query, tokenID, grantee.Hex()).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check grant: %w", err)
	}
	return exists, nil
}

// IsGranted reports whether grantee holds a grant on the token (non-transactional read)
func (r *PostgresGrantRepository) IsGranted(ctx context.Context, tokenID int64, grantee common.Address) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM auction_grants WHERE token_id = $1 AND grantee_address = $2)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, tokenID, grantee.Hex()).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check grant: %w", err)
	}
	return exists, nil
}

// ListGrantees retrieves all grants for a token, oldest first
func (r *PostgresGrantRepository) ListGrantees(ctx context.Context, tokenID int64) ([]*delegation.Grant, error) {
	query := `
		SELECT token_id, grantee_address, granted_by, created_at
		FROM auction_grants
		WHERE token_id = $1
		ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, query, tokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to query grants: %w", err)
	}
	defer rows.Close()

	var grants []*delegation.Grant
	for rows.Next() {
		var grant delegation.Grant
		var grantee, grantedBy string
		if scanErr := rows.Scan(&grant.TokenID, &grantee, &grantedBy, &grant.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", scanErr)
		}
		grant.Grantee = common.HexToAddress(grantee)
		grant.GrantedBy = common.HexToAddress(grantedBy)
		grants = append(grants, &grant)
	}
	return grants, rows.Err()
}

// ListTokensForGrantee retrieves the token ids an address may settle
func (r *PostgresGrantRepository) ListTokensForGrantee(ctx context.Context, grantee common.Address) ([]int64, error) {
	query := `SELECT token_id FROM auction_grants WHERE grantee_address = $1 ORDER BY token_id`
	rows, err := r.pool.Query(ctx, query, grantee.Hex())
	if err != nil {
		return nil, fmt.Errorf("failed to query grants: %w", err)
	}
	defer rows.Close()

	var tokenIDs []int64
	for rows.Next() {
		var tokenID int64
		if scanErr := rows.Scan(&tokenID); scanErr != nil {
			return nil, fmt.Errorf("failed to scan token id: %w", scanErr)
		}
		tokenIDs = append(tokenIDs, tokenID)
	}
	return tokenIDs, rows.Err()
}
