package database

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mwynne/curio/internal/domain/accreditation"
)

// PostgresAccreditationRepository implements accreditation.AccreditationRepository using pgx
type PostgresAccreditationRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresAccreditationRepository creates a new PostgreSQL accreditation repository
func NewPostgresAccreditationRepository(pool *pgxpool.Pool) *PostgresAccreditationRepository {
	return &PostgresAccreditationRepository{pool: pool}
}

// InsertRecord adds an attestation. The unique constraint on
// (token_id, institution_address) turns duplicates into inserted=false.
func (r *PostgresAccreditationRepository) InsertRecord(ctx context.Context, tx pgx.Tx, record *accreditation.Record) (bool, error) {
	query := `
		INSERT INTO accreditations (id, token_id, institution_address, attestation_uri, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (token_id, institution_address) DO NOTHING
	`
	result, err := tx.Exec(ctx, query,
		record.ID,
		record.TokenID,
		record.Institution.Hex(),
		record.AttestationURI,
		record.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert attestation: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// ListByToken retrieves all attestations for a token, oldest first
func (r *PostgresAccreditationRepository) ListByToken(ctx context.Context, tokenID int64) ([]*accreditation.Record, error) {
	query := `
		SELECT id, token_id, institution_address, attestation_uri, created_at
		FROM accreditations
		WHERE token_id = $1
		ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, query, tokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attestations: %w", err)
	}
	defer rows.Close()

	var records []*accreditation.Record
	for rows.Next() {
		var record accreditation.Record
		var institution string
		if scanErr := rows.Scan(
			&record.ID,
			&record.TokenID,
			&institution,
			&record.AttestationURI,
			&record.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan attestation: %w", scanErr)
		}
		record.Institution = common.HexToAddress(institution)
		records = append(records, &record)
	}
	return records, rows.Err()
}

// CountByToken counts the attestations on a token
func (r *PostgresAccreditationRepository) CountByToken(ctx context.Context, tokenID int64) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accreditations WHERE token_id = $1`, tokenID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count attestations: %w", err)
	}
	return count, nil
}

// ListInstitutions retrieves the institutions accredited on a token within a
// transaction, in attestation order. Settlement reads through this so the
// fee split sees a consistent snapshot.
func (r *PostgresAccreditationRepository) ListInstitutions(ctx context.Context, tx pgx.Tx, tokenID int64) ([]common.Address, error) {
	query := `
		SELECT institution_address
		FROM accreditations
		WHERE token_id = $1
		ORDER BY created_at
	`
	rows, err := tx.Query(ctx, query, tokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to query institutions: %w", err)
	}
	defer rows.Close()

	var institutions []common.Address
	for rows.Next() {
		var institution string
		if scanErr := rows.Scan(&institution); scanErr != nil {
			return nil, fmt.Errorf("failed to scan institution: %w", scanErr)
		}
		institutions = append(institutions, common.HexToAddress(institution))
	}
	return institutions, rows.Err()
}
