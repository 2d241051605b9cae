package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mwynne/curio/internal/domain/users"
)

// PostgresTokenRepository implements users.TokenRepository using pgx
type PostgresTokenRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTokenRepository creates a new PostgreSQL refresh-token repository
func NewPostgresTokenRepository(pool *pgxpool.Pool) *PostgresTokenRepository {
	return &PostgresTokenRepository{pool: pool}
}

// CreateRefreshToken stores a hashed refresh token within a transaction
func (r *PostgresTokenRepository) CreateRefreshToken(ctx context.Context, tx pgx.Tx, token *users.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (token_hash, user_id, expires_at, revoked, created_at, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.Exec(ctx, query,
		token.TokenHash,
		token.UserID,
		token.ExpiresAt,
		token.Revoked,
		token.CreatedAt,
		token.UserAgent,
		token.IPAddress,
	)
	if err != nil {
		return fmt.Errorf("failed to insert refresh token: %w", err)
	}
	return nil
}

// GetRefreshToken retrieves a stored token by hash, nil when absent
func (r *PostgresTokenRepository) GetRefreshToken(ctx context.Context, tokenHash []byte) (*users.RefreshToken, error) {
	query := `
		SELECT token_hash, user_id, expires_at, revoked, created_at, user_agent, ip_address
		FROM refresh_tokens
		WHERE token_hash = $1
	`
	var token users.RefreshToken
	err := r.pool.QueryRow(ctx, query, tokenHash).Scan(
		&token.TokenHash,
		&token.UserID,
		&token.ExpiresAt,
		&token.Revoked,
		&token.CreatedAt,
		&token.UserAgent,
		&token.IPAddress,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	return &token, nil
}

// RevokeRefreshToken marks a token as revoked within a transaction
func (r *PostgresTokenRepository) RevokeRefreshToken(ctx context.Context, tx pgx.Tx, tokenHash []byte) error {
	query := `UPDATE refresh_tokens SET revoked = TRUE WHERE token_hash = $1`
	if _, err := tx.Exec(ctx, query, tokenHash); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAllUserTokens revokes every token belonging to a user
func (r *PostgresTokenRepository) RevokeAllUserTokens(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	query := `UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1`
	if _, err := tx.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to revoke user tokens: %w", err)
	}
	return nil
}
