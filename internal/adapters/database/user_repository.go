package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mwynne/curio/internal/domain/users"
	pkgdb "github.com/mwynne/curio/pkg/database"
)

// PostgresUserRepository implements users.UserRepository using pgx
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresUserRepository creates a new PostgreSQL user repository
func NewPostgresUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// CreateUser inserts a new user within a transaction
func (r *PostgresUserRepository) CreateUser(ctx context.Context, tx pgx.Tx, user *users.User) error {
	query := `
		INSERT INTO users (id, wallet_address, display_name, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := tx.Exec(ctx, query,
		user.ID,
		user.Wallet.Hex(),
		user.DisplayName,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by id, nil when absent
func (r *PostgresUserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*users.User, error) {
	return r.getUser(ctx, r.pool, `WHERE id = $1`, id)
}

// GetUserByWallet retrieves a user by wallet address, nil when absent
func (r *PostgresUserRepository) GetUserByWallet(ctx context.Context, wallet common.Address) (*users.User, error) {
	return r.getUser(ctx, r.pool, `WHERE wallet_address = $1`, wallet.Hex())
}

// UpdateDisplayName changes the user's display name
func (r *PostgresUserRepository) UpdateDisplayName(ctx context.Context, id uuid.UUID, displayName string) error {
	query := `UPDATE users SET display_name = $1, updated_at = NOW() WHERE id = $2`
	tag, err := r.pool.Exec(ctx, query, displayName, id)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s not found", id)
	}
	return nil
}

func (r *PostgresUserRepository) getUser(ctx context.Context, db pkgdb.DBTX, where string, arg any) (*users.User, error) {
	query := `SELECT id, wallet_address, display_name, password_hash, created_at, updated_at FROM users ` + where

	var user users.User
	var wallet string
	err := db.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&wallet,
		&user.DisplayName,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.Wallet = common.HexToAddress(wallet)
	return &user, nil
}
