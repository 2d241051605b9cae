package users

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mwynne/curio/pkg/events"
)

type UserRepository interface {
	CreateUser(ctx context.Context, tx pgx.Tx, user *User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByWallet(ctx context.Context, wallet common.Address) (*User, error)
	UpdateDisplayName(ctx context.Context, id uuid.UUID, displayName string) error
}

type TokenRepository interface {
	CreateRefreshToken(ctx context.Context, tx pgx.Tx, token *RefreshToken) error
	GetRefreshToken(ctx context.Context, tokenHash []byte) (*RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tx pgx.Tx, tokenHash []byte) error
	// RevokeAllUserTokens is useful for "logout from all devices" functionality
	RevokeAllUserTokens(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error
}

type OutboxRepository interface {
	SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error
	NextBlockNumber(ctx context.Context, tx pgx.Tx) (int64, error)
}
