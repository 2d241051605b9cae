package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/mwynne/curio/pkg/auth"
	"github.com/mwynne/curio/pkg/database"
	"github.com/mwynne/curio/pkg/events"
	"github.com/mwynne/curio/pkg/ledger"
)

var (
	ErrUserAlreadyExists  = errors.New("user with this wallet already exists")
	ErrInvalidCredentials = errors.New("invalid wallet or password")
	ErrInvalidToken       = errors.New("invalid or expired refresh token")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidInput       = errors.New("invalid input")
)

const refreshTokenTTL = 7 * 24 * time.Hour

type Service struct {
	userRepo   UserRepository
	tokenRepo  TokenRepository
	outboxRepo OutboxRepository
	signer     *auth.Signer
	txManager  database.TransactionManager
}

func NewService(
	userRepo UserRepository,
	tokenRepo TokenRepository,
	outboxRepo OutboxRepository,
	signer *auth.Signer,
	txManager database.TransactionManager,
) *Service {
	return &Service{
		userRepo:   userRepo,
		tokenRepo:  tokenRepo,
		outboxRepo: outboxRepo,
		signer:     signer,
		txManager:  txManager,
	}
}

func (s *Service) Register(ctx context.Context, wallet common.Address, displayName, password string) (*User, error) {
	if err := validateUser(wallet, displayName, password); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	existing, err := s.userRepo.GetUserByWallet(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, ErrUserAlreadyExists
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &User{
		ID:           uuid.New(),
		Wallet:       wallet,
		DisplayName:  displayName,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := s.userRepo.CreateUser(ctx, tx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	block, err := s.outboxRepo.NextBlockNumber(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to claim block number: %w", err)
	}
	payload := ledger.UserRegistered{UserID: user.ID, Wallet: wallet}
	envelope, err := ledger.NewEnvelope(ledger.EventUserRegistered, block, now, wallet, fmt.Sprintf("Register wallet %s", wallet.Hex()), payload)
	if err != nil {
		return nil, err
	}
	body, err := envelope.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}

	outboxEvent := &events.OutboxEvent{
		ID:        uuid.New(),
		EventType: ledger.EventUserRegistered,
		Payload:   body,
		Status:    events.OutboxStatusPending,
		CreatedAt: now,
	}
	if err := s.outboxRepo.SaveEvent(ctx, tx, outboxEvent); err != nil {
		return nil, fmt.Errorf("failed to save outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return user, nil
}

func (s *Service) Login(ctx context.Context, wallet common.Address, password, userAgent, ip string) (string, string, error) {
	user, err := s.userRepo.GetUserByWallet(ctx, wallet)
	if err != nil {
		return "", "", fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return "", "", ErrInvalidCredentials
	}

	valid, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return "", "", fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return "", "", ErrInvalidCredentials
	}

	return s.generateAndSaveTokens(ctx, user, userAgent, ip)
}

func (s *Service) Refresh(ctx context.Context, refreshToken, userAgent, ip string) (string, string, error) {
	tokenHash := auth.HashRefreshToken(refreshToken)

	storedToken, err := s.tokenRepo.GetRefreshToken(ctx, tokenHash)
	if err != nil {
		return "", "", fmt.Errorf("failed to get refresh token: %w", err)
	}
	if storedToken == nil {
		return "", "", ErrInvalidToken
	}
	if storedToken.Revoked {
		return "", "", ErrInvalidToken
	}
	if time.Now().After(storedToken.ExpiresAt) {
		return "", "", ErrInvalidToken
	}

	user, err := s.userRepo.GetUserByID(ctx, storedToken.UserID)
	if err != nil {
		return "", "", fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return "", "", ErrUserNotFound
	}

	// Rotate tokens: revoke the old one, issue new ones in the same transaction.
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return "", "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := s.tokenRepo.RevokeRefreshToken(ctx, tx, tokenHash); err != nil {
		return "", "", fmt.Errorf("failed to revoke token: %w", err)
	}

	tokenPair, err := s.signer.GenerateTokens(user.ID, user.Wallet, user.DisplayName)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate tokens: %w", err)
	}

	newStoredToken := &RefreshToken{
		TokenHash: auth.HashRefreshToken(tokenPair.RefreshToken),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(refreshTokenTTL),
		Revoked:   false,
		CreatedAt: time.Now(),
		UserAgent: userAgent,
		IPAddress: ip,
	}
	if err := s.tokenRepo.CreateRefreshToken(ctx, tx, newStoredToken); err != nil {
		return "", "", fmt.Errorf("failed to save refresh token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return tokenPair.AccessToken, tokenPair.RefreshToken, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	tokenHash := auth.HashRefreshToken(refreshToken)

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := s.tokenRepo.RevokeRefreshToken(ctx, tx, tokenHash); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*User, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UpdateProfile changes the caller's display name. The wallet address is
// the marketplace identity and never changes.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, displayName string) (*User, error) {
	if strings.TrimSpace(displayName) == "" {
		return nil, fmt.Errorf("%w: display name cannot be empty", ErrInvalidInput)
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if err := s.userRepo.UpdateDisplayName(ctx, userID, displayName); err != nil {
		return nil, fmt.Errorf("failed to update display name: %w", err)
	}

	user.DisplayName = displayName
	user.UpdatedAt = time.Now()
	return user, nil
}

// Helpers

func (s *Service) generateAndSaveTokens(ctx context.Context, user *User, userAgent, ip string) (string, string, error) {
	tokenPair, err := s.signer.GenerateTokens(user.ID, user.Wallet, user.DisplayName)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate tokens: %w", err)
	}

	refreshToken := &RefreshToken{
		TokenHash: auth.HashRefreshToken(tokenPair.RefreshToken),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(refreshTokenTTL),
		Revoked:   false,
		CreatedAt: time.Now(),
		UserAgent: userAgent,
		IPAddress: ip,
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return "", "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := s.tokenRepo.CreateRefreshToken(ctx, tx, refreshToken); err != nil {
		return "", "", fmt.Errorf("failed to save refresh token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return tokenPair.AccessToken, tokenPair.RefreshToken, nil
}

func validateUser(wallet common.Address, displayName, password string) error {
	if wallet == (common.Address{}) {
		return errors.New("wallet must not be the zero address")
	}
	if strings.TrimSpace(displayName) == "" {
		return errors.New("display name cannot be empty")
	}
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}
