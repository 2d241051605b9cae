package users

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID      `json:"id" db:"id"`
	Wallet       common.Address `json:"wallet" db:"wallet_address"`
	DisplayName  string         `json:"displayName" db:"display_name"`
	PasswordHash string         `json:"-" db:"password_hash"` // Never return in JSON
	CreatedAt    time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time      `json:"updatedAt" db:"updated_at"`
}

type RefreshToken struct {
	TokenHash []byte    `db:"token_hash"`
	UserID    uuid.UUID `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
	Revoked   bool      `db:"revoked"`
	CreatedAt time.Time `db:"created_at"`
	UserAgent string    `db:"user_agent"`
	IPAddress string    `db:"ip_address"`
}
