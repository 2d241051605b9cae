package accreditation

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Record is one institution's attestation for a token. Records are
// append-only: once written they are never updated or deleted, even if the
// owner later closes the accreditation gate.
type Record struct {
	ID             uuid.UUID
	TokenID        int64
	Institution    common.Address
	AttestationURI string
	CreatedAt      time.Time
}

// PerformCommand represents an institution's attestation request.
type PerformCommand struct {
	Institution    common.Address
	TokenID        int64
	AttestationURI string
}
