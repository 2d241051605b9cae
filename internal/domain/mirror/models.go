package mirror

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ChainTransaction is one mirrored receipt row. The mirror is a read-only
// replica of the engine's event stream, queried by the stats dashboard.
type ChainTransaction struct {
	ID                   int64
	BlockNumber          int64
	BlockTimestamp       time.Time
	TxHash               common.Hash
	From                 common.Address
	To                   common.Address
	GasUsed              int64
	Status               string
	EventType            string
	OperationDescription string
	CreatedAt            time.Time
}

// DailyActivity aggregates transaction count and gas per calendar day.
type DailyActivity struct {
	Day     time.Time `json:"day"`
	TxCount int64     `json:"txCount"`
	GasUsed int64     `json:"gasUsed"`
}

// OperationBreakdown aggregates per event type.
type OperationBreakdown struct {
	EventType string `json:"eventType"`
	TxCount   int64  `json:"txCount"`
	GasUsed   int64  `json:"gasUsed"`
}

// AddressActivity aggregates per originating address.
type AddressActivity struct {
	Address  common.Address `json:"address"`
	TxCount  int64          `json:"txCount"`
	GasUsed  int64          `json:"gasUsed"`
	LastSeen time.Time      `json:"lastSeen"`
}
