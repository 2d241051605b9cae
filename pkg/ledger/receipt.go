package ledger

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EngineAddress is the synthetic contract address the marketplace engine
// issues receipts against. Receipts name it as the `to` party of every
// mutation, mirroring how the on-chain contract appeared in wallet history.
var EngineAddress = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

// ZeroAddress is the no-bidder sentinel.
var ZeroAddress = common.Address{}

// StatusSuccess is the only receipt status the engine emits: failed
// operations never commit, so they never reach the outbox.
const StatusSuccess = "success"

// Receipt is the ledger-style record attached to every emitted event. The
// engine is the authoritative ledger here, so block numbers come from a
// database sequence and transaction hashes are derived from event content.
type Receipt struct {
	BlockNumber          int64          `json:"blockNumber"`
	Timestamp            time.Time      `json:"blockTimestamp"`
	TxHash               common.Hash    `json:"txHash"`
	From                 common.Address `json:"from"`
	To                   common.Address `json:"to"`
	GasUsed              int64          `json:"gasUsed"`
	Status               string         `json:"status"`
	OperationDescription string         `json:"operationDescription"`
}

// Envelope wraps a typed event payload with its receipt. This is the wire
// format published to the broker and consumed by the transaction mirror.
type Envelope struct {
	EventType string          `json:"eventType"`
	Receipt   Receipt         `json:"receipt"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEnvelope builds an envelope for a committed operation. The transaction
// hash is a Keccak-256 digest over the event type, the claimed block number
// and the serialized payload, which makes it stable and collision-free for
// idempotency keying downstream.
func NewEnvelope(eventType string, block int64, ts time.Time, from common.Address, description string, payload any) (*Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}

	var blockBytes [8]byte
	binary.BigEndian.PutUint64(blockBytes[:], uint64(block))
	txHash := crypto.Keccak256Hash([]byte(eventType), blockBytes[:], body)

	return &Envelope{
		EventType: eventType,
		Receipt: Receipt{
			BlockNumber:          block,
			Timestamp:            ts,
			TxHash:               txHash,
			From:                 from,
			To:                   EngineAddress,
			GasUsed:              GasUsed(eventType),
			Status:               StatusSuccess,
			OperationDescription: description,
		},
		Payload: body,
	}, nil
}

// Marshal serializes the envelope for the outbox.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// ParseEnvelope deserializes an envelope received from the broker.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to parse envelope: %w", err)
	}
	return &e, nil
}

// DecodePayload unmarshals the typed payload into v.
func (e *Envelope) DecodePayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}
