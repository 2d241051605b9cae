package ledger

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope(t *testing.T) {
	from := common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	payload := ItemMinted{
		TokenID:     7,
		Owner:       from,
		Creator:     from,
		RoyaltyBps:  500,
		MetadataURI: "ipfs://QmExample",
	}

	env, err := NewEnvelope(EventItemMinted, 42, ts, from, "Mint token #7", payload)
	require.NoError(t, err)

	assert.Equal(t, EventItemMinted, env.EventType)
	assert.Equal(t, int64(42), env.Receipt.BlockNumber)
	assert.Equal(t, from, env.Receipt.From)
	assert.Equal(t, EngineAddress, env.Receipt.To)
	assert.Equal(t, StatusSuccess, env.Receipt.Status)
	assert.Equal(t, GasUsed(EventItemMinted), env.Receipt.GasUsed)
	assert.Equal(t, "Mint token #7", env.Receipt.OperationDescription)
	assert.NotEqual(t, common.Hash{}, env.Receipt.TxHash)
}

func TestNewEnvelope_TxHashDeterministic(t *testing.T) {
	from := common.HexToAddress("0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB")
	ts := time.Now()
	payload := ItemUnlisted{TokenID: 3, Seller: from}

	a, err := NewEnvelope(EventItemUnlisted, 10, ts, from, "Unlist token #3", payload)
	require.NoError(t, err)
	b, err := NewEnvelope(EventItemUnlisted, 10, ts.Add(time.Hour), from, "different description", payload)
	require.NoError(t, err)

	// The hash covers event type, block and payload only, so timestamp and
	// description must not perturb it.
	assert.Equal(t, a.Receipt.TxHash, b.Receipt.TxHash)

	// A different block number must change the hash even with identical payloads.
	c, err := NewEnvelope(EventItemUnlisted, 11, ts, from, "Unlist token #3", payload)
	require.NoError(t, err)
	assert.NotEqual(t, a.Receipt.TxHash, c.Receipt.TxHash)

	// So must a different event type.
	d, err := NewEnvelope(EventItemListed, 10, ts, from, "Unlist token #3", payload)
	require.NoError(t, err)
	assert.NotEqual(t, a.Receipt.TxHash, d.Receipt.TxHash)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	bidder := common.HexToAddress("0xCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCC")
	payload := BidAccepted{
		TokenID:  9,
		Bidder:   bidder,
		Amount:   1500,
		BidCount: 2,
	}

	env, err := NewEnvelope(EventBidAccepted, 100, time.Now().UTC(), bidder, "Bid on token #9", payload)
	require.NoError(t, err)

	data, err := env.Marshal()
	require.NoError(t, err)

	parsed, err := ParseEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, env.EventType, parsed.EventType)
	assert.Equal(t, env.Receipt.TxHash, parsed.Receipt.TxHash)
	assert.Equal(t, env.Receipt.BlockNumber, parsed.Receipt.BlockNumber)

	var decoded BidAccepted
	require.NoError(t, parsed.DecodePayload(&decoded))
	assert.Equal(t, payload.Bidder, decoded.Bidder)
	assert.Equal(t, payload.Amount, decoded.Amount)
}

func TestParseEnvelope_Invalid(t *testing.T) {
	_, err := ParseEnvelope([]byte("{not json"))
	assert.Error(t, err)
}

func TestGasUsed(t *testing.T) {
	assert.Equal(t, int64(158730), GasUsed(EventAuctionSettled))
	// Unknown event types fall back to the base transfer cost.
	assert.Equal(t, int64(21000), GasUsed("some.unknown.event"))
}
