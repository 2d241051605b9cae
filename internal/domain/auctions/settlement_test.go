package auctions

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/mwynne/curio/pkg/ledger"
)

var (
	creatorAddr = common.HexToAddress("0x1000000000000000000000000000000000000001")
	sellerAddr  = common.HexToAddress("0x2000000000000000000000000000000000000002")
	instAddr1   = common.HexToAddress("0x3000000000000000000000000000000000000003")
	instAddr2   = common.HexToAddress("0x4000000000000000000000000000000000000004")
	instAddr3   = common.HexToAddress("0x5000000000000000000000000000000000000005")
)

func sumPayouts(payouts []ledger.Payout) int64 {
	var total int64
	for _, p := range payouts {
		total += p.Amount
	}
	return total
}

func payoutFor(payouts []ledger.Payout, recipient common.Address, role ledger.PayoutRole) (int64, bool) {
	for _, p := range payouts {
		if p.Recipient == recipient && p.Role == role {
			return p.Amount, true
		}
	}
	return 0, false
}

func TestComputeDistribution(t *testing.T) {
	tests := []struct {
		name         string
		finalPrice   int64
		royaltyBps   int
		institutions []common.Address
		wantRoyalty  int64
		wantPerInst  int64
		wantSeller   int64
	}{
		{
			name:        "royalty only, integer truncation",
			finalPrice:  150,
			royaltyBps:  500,
			wantRoyalty: 7, // 150*500/10000 = 7.5 truncated
			wantSeller:  143,
		},
		{
			name:       "no royalty no institutions",
			finalPrice: 1000,
			royaltyBps: 0,
			wantSeller: 1000,
		},
		{
			name:         "royalty and one institution",
			finalPrice:   10000,
			royaltyBps:   500,
			institutions: []common.Address{instAddr1},
			wantRoyalty:  500,
			wantPerInst:  1900, // (10000-500)*2000/10000 = 1900
			wantSeller:   7600,
		},
		{
			name:         "three institutions, remainder to seller",
			finalPrice:   10000,
			royaltyBps:   0,
			institutions: []common.Address{instAddr1, instAddr2, instAddr3},
			wantPerInst:  666, // 2000/3 truncated
			wantSeller:   8002,
		},
		{
			name:         "price too small for any accreditation share",
			finalPrice:   4,
			royaltyBps:   0,
			institutions: []common.Address{instAddr1},
			wantPerInst:  0,
			wantSeller:   4,
		},
		{
			name:        "max royalty cap",
			finalPrice:  999,
			royaltyBps:  1000,
			wantRoyalty: 99,
			wantSeller:  900,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payouts := computeDistribution(tt.finalPrice, tt.royaltyBps, creatorAddr, sellerAddr, tt.institutions)

			assert.Equal(t, tt.finalPrice, sumPayouts(payouts), "legs must sum exactly to the final price")

			royalty, _ := payoutFor(payouts, creatorAddr, ledger.PayoutRoleRoyalty)
			assert.Equal(t, tt.wantRoyalty, royalty)

			for _, inst := range tt.institutions {
				got, ok := payoutFor(payouts, inst, ledger.PayoutRoleAccreditation)
				if tt.wantPerInst > 0 {
					assert.True(t, ok, "expected an accreditation leg for %s", inst.Hex())
					assert.Equal(t, tt.wantPerInst, got)
				} else {
					assert.False(t, ok, "zero accreditation legs should be dropped")
				}
			}

			seller, _ := payoutFor(payouts, sellerAddr, ledger.PayoutRoleSeller)
			assert.Equal(t, tt.wantSeller, seller)
		})
	}
}

func TestComputeDistribution_CreatorIsSeller(t *testing.T) {
	// The royalty is still carved out as its own leg when the creator is
	// selling their own work.
	payouts := computeDistribution(150, 500, creatorAddr, creatorAddr, nil)

	assert.Equal(t, int64(150), sumPayouts(payouts))

	royalty, ok := payoutFor(payouts, creatorAddr, ledger.PayoutRoleRoyalty)
	assert.True(t, ok)
	assert.Equal(t, int64(7), royalty)

	seller, ok := payoutFor(payouts, creatorAddr, ledger.PayoutRoleSeller)
	assert.True(t, ok)
	assert.Equal(t, int64(143), seller)
}

func TestComputeDistribution_AtAmountBound(t *testing.T) {
	// ledger.MaxAmount is the largest price accepted anywhere; the share
	// products must not wrap at it.
	payouts := computeDistribution(ledger.MaxAmount, 1000, creatorAddr, sellerAddr, []common.Address{instAddr1})

	assert.Equal(t, ledger.MaxAmount, sumPayouts(payouts))
	for _, p := range payouts {
		assert.Positive(t, p.Amount, "leg for %s must not overflow negative", p.Recipient.Hex())
	}
}

func TestComputeDistribution_ExactSumProperty(t *testing.T) {
	prices := []int64{1, 3, 7, 99, 150, 1001, 12345, 999999, ledger.MaxAmount}
	bps := []int{0, 1, 250, 500, 999, 1000}
	institutionSets := [][]common.Address{
		nil,
		{instAddr1},
		{instAddr1, instAddr2},
		{instAddr1, instAddr2, instAddr3},
	}

	for _, price := range prices {
		for _, royalty := range bps {
			for _, insts := range institutionSets {
				payouts := computeDistribution(price, royalty, creatorAddr, sellerAddr, insts)
				assert.Equal(t, price, sumPayouts(payouts),
					"price=%d royaltyBps=%d institutions=%d", price, royalty, len(insts))
			}
		}
	}
}
