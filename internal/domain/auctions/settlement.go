package auctions

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/mwynne/curio/pkg/ledger"
)

// accreditationShareBps is the cut of post-royalty proceeds split evenly
// among accredited institutions, in basis points.
const accreditationShareBps = 2000

// computeDistribution splits the final price into royalty, accreditation and
// seller legs. All divisions are integer; every remainder lands on the seller
// so the legs always sum exactly to finalPrice.
//
// The royalty is owed to the creator even when the creator is the seller.
// The accreditation share is only deducted when at least one institution has
// attested; otherwise the post-royalty remainder goes fully to the seller.
//
// finalPrice is at most ledger.MaxAmount, so the basis-point products here
// stay within int64.
func computeDistribution(finalPrice int64, royaltyBps int, creator, seller common.Address, institutions []common.Address) []ledger.Payout {
	royalty := finalPrice * int64(royaltyBps) / 10000
	remaining := finalPrice - royalty

	var perInstitution int64
	if n := int64(len(institutions)); n > 0 {
		perInstitution = remaining * accreditationShareBps / 10000 / n
	}

	sellerShare := remaining - perInstitution*int64(len(institutions))

	payouts := make([]ledger.Payout, 0, len(institutions)+2)
	if royalty > 0 {
		payouts = append(payouts, ledger.Payout{
			Recipient: creator,
			Role:      ledger.PayoutRoleRoyalty,
			Amount:    royalty,
		})
	}
	if perInstitution > 0 {
		for _, inst := range institutions {
			payouts = append(payouts, ledger.Payout{
				Recipient: inst,
				Role:      ledger.PayoutRoleAccreditation,
				Amount:    perInstitution,
			})
		}
	}
	if sellerShare > 0 {
		payouts = append(payouts, ledger.Payout{
			Recipient: seller,
			Role:      ledger.PayoutRoleSeller,
			Amount:    sellerShare,
		})
	}
	return payouts
}
