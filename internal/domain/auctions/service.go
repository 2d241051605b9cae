package auctions

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mwynne/curio/pkg/database"
	"github.com/mwynne/curio/pkg/events"
	"github.com/mwynne/curio/pkg/ledger"
)

// Validation errors
var (
	ErrAuctionNotFound      = fmt.Errorf("auction not found")
	ErrAuctionAlreadyActive = fmt.Errorf("token already has an active auction")
	ErrAuctionNotActive     = fmt.Errorf("token has no active auction")
	ErrAuctionExpired       = fmt.Errorf("auction has passed its end time")
	ErrAuctionNotExpired    = fmt.Errorf("auction has not reached its end time")
	ErrBidTooLow            = fmt.Errorf("bid must exceed the current highest bid")
	ErrNotOwner             = fmt.Errorf("caller does not own the token")
	ErrNotAuthorized        = fmt.Errorf("caller is neither owner nor settlement grantee")
	ErrInvalidStartPrice    = fmt.Errorf("start price out of range")
	ErrInvalidEndTime       = fmt.Errorf("end time must be in the future")
	ErrInvalidBidAmount     = fmt.Errorf("bid amount out of range")
	ErrItemListed           = fmt.Errorf("token is listed for fixed-price sale")
)

// validateBidAmount enforces strict monotonicity: an opening bid must reach
// the start price, later bids must strictly exceed the current highest.
func validateBidAmount(amount, startPrice, currentHighest int64) error {
	if currentHighest == 0 {
		if amount < startPrice {
			return ErrBidTooLow
		}
		return nil
	}
	if amount <= currentHighest {
		return ErrBidTooLow
	}
	return nil
}

// AuctionService implements the auction lifecycle: create, bid, settle
type AuctionService struct {
	txManager      database.TransactionManager
	auctionRepo    AuctionRepository
	bidRepo        BidRepository
	itemRepo       ItemRepository
	grantRepo      GrantRepository
	accreditations AccreditationReader
	payoutRepo     PayoutRepository
	outboxRepo     OutboxRepository
	now            func() time.Time
}

// NewAuctionService creates a new auction service
func NewAuctionService(
	txManager database.TransactionManager,
	auctionRepo AuctionRepository,
	bidRepo BidRepository,
	itemRepo ItemRepository,
	grantRepo GrantRepository,
	accreditations AccreditationReader,
	payoutRepo PayoutRepository,
	outboxRepo OutboxRepository,
) *AuctionService {
	return &AuctionService{
		txManager:      txManager,
		auctionRepo:    auctionRepo,
		bidRepo:        bidRepo,
		itemRepo:       itemRepo,
		grantRepo:      grantRepo,
		accreditations: accreditations,
		payoutRepo:     payoutRepo,
		outboxRepo:     outboxRepo,
		now:            time.Now,
	}
}

// Create opens a new auction cycle for a token. The caller must own the
// token, the token must not be under auction or listed for sale.
func (s *AuctionService) Create(ctx context.Context, cmd CreateAuctionCommand) (*Auction, error) {
	if cmd.StartPrice <= 0 || cmd.StartPrice > ledger.MaxAmount {
		return nil, ErrInvalidStartPrice
	}

	now := s.now()
	if !cmd.EndTime.After(now) {
		return nil, ErrInvalidEndTime
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	item, err := s.itemRepo.GetItemForUpdate(ctx, tx, cmd.TokenID)
	if err != nil {
		return nil, err
	}
	if item.Owner != cmd.Caller {
		return nil, ErrNotOwner
	}
	if item.Listed {
		return nil, ErrItemListed
	}

	active, err := s.auctionRepo.HasActiveAuction(ctx, tx, cmd.TokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to check auction state: %w", err)
	}
	if active {
		return nil, ErrAuctionAlreadyActive
	}

	auction := &Auction{
		ID:            uuid.New(),
		TokenID:       cmd.TokenID,
		Seller:        cmd.Caller,
		StartPrice:    cmd.StartPrice,
		HighestBid:    0,
		HighestBidder: ledger.ZeroAddress,
		BidCount:      0,
		StartTime:     now,
		EndTime:       cmd.EndTime,
		IsActive:      true,
		CreatedAt:     now,
	}

	if createErr := s.auctionRepo.CreateAuction(ctx, tx, auction); createErr != nil {
		return nil, fmt.Errorf("failed to create auction: %w", createErr)
	}

	payload := ledger.AuctionCreated{
		AuctionID:  auction.ID,
		TokenID:    auction.TokenID,
		Seller:     auction.Seller,
		StartPrice: auction.StartPrice,
		EndTime:    auction.EndTime,
	}
	description := fmt.Sprintf("Create auction for token #%d at %d", auction.TokenID, auction.StartPrice)
	if emitErr := s.recordEvent(ctx, tx, ledger.EventAuctionCreated, cmd.Caller, description, payload); emitErr != nil {
		return nil, emitErr
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", commitErr)
	}

	return auction, nil
}

// PlaceBid accepts a bid on the token's active auction. The previous leading
// bid is refunded and the new bid recorded in the same transaction: a failed
// refund fails the whole call, so escrowed funds are never stranded.
func (s *AuctionService) PlaceBid(ctx context.Context, cmd PlaceBidCommand) (*Bid, error) {
	if cmd.Amount <= 0 || cmd.Amount > ledger.MaxAmount {
		return nil, ErrInvalidBidAmount
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	auction, err := s.auctionRepo.GetActiveByTokenForUpdate(ctx, tx, cmd.TokenID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if auction.Expired(now) {
		return nil, ErrAuctionExpired
	}
	if valErr := validateBidAmount(cmd.Amount, auction.StartPrice, auction.HighestBid); valErr != nil {
		return nil, valErr
	}

	refundedBidder := ledger.ZeroAddress
	var refundedAmount int64
	if auction.HasBids() {
		// Release the superseded bidder's escrow before recording the new bid.
		if markErr := s.bidRepo.MarkLeadingBid(ctx, tx, auction.ID, BidStatusRefunded); markErr != nil {
			return nil, fmt.Errorf("failed to refund previous bid: %w", markErr)
		}
		refundedBidder = auction.HighestBidder
		refundedAmount = auction.HighestBid
	}

	bid := &Bid{
		ID:        uuid.New(),
		AuctionID: auction.ID,
		TokenID:   cmd.TokenID,
		Bidder:    cmd.Bidder,
		Amount:    cmd.Amount,
		Status:    BidStatusLeading,
		CreatedAt: now,
	}
	if saveErr := s.bidRepo.SaveBid(ctx, tx, bid); saveErr != nil {
		return nil, fmt.Errorf("failed to save bid: %w", saveErr)
	}

	newCount := auction.BidCount + 1
	if updateErr := s.auctionRepo.UpdateHighestBid(ctx, tx, auction.ID, cmd.Amount, cmd.Bidder, newCount); updateErr != nil {
		return nil, fmt.Errorf("failed to update highest bid: %w", updateErr)
	}

	payload := ledger.BidAccepted{
		AuctionID:      auction.ID,
		TokenID:        cmd.TokenID,
		Bidder:         cmd.Bidder,
		Amount:         cmd.Amount,
		BidCount:       newCount,
		RefundedBidder: refundedBidder,
		RefundedAmount: refundedAmount,
	}
	description := fmt.Sprintf("Bid %d on token #%d", cmd.Amount, cmd.TokenID)
	if emitErr := s.recordEvent(ctx, tx, ledger.EventBidAccepted, cmd.Bidder, description, payload); emitErr != nil {
		return nil, emitErr
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", commitErr)
	}

	return bid, nil
}

// End settles the token's active auction. Only the owner or a settlement
// grantee may call it, and only once the end time has passed. With no bids
// the auction just deactivates; otherwise ownership transfers to the highest
// bidder and the proceeds split per computeDistribution.
func (s *AuctionService) End(ctx context.Context, caller common.Address, tokenID int64) (*SettlementResult, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	auction, err := s.auctionRepo.GetActiveByTokenForUpdate(ctx, tx, tokenID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !auction.Expired(now) {
		return nil, ErrAuctionNotExpired
	}

	item, err := s.itemRepo.GetItemForUpdate(ctx, tx, tokenID)
	if err != nil {
		return nil, err
	}
	if caller != item.Owner {
		granted, grantErr := s.grantRepo.HasGrant(ctx, tx, tokenID, caller)
		if grantErr != nil {
			return nil, fmt.Errorf("failed to check settlement grant: %w", grantErr)
		}
		if !granted {
			return nil, ErrNotAuthorized
		}
	}

	result := &SettlementResult{
		Auction:    auction,
		Winner:     auction.HighestBidder,
		FinalPrice: auction.HighestBid,
	}

	if auction.HasBids() {
		if markErr := s.bidRepo.MarkLeadingBid(ctx, tx, auction.ID, BidStatusWon); markErr != nil {
			return nil, fmt.Errorf("failed to mark winning bid: %w", markErr)
		}

		if transferErr := s.itemRepo.TransferOwner(ctx, tx, tokenID, auction.HighestBidder); transferErr != nil {
			return nil, fmt.Errorf("failed to transfer ownership: %w", transferErr)
		}

		// New ownership voids every delegation the previous owner issued.
		if _, clearErr := s.grantRepo.DeleteAllForToken(ctx, tx, tokenID); clearErr != nil {
			return nil, fmt.Errorf("failed to clear grants: %w", clearErr)
		}

		institutions, instErr := s.accreditations.ListInstitutions(ctx, tx, tokenID)
		if instErr != nil {
			return nil, fmt.Errorf("failed to list accredited institutions: %w", instErr)
		}

		payouts := computeDistribution(auction.HighestBid, item.RoyaltyBasisPoints, item.Creator, auction.Seller, institutions)
		if saveErr := s.payoutRepo.SaveAuctionPayouts(ctx, tx, auction.ID, tokenID, payouts); saveErr != nil {
			return nil, fmt.Errorf("failed to save payouts: %w", saveErr)
		}

		result.Transferred = true
		result.Payouts = payouts
	}

	if settleErr := s.auctionRepo.Settle(ctx, tx, auction.ID, now); settleErr != nil {
		return nil, fmt.Errorf("failed to settle auction: %w", settleErr)
	}

	payload := ledger.AuctionSettled{
		AuctionID:   auction.ID,
		TokenID:     tokenID,
		Winner:      result.Winner,
		FinalPrice:  result.FinalPrice,
		Transferred: result.Transferred,
		Payouts:     result.Payouts,
	}
	description := fmt.Sprintf("Settle auction for token #%d at %d", tokenID, result.FinalPrice)
	if emitErr := s.recordEvent(ctx, tx, ledger.EventAuctionSettled, caller, description, payload); emitErr != nil {
		return nil, emitErr
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", commitErr)
	}

	auction.IsActive = false
	auction.SettledAt = &now
	return result, nil
}

// GetByID retrieves a single auction.
func (s *AuctionService) GetByID(ctx context.Context, auctionID uuid.UUID) (*Auction, error) {
	return s.auctionRepo.GetByID(ctx, auctionID)
}

// GetActiveByToken retrieves the token's active auction, if any.
func (s *AuctionService) GetActiveByToken(ctx context.Context, tokenID int64) (*Auction, error) {
	return s.auctionRepo.GetActiveByToken(ctx, tokenID)
}

// ListActive retrieves all active auctions, soonest-ending first.
func (s *AuctionService) ListActive(ctx context.Context) ([]*Auction, error) {
	return s.auctionRepo.ListActive(ctx)
}

// ListBids retrieves all bids for an auction, oldest first.
func (s *AuctionService) ListBids(ctx context.Context, auctionID uuid.UUID) ([]*Bid, error) {
	return s.bidRepo.ListByAuction(ctx, auctionID)
}

// ListBidders retrieves the distinct bidders for an auction in first-bid order.
func (s *AuctionService) ListBidders(ctx context.Context, auctionID uuid.UUID) ([]common.Address, error) {
	return s.bidRepo.ListBidders(ctx, auctionID)
}

// recordEvent claims a block number, wraps the payload in a ledger envelope
// and stores it in the outbox within the caller's transaction.
func (s *AuctionService) recordEvent(ctx context.Context, tx pgx.Tx, eventType string, from common.Address, description string, payload any) error {
	block, err := s.outboxRepo.NextBlockNumber(ctx, tx)
	if err != nil {
		return fmt.Errorf("failed to claim block number: %w", err)
	}

	envelope, err := ledger.NewEnvelope(eventType, block, s.now(), from, description, payload)
	if err != nil {
		return err
	}
	body, err := envelope.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	event := &events.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   body,
		Status:    events.OutboxStatusPending,
		CreatedAt: s.now(),
	}
	if err := s.outboxRepo.SaveEvent(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}
	return nil
}
