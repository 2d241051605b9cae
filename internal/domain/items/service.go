package items

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

// royaltyBpsCap bounds creator royalties at 10%.
const royaltyBpsCap = 1000

// Validation errors
var (
	ErrItemNotFound       = fmt.Errorf("item not found")
	ErrNotOwner           = fmt.Errorf("caller does not own the token")
	ErrInvalidRoyalty     = fmt.Errorf("royalty must be between 0 and 1000 basis points")
	ErrInvalidMetadataURI = fmt.Errorf("metadata URI must not be empty")
	ErrInvalidPrice       = fmt.Errorf("price out of range")
	ErrAlreadyListed      = fmt.Errorf("token is already listed for sale")
	ErrNotListed          = fmt.Errorf("token is not listed for sale")
	ErrAuctionActive      = fmt.Errorf("token has an active auction")
	ErrSelfPurchase       = fmt.Errorf("owner cannot purchase their own token")
	ErrPriceMismatch      = fmt.Errorf("payment does not match the asking price")
	ErrInvalidAddress     = fmt.Errorf("address must not be the zero address")
)

// ItemService implements minting, ownership and fixed-price sales
type ItemService struct {
	txManager  database.TransactionManager
	itemRepo   ItemRepository
	grantRepo  GrantRepository
	auctions   AuctionChecker
	payoutRepo PayoutRepository
	outboxRepo OutboxRepository
}

// NewItemService creates a new item service
func NewItemService(
	txManager database.TransactionManager,
	itemRepo ItemRepository,
	grantRepo GrantRepository,
	auctions AuctionChecker,
	payoutRepo PayoutRepository,
	outboxRepo OutboxRepository,
) *ItemService {
	return &ItemService{
		txManager:  txManager,
		itemRepo:   itemRepo,
		grantRepo:  grantRepo,
		auctions:   auctions,
		payoutRepo: payoutRepo,
		outboxRepo: outboxRepo,
	}
}

// Mint creates a new token owned by its creator and records the mint receipt
// in the same transaction.
func (s *ItemService) Mint(ctx context.Context, cmd MintCommand) (*Item, error) {
	if cmd.Creator == ledger.ZeroAddress {
		return nil, ErrInvalidAddress
	}
	if cmd.RoyaltyBasisPoints < 0 || cmd.RoyaltyBasisPoints > royaltyBpsCap {
		return nil, ErrInvalidRoyalty
	}
	if cmd.MetadataURI == "" {
		return nil, ErrInvalidMetadataURI
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	now := time.Now()
	item := &Item{
		Owner:              cmd.Creator,
		Creator:            cmd.Creator,
		RoyaltyBasisPoints: cmd.RoyaltyBasisPoints,
		MetadataURI:        cmd.MetadataURI,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	item, err = s.itemRepo.CreateItem(ctx, tx, item)
	if err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	payload := ledger.ItemMinted{
		TokenID:     item.TokenID,
		Owner:       item.Owner,
		Creator:     item.Creator,
		RoyaltyBps:  item.RoyaltyBasisPoints,
		MetadataURI: item.MetadataURI,
	}
	description := fmt.Sprintf("Mint token #%d", item.TokenID)
	if emitErr := s.recordEvent(ctx, tx, ledger.EventItemMinted, item.Creator, description, payload); emitErr != nil {
		return nil, emitErr
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", commitErr)
	}

	return item, nil
}

// Get retrieves a single item.
func (s *ItemService) Get(ctx context.Context, tokenID int64) (*Item, error) {
	return s.itemRepo.GetItem(ctx, tokenID)
}

// ListByOwner retrieves all items owned by an address.
func (s *ItemService) ListByOwner(ctx context.Context, owner common.Address) ([]*Item, error) {
	return s.itemRepo.ListByOwner(ctx, owner)
}

// ListAll retrieves items newest first.
func (s *ItemService) ListAll(ctx context.Context, limit, offset int) ([]*Item, error) {
	return s.itemRepo.ListAll(ctx, limit, offset)
}

// ListForSaleItems retrieves all items currently up for fixed-price sale.
func (s *ItemService) ListForSaleItems(ctx context.Context) ([]*Item, error) {
	return s.itemRepo.ListListed(ctx)
}

// ListForSale puts a token up for fixed-price sale. Listing and auctioning
// are mutually exclusive for a token.
func (s *ItemService) ListForSale(ctx context.Context, cmd ListForSaleCommand) (*Item, error) {
	if cmd.Price <= 0 || cmd.Price > ledger.MaxAmount {
		return nil, ErrInvalidPrice
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
		return nil, ErrAlreadyListed
	}

	active, err := s.auctions.HasActiveAuction(ctx, tx, cmd.TokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to check auction state: %w", err)
	}
	if active {
		return nil, ErrAuctionActive
	}

	if updateErr := s.itemRepo.UpdateListing(ctx, tx, cmd.TokenID, true, cmd.Price); updateErr != nil {
		return nil, fmt.Errorf("failed to update listing: %w", updateErr)
	}

	payload := ledger.ItemListed{
		TokenID: cmd.TokenID,
		Seller:  cmd.Caller,
		Price:   cmd.Price,
	}
	description := fmt.Sprintf("List token #%d for %d", cmd.TokenID, cmd.Price)
	if emitErr := s.recordEvent(ctx, tx, ledger.EventItemListed, cmd.Caller, description, payload); emitErr != nil {
		return nil, emitErr
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", commitErr)
	}

	item.Listed = true
	item.Price = cmd.Price
	return item, nil
}

// Unlist withdraws a token from fixed-price sale.
func (s *ItemService) Unlist(ctx context.Context, caller common.Address, tokenID int64) error {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	item, err := s.itemRepo.GetItemForUpdate(ctx, tx, tokenID)
	if err != nil {
		return err
	}
	if item.Owner != caller {
		return ErrNotOwner
	}
	if !item.Listed {
		return ErrNotListed
	}

	if updateErr := s.itemRepo.UpdateListing(ctx, tx, tokenID, false, 0); updateErr != nil {
		return fmt.Errorf("failed to update listing: %w", updateErr)
	}

	payload := ledger.ItemUnlisted{TokenID: tokenID, Seller: caller}
	description := fmt.Sprintf("Unlist token #%d", tokenID)
	if emitErr := s.recordEvent(ctx, tx, ledger.EventItemUnlisted, caller, description, payload); emitErr != nil {
		return emitErr
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return fmt.Errorf("failed to commit transaction: %w", commitErr)
	}
	return nil
}

// Purchase buys a listed token. Ownership transfers, standing grants are
// wiped, and the proceeds split into creator royalty plus seller remainder,
// all in one transaction.
func (s *ItemService) Purchase(ctx context.Context, cmd PurchaseCommand) (*Item, error) {
	if cmd.Buyer == ledger.ZeroAddress {
		return nil, ErrInvalidAddress
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
	if !item.Listed {
		return nil, ErrNotListed
	}
	if item.Owner == cmd.Buyer {
		return nil, ErrSelfPurchase
	}
	if cmd.Amount != item.Price {
		return nil, ErrPriceMismatch
	}

	payouts := purchaseSplit(item)

	if saveErr := s.payoutRepo.SavePayouts(ctx, tx, cmd.TokenID, payouts); saveErr != nil {
		return nil, fmt.Errorf("failed to save payouts: %w", saveErr)
	}

	if transferErr := s.itemRepo.TransferOwner(ctx, tx, cmd.TokenID, cmd.Buyer); transferErr != nil {
		return nil, fmt.Errorf("failed to transfer ownership: %w", transferErr)
	}

	// New ownership voids every delegation the previous owner issued.
	if _, clearErr := s.grantRepo.DeleteAllForToken(ctx, tx, cmd.TokenID); clearErr != nil {
		return nil, fmt.Errorf("failed to clear grants: %w", clearErr)
	}

	if updateErr := s.itemRepo.UpdateListing(ctx, tx, cmd.TokenID, false, 0); updateErr != nil {
		return nil, fmt.Errorf("failed to clear listing: %w", updateErr)
	}

	payload := ledger.ItemPurchased{
		TokenID: cmd.TokenID,
		Seller:  item.Owner,
		Buyer:   cmd.Buyer,
		Price:   item.Price,
		Payouts: payouts,
	}
	description := fmt.Sprintf("Purchase token #%d for %d", cmd.TokenID, item.Price)
	if emitErr := s.recordEvent(ctx, tx, ledger.EventItemPurchased, cmd.Buyer, description, payload); emitErr != nil {
		return nil, emitErr
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", commitErr)
	}

	item.Owner = cmd.Buyer
	item.Listed = false
	item.Price = 0
	return item, nil
}

// purchaseSplit computes the legs of a fixed-price sale: creator royalty
// first, remainder to the seller. The royalty is owed even when the seller
// is the creator. item.Price is at most ledger.MaxAmount, so the basis-point
// product stays within int64.
func purchaseSplit(item *Item) []ledger.Payout {
	royalty := item.Price * int64(item.RoyaltyBasisPoints) / 10000
	payouts := make([]ledger.Payout, 0, 2)
	if royalty > 0 {
		payouts = append(payouts, ledger.Payout{
			Recipient: item.Creator,
			Role:      ledger.PayoutRoleRoyalty,
			Amount:    royalty,
		})
	}
	if remainder := item.Price - royalty; remainder > 0 {
		payouts = append(payouts, ledger.Payout{
			Recipient: item.Owner,
			Role:      ledger.PayoutRoleSeller,
			Amount:    remainder,
		})
	}
	return payouts
}

// recordEvent claims a block number, wraps the payload in a ledger envelope
// and stores it in the outbox within the caller's transaction.
func (s *ItemService) recordEvent(ctx context.Context, tx pgx.Tx, eventType string, from common.Address, description string, payload any) error {
	block, err := s.outboxRepo.NextBlockNumber(ctx, tx)
	if err != nil {
		return fmt.Errorf("failed to claim block number: %w", err)
	}

	envelope, err := ledger.NewEnvelope(eventType, block, time.Now(), from, description, payload)
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
		CreatedAt: time.Now(),
	}
	if err := s.outboxRepo.SaveEvent(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}
	return nil
}
