package auctions

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/mwynne/curio/internal/domain/items"
	"github.com/mwynne/curio/pkg/events"
	"github.com/mwynne/curio/pkg/ledger"
)

// fakeTx satisfies pgx.Tx for service tests. Only Commit and Rollback are
// ever called by the services; everything else panics via the nil embed.
type fakeTx struct {
	pgx.Tx
}

func (t *fakeTx) Commit(ctx context.Context) error   { return nil }
func (t *fakeTx) Rollback(ctx context.Context) error { return nil }

type fakeTxManager struct{}

func (m *fakeTxManager) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return &fakeTx{}, nil
}

// MockAuctionRepository is a mock implementation of AuctionRepository for testing
type MockAuctionRepository struct {
	mock.Mock
}

func (m *MockAuctionRepository) CreateAuction(ctx context.Context, tx pgx.Tx, auction *Auction) error {
	args := m.Called(ctx, tx, auction)
	return args.Error(0)
}

func (m *MockAuctionRepository) GetByID(ctx context.Context, auctionID uuid.UUID) (*Auction, error) {
	args := m.Called(ctx, auctionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Auction), args.Error(1)
}

func (m *MockAuctionRepository) GetActiveByToken(ctx context.Context, tokenID int64) (*Auction, error) {
	args := m.Called(ctx, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Auction), args.Error(1)
}

func (m *MockAuctionRepository) GetActiveByTokenForUpdate(ctx context.Context, tx pgx.Tx, tokenID int64) (*Auction, error) {
	args := m.Called(ctx, tx, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Auction), args.Error(1)
}

func (m *MockAuctionRepository) HasActiveAuction(ctx context.Context, tx pgx.Tx, tokenID int64) (bool, error) {
	args := m.Called(ctx, tx, tokenID)
	return args.Bool(0), args.Error(1)
}

func (m *MockAuctionRepository) ListActive(ctx context.Context) ([]*Auction, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Auction), args.Error(1)
}

func (m *MockAuctionRepository) UpdateHighestBid(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID, amount int64, bidder common.Address, bidCount int) error {
	args := m.Called(ctx, tx, auctionID, amount, bidder, bidCount)
	return args.Error(0)
}

func (m *MockAuctionRepository) Settle(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID, settledAt time.Time) error {
	args := m.Called(ctx, tx, auctionID, settledAt)
	return args.Error(0)
}

// MockBidRepository is a mock implementation of BidRepository for testing
type MockBidRepository struct {
	mock.Mock
}

func (m *MockBidRepository) SaveBid(ctx context.Context, tx pgx.Tx, bid *Bid) error {
	args := m.Called(ctx, tx, bid)
	return args.Error(0)
}

func (m *MockBidRepository) MarkLeadingBid(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID, status BidStatus) error {
	args := m.Called(ctx, tx, auctionID, status)
	return args.Error(0)
}

func (m *MockBidRepository) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*Bid, error) {
	args := m.Called(ctx, auctionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Bid), args.Error(1)
}

func (m *MockBidRepository) ListBidders(ctx context.Context, auctionID uuid.UUID) ([]common.Address, error) {
	args := m.Called(ctx, auctionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]common.Address), args.Error(1)
}

// MockItemRepository is a mock implementation of ItemRepository for testing
type MockItemRepository struct {
	mock.Mock
}

func (m *MockItemRepository) GetItemForUpdate(ctx context.Context, tx pgx.Tx, tokenID int64) (*items.Item, error) {
	args := m.Called(ctx, tx, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*items.Item), args.Error(1)
}

func (m *MockItemRepository) TransferOwner(ctx context.Context, tx pgx.Tx, tokenID int64, newOwner common.Address) error {
	args := m.Called(ctx, tx, tokenID, newOwner)
	return args.Error(0)
}

// MockGrantRepository is a mock implementation of GrantRepository for testing
type MockGrantRepository struct {
	mock.Mock
}

func (m *MockGrantRepository) HasGrant(ctx context.Context, tx pgx.Tx, tokenID int64, grantee common.Address) (bool, error) {
	args := m.Called(ctx, tx, tokenID, grantee)
	return args.Bool(0), args.Error(1)
}

func (m *MockGrantRepository) DeleteAllForToken(ctx context.Context, tx pgx.Tx, tokenID int64) (int64, error) {
	args := m.Called(ctx, tx, tokenID)
	return args.Get(0).(int64), args.Error(1)
}

// MockAccreditationReader is a mock implementation of AccreditationReader for testing
type MockAccreditationReader struct {
	mock.Mock
}

func (m *MockAccreditationReader) ListInstitutions(ctx context.Context, tx pgx.Tx, tokenID int64) ([]common.Address, error) {
	args := m.Called(ctx, tx, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]common.Address), args.Error(1)
}

// MockPayoutRepository is a mock implementation of PayoutRepository for testing
type MockPayoutRepository struct {
	mock.Mock
}

func (m *MockPayoutRepository) SaveAuctionPayouts(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID, tokenID int64, payouts []ledger.Payout) error {
	args := m.Called(ctx, tx, auctionID, tokenID, payouts)
	return args.Error(0)
}

// MockOutboxRepository is a mock implementation of OutboxRepository for testing
type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error {
	args := m.Called(ctx, tx, event)
	return args.Error(0)
}

func (m *MockOutboxRepository) NextBlockNumber(ctx context.Context, tx pgx.Tx) (int64, error) {
	args := m.Called(ctx, tx)
	return args.Get(0).(int64), args.Error(1)
}

type testMocks struct {
	auctionRepo *MockAuctionRepository
	bidRepo     *MockBidRepository
	itemRepo    *MockItemRepository
	grantRepo   *MockGrantRepository
	accredRepo  *MockAccreditationReader
	payoutRepo  *MockPayoutRepository
	outboxRepo  *MockOutboxRepository
}

func newTestService(now time.Time) (*AuctionService, *testMocks) {
	m := &testMocks{
		auctionRepo: new(MockAuctionRepository),
		bidRepo:     new(MockBidRepository),
		itemRepo:    new(MockItemRepository),
		grantRepo:   new(MockGrantRepository),
		accredRepo:  new(MockAccreditationReader),
		payoutRepo:  new(MockPayoutRepository),
		outboxRepo:  new(MockOutboxRepository),
	}
	svc := NewAuctionService(&fakeTxManager{}, m.auctionRepo, m.bidRepo, m.itemRepo, m.grantRepo, m.accredRepo, m.payoutRepo, m.outboxRepo)
	svc.now = func() time.Time { return now }
	return svc, m
}

func (m *testMocks) expectOutbox() {
	m.outboxRepo.On("NextBlockNumber", mock.Anything, mock.Anything).Return(int64(1), nil)
	m.outboxRepo.On("SaveEvent", mock.Anything, mock.Anything, mock.AnythingOfType("*events.OutboxEvent")).Return(nil)
}

func (m *testMocks) assertExpectations(t *testing.T) {
	m.auctionRepo.AssertExpectations(t)
	m.bidRepo.AssertExpectations(t)
	m.itemRepo.AssertExpectations(t)
	m.grantRepo.AssertExpectations(t)
	m.accredRepo.AssertExpectations(t)
	m.payoutRepo.AssertExpectations(t)
	m.outboxRepo.AssertExpectations(t)
}

var (
	ownerAddr  = common.HexToAddress("0xA000000000000000000000000000000000000001")
	bidderAddr = common.HexToAddress("0xB000000000000000000000000000000000000002")
	rivalAddr  = common.HexToAddress("0xC000000000000000000000000000000000000003")
	thirdAddr  = common.HexToAddress("0xD000000000000000000000000000000000000004")
)

func TestValidateBidAmount(t *testing.T) {
	tests := []struct {
		name           string
		amount         int64
		startPrice     int64
		currentHighest int64
		wantErr        error
	}{
		{name: "opening bid equal to start price", amount: 100, startPrice: 100, currentHighest: 0},
		{name: "opening bid above start price", amount: 150, startPrice: 100, currentHighest: 0},
		{name: "opening bid below start price", amount: 99, startPrice: 100, currentHighest: 0, wantErr: ErrBidTooLow},
		{name: "bid above current highest", amount: 201, startPrice: 100, currentHighest: 200},
		{name: "bid equal to current highest", amount: 200, startPrice: 100, currentHighest: 200, wantErr: ErrBidTooLow},
		{name: "bid below current highest", amount: 150, startPrice: 100, currentHighest: 200, wantErr: ErrBidTooLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateBidAmount(tt.amount, tt.startPrice, tt.currentHighest)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAuctionExpired(t *testing.T) {
	end := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := &Auction{EndTime: end}

	assert.False(t, a.Expired(end.Add(-time.Second)))
	// Reaching the end time exactly counts as expired.
	assert.True(t, a.Expired(end))
	assert.True(t, a.Expired(end.Add(time.Second)))
}

func TestAuctionService_Create(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tokenID := int64(7)

	tests := []struct {
		name      string
		cmd       CreateAuctionCommand
		setupMock func(*testMocks)
		wantErr   error
	}{
		{
			name: "successfully opens an auction",
			cmd: CreateAuctionCommand{
				Caller:     ownerAddr,
				TokenID:    tokenID,
				StartPrice: 100,
				EndTime:    now.Add(24 * time.Hour),
			},
			setupMock: func(m *testMocks) {
				m.itemRepo.On("GetItemForUpdate", mock.Anything, mock.Anything, tokenID).Return(&items.Item{
					TokenID: tokenID,
					Owner:   ownerAddr,
				}, nil)
				m.auctionRepo.On("HasActiveAuction", mock.Anything, mock.Anything, tokenID).Return(false, nil)
				m.auctionRepo.On("CreateAuction", mock.Anything, mock.Anything, mock.AnythingOfType("*auctions.Auction")).Return(nil)
				m.expectOutbox()
			},
		},
		{
			name: "fails with zero start price",
			cmd: CreateAuctionCommand{
				Caller:     ownerAddr,
				TokenID:    tokenID,
				StartPrice: 0,
				EndTime:    now.Add(24 * time.Hour),
			},
			setupMock: func(m *testMocks) {},
			wantErr:   ErrInvalidStartPrice,
		},
		{
			name: "fails with start price above the representable amount bound",
			cmd: CreateAuctionCommand{
				Caller:     ownerAddr,
				TokenID:    tokenID,
				StartPrice: ledger.MaxAmount + 1,
				EndTime:    now.Add(24 * time.Hour),
			},
			setupMock: func(m *testMocks) {},
			wantErr:   ErrInvalidStartPrice,
		},
		{
			name: "fails with end time in the past",
			cmd: CreateAuctionCommand{
				Caller:     ownerAddr,
				TokenID:    tokenID,
				StartPrice: 100,
				EndTime:    now.Add(-time.Hour),
			},
			setupMock: func(m *testMocks) {},
			wantErr:   ErrInvalidEndTime,
		},
		{
			name: "fails when caller is not the owner",
			cmd: CreateAuctionCommand{
				Caller:     rivalAddr,
				TokenID:    tokenID,
				StartPrice: 100,
				EndTime:    now.Add(24 * time.Hour),
			},
			setupMock: func(m *testMocks) {
				m.itemRepo.On("GetItemForUpdate", mock.Anything, mock.Anything, tokenID).Return(&items.Item{
					TokenID: tokenID,
					Owner:   ownerAddr,
				}, nil)
			},
			wantErr: ErrNotOwner,
		},
		{
			name: "fails when token is listed for fixed-price sale",
			cmd: CreateAuctionCommand{
				Caller:     ownerAddr,
				TokenID:    tokenID,
				StartPrice: 100,
				EndTime:    now.Add(24 * time.Hour),
			},
			setupMock: func(m *testMocks) {
				m.itemRepo.On("GetItemForUpdate", mock.Anything, mock.Anything, tokenID).Return(&items.Item{
					TokenID: tokenID,
					Owner:   ownerAddr,
					Listed:  true,
					Price:   500,
				}, nil)
			},
			wantErr: ErrItemListed,
		},
		{
			name: "fails when token already has an active auction",
			cmd: CreateAuctionCommand{
				Caller:     ownerAddr,
				TokenID:    tokenID,
				StartPrice: 100,
				EndTime:    now.Add(24 * time.Hour),
			},
			setupMock: func(m *testMocks) {
				m.itemRepo.On("GetItemForUpdate", mock.Anything, mock.Anything, tokenID).Return(&items.Item{
					TokenID: tokenID,
					Owner:   ownerAddr,
				}, nil)
				m.auctionRepo.On("HasActiveAuction", mock.Anything, mock.Anything, tokenID).Return(true, nil)
			},
			wantErr: ErrAuctionAlreadyActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newTestService(now)
			tt.setupMock(m)

			auction, err := svc.Create(context.Background(), tt.cmd)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, auction)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, auction)
				assert.Equal(t, tt.cmd.TokenID, auction.TokenID)
				assert.Equal(t, tt.cmd.Caller, auction.Seller)
				assert.Equal(t, tt.cmd.StartPrice, auction.StartPrice)
				assert.True(t, auction.IsActive)
				assert.Equal(t, 0, auction.BidCount)
				assert.Equal(t, ledger.ZeroAddress, auction.HighestBidder)
			}

			m.assertExpectations(t)
		})
	}
}

func TestAuctionService_PlaceBid(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tokenID := int64(7)
	auctionID := uuid.New()

	freshAuction := func() *Auction {
		return &Auction{
			ID:         auctionID,
			TokenID:    tokenID,
			Seller:     ownerAddr,
			StartPrice: 100,
			EndTime:    now.Add(time.Hour),
			IsActive:   true,
		}
	}
	contestedAuction := func() *Auction {
		a := freshAuction()
		a.HighestBid = 200
		a.HighestBidder = bidderAddr
		a.BidCount = 1
		return a
	}

	tests := []struct {
		name      string
		cmd       PlaceBidCommand
		setupMock func(*testMocks)
		wantErr   error
		check     func(*testing.T, *Bid)
	}{
		{
			name: "accepts an opening bid at the start price",
			cmd:  PlaceBidCommand{Bidder: bidderAddr, TokenID: tokenID, Amount: 100},
			setupMock: func(m *testMocks) {
				m.auctionRepo.On("GetActiveByTokenForUpdate", mock.Anything, mock.Anything, tokenID).Return(freshAuction(), nil)
				m.bidRepo.On("SaveBid", mock.Anything, mock.Anything, mock.AnythingOfType("*auctions.Bid")).Return(nil)
				m.auctionRepo.On("UpdateHighestBid", mock.Anything, mock.Anything, auctionID, int64(100), bidderAddr, 1).Return(nil)
				m.expectOutbox()
			},
			check: func(t *testing.T, bid *Bid) {
				assert.Equal(t, BidStatusLeading, bid.Status)
				assert.Equal(t, int64(100), bid.Amount)
			},
		},
		{
			name: "refunds the superseded leading bid",
			cmd:  PlaceBidCommand{Bidder: rivalAddr, TokenID: tokenID, Amount: 201},
			setupMock: func(m *testMocks) {
				m.auctionRepo.On("GetActiveByTokenForUpdate", mock.Anything, mock.Anything, tokenID).Return(contestedAuction(), nil)
				m.bidRepo.On("MarkLeadingBid", mock.Anything, mock.Anything, auctionID, BidStatusRefunded).Return(nil)
				m.bidRepo.On("SaveBid", mock.Anything, mock.Anything, mock.AnythingOfType("*auctions.Bid")).Return(nil)
				m.auctionRepo.On("UpdateHighestBid", mock.Anything, mock.Anything, auctionID, int64(201), rivalAddr, 2).Return(nil)
				m.expectOutbox()
			},
			check: func(t *testing.T, bid *Bid) {
				assert.Equal(t, BidStatusLeading, bid.Status)
			},
		},
		{
			name: "allows the leading bidder to raise their own bid",
			cmd:  PlaceBidCommand{Bidder: bidderAddr, TokenID: tokenID, Amount: 300},
			setupMock: func(m *testMocks) {
				m.auctionRepo.On("GetActiveByTokenForUpdate", mock.Anything, mock.Anything, tokenID).Return(contestedAuction(), nil)
				m.bidRepo.On("MarkLeadingBid", mock.Anything, mock.Anything, auctionID, BidStatusRefunded).Return(nil)
				m.bidRepo.On("SaveBid", mock.Anything, mock.Anything, mock.AnythingOfType("*auctions.Bid")).Return(nil)
				m.auctionRepo.On("UpdateHighestBid", mock.Anything, mock.Anything, auctionID, int64(300), bidderAddr, 2).Return(nil)
				m.expectOutbox()
			},
		},
		{
			// The precondition set is amount and timing only: the seller
			// bidding on their own auction is a valid opening bid.
			name: "accepts a qualifying opening bid from the seller",
			cmd:  PlaceBidCommand{Bidder: ownerAddr, TokenID: tokenID, Amount: 100},
			setupMock: func(m *testMocks) {
				m.auctionRepo.On("GetActiveByTokenForUpdate", mock.Anything, mock.Anything, tokenID).Return(freshAuction(), nil)
				m.bidRepo.On("SaveBid", mock.Anything, mock.Anything, mock.AnythingOfType("*auctions.Bid")).Return(nil)
				m.auctionRepo.On("UpdateHighestBid", mock.Anything, mock.Anything, auctionID, int64(100), ownerAddr, 1).Return(nil)
				m.expectOutbox()
			},
			check: func(t *testing.T, bid *Bid) {
				assert.Equal(t, BidStatusLeading, bid.Status)
				assert.Equal(t, ownerAddr, bid.Bidder)
			},
		},
		{
			name:      "rejects a non-positive bid",
			cmd:       PlaceBidCommand{Bidder: bidderAddr, TokenID: tokenID, Amount: 0},
			setupMock: func(m *testMocks) {},
			wantErr:   ErrInvalidBidAmount,
		},
		{
			name:      "rejects a bid above the representable amount bound",
			cmd:       PlaceBidCommand{Bidder: bidderAddr, TokenID: tokenID, Amount: ledger.MaxAmount + 1},
			setupMock: func(m *testMocks) {},
			wantErr:   ErrInvalidBidAmount,
		},
		{
			name: "rejects an opening bid below the start price",
			cmd:  PlaceBidCommand{Bidder: bidderAddr, TokenID: tokenID, Amount: 99},
			setupMock: func(m *testMocks) {
				m.auctionRepo.On("GetActiveByTokenForUpdate", mock.Anything, mock.Anything, tokenID).Return(freshAuction(), nil)
			},
			wantErr: ErrBidTooLow,
		},
		{
			name: "rejects a bid equal to the current highest",
			cmd:  PlaceBidCommand{Bidder: rivalAddr, TokenID: tokenID, Amount: 200},
			setupMock: func(m *testMocks) {
				m.auctionRepo.On("GetActiveByTokenForUpdate", mock.Anything, mock.Anything, tokenID).Return(contestedAuction(), nil)
			},
			wantErr: ErrBidTooLow,
		},
		{
			name: "rejects a bid after the end time",
			cmd:  PlaceBidCommand{Bidder: bidderAddr, TokenID: tokenID, Amount: 500},
			setupMock: func(m *testMocks) {
				expired := freshAuction()
				expired.EndTime = now.Add(-time.Minute)
				m.auctionRepo.On("GetActiveByTokenForUpdate", mock.Anything, mock.Anything, tokenID).Return(expired, nil)
			},
			wantErr: ErrAuctionExpired,
		},
		{
			name: "rejects a bid when no auction is active",
			cmd:  PlaceBidCommand{Bidder: bidderAddr, TokenID: tokenID, Amount: 500},
			setupMock: func(m *testMocks) {
				m.auctionRepo.On("GetActiveByTokenForUpdate", mock.Anything, mock.Anything, tokenID).Return(nil, ErrAuctionNotActive)
			},
			wantErr: ErrAuctionNotActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newTestService(now)
			tt.setupMock(m)

			bid, err := svc.PlaceBid(context.Background(), tt.cmd)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, bid)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, bid)
				if tt.check != nil {
					tt.check(t, bid)
				}
			}

			m.assertExpectations(t)
		})
	}
}

func TestAuctionService_End(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tokenID := int64(7)
	auctionID := uuid.New()

	expiredWithBids := func() *Auction {
		return &Auction{
			ID:            auctionID,
			TokenID:       tokenID,
			Seller:        ownerAddr,
			StartPrice:    100,
			HighestBid:    150,
			HighestBidder: bidderAddr,
			BidCount:      1,
			EndTime:       now.Add(-time.Minute),
			IsActive:      true,
		}
	}
	lockedItem := func() *items.Item {
		return &items.Item{
			TokenID:            tokenID,
			Owner:              ownerAddr,
			Creator:            thirdAddr,
			RoyaltyBasisPoints: 500,
		}
	}

	t.Run("fails before the end time regardless of caller identity", func(t *testing.T) {
		for _, caller := range []common.Address{ownerAddr, bidderAddr, rivalAddr} {
			svc, m := newTestService(now)
			running := expiredWithBids()
			running.EndTime = now.Add(time.Hour)
			m.auctionRepo.On("GetActiveByTokenForUpdate", mock.Anything, mock.Anything, tokenID).Return(running, nil)

			result, err := svc.End(context.Background(), caller, tokenID)
			assert.ErrorIs(t, err, ErrAuctionNotExpired, "caller %s", caller.Hex())
			assert.Nil(t, result)
			m.assertExpectations(t)
		}
	})

	t.Run("rejects a caller who is neither owner nor grantee", func(t *testing.T) {
		svc, m := newTestService(now)
		m.auctionRepo.On("GetActiveByTokenForUpdate", mock.Anything, mock.Anything, tokenID).Return(expiredWithBids(), nil)
		m.itemRepo.On("GetItemForUpdate", mock.Anything, mock.Anything, tokenID).Return(lockedItem(), nil)
		m.grantRepo.On("HasGrant", mock.Anything, mock.Anything, tokenID, rivalAddr).Return(false, nil)

		result, err := svc.End(context.Background(), rivalAddr, tokenID)
		assert.ErrorIs(t, err, ErrNotAuthorized)
		assert.Nil(t, result)
		m.assertExpectations(t)
	})

	t.Run("owner settles and the winner takes ownership", func(t *testing.T) {
		svc, m := newTestService(now)
		m.auctionRepo.On("GetActiveByTokenForUpdate", mock.Anything, mock.Anything, tokenID).Return(expiredWithBids(), nil)
		m.itemRepo.On("GetItemForUpdate", mock.Anything, mock.Anything, tokenID).Return(lockedItem(), nil)
		m.bidRepo.On("MarkLeadingBid", mock.Anything, mock.Anything, auctionID, BidStatusWon).Return(nil)
		m.itemRepo.On("TransferOwner", mock.Anything, mock.Anything, tokenID, bidderAddr).Return(nil)
		m.grantRepo.On("DeleteAllForToken", mock.Anything, mock.Anything, tokenID).Return(int64(0), nil)
		m.accredRepo.On("ListInstitutions", mock.Anything, mock.Anything, tokenID).Return([]common.Address{}, nil)
		m.payoutRepo.On("SaveAuctionPayouts", mock.Anything, mock.Anything, auctionID, tokenID, mock.Anything).Return(nil)
		m.auctionRepo.On("Settle", mock.Anything, mock.Anything, auctionID, now).Return(nil)
		m.expectOutbox()

		result, err := svc.End(context.Background(), ownerAddr, tokenID)
		assert.NoError(t, err)
		assert.True(t, result.Transferred)
		assert.Equal(t, bidderAddr, result.Winner)
		assert.Equal(t, int64(150), result.FinalPrice)

		// 150 at 500 bps: 7 to the creator, 143 to the seller.
		assert.Len(t, result.Payouts, 2)
		royalty, _ := payoutFor(result.Payouts, thirdAddr, ledger.PayoutRoleRoyalty)
		assert.Equal(t, int64(7), royalty)
		seller, _ := payoutFor(result.Payouts, ownerAddr, ledger.PayoutRoleSeller)
		assert.Equal(t, int64(143), seller)

		m.assertExpectations(t)
	})

	t.Run("grantee settles on the owner's behalf", func(t *testing.T) {
		svc, m := newTestService(now)
		m.auctionRepo.On("GetActiveByTokenForUpdate", mock.Anything, mock.Anything, tokenID).Return(expiredWithBids(), nil)
		m.itemRepo.On("GetItemForUpdate", mock.Anything, mock.Anything, tokenID).Return(lockedItem(), nil)
		m.grantRepo.On("HasGrant", mock.Anything, mock.Anything, tokenID, rivalAddr).Return(true, nil)
		m.bidRepo.On("MarkLeadingBid", mock.Anything, mock.Anything, auctionID, BidStatusWon).Return(nil)
		m.itemRepo.On("TransferOwner", mock.Anything, mock.Anything, tokenID, bidderAddr).Return(nil)
		m.grantRepo.On("DeleteAllForToken", mock.Anything, mock.Anything, tokenID).Return(int64(1), nil)
		m.accredRepo.On("ListInstitutions", mock.Anything, mock.Anything, tokenID).Return([]common.Address{}, nil)
		m.payoutRepo.On("SaveAuctionPayouts", mock.Anything, mock.Anything, auctionID, tokenID, mock.Anything).Return(nil)
		m.auctionRepo.On("Settle", mock.Anything, mock.Anything, auctionID, now).Return(nil)
		m.expectOutbox()

		result, err := svc.End(context.Background(), rivalAddr, tokenID)
		assert.NoError(t, err)
		assert.True(t, result.Transferred)
		m.assertExpectations(t)
	})

	t.Run("no bids just closes the cycle", func(t *testing.T) {
		svc, m := newTestService(now)
		noBids := expiredWithBids()
		noBids.HighestBid = 0
		noBids.HighestBidder = ledger.ZeroAddress
		noBids.BidCount = 0
		m.auctionRepo.On("GetActiveByTokenForUpdate", mock.Anything, mock.Anything, tokenID).Return(noBids, nil)
		m.itemRepo.On("GetItemForUpdate", mock.Anything, mock.Anything, tokenID).Return(lockedItem(), nil)
		m.auctionRepo.On("Settle", mock.Anything, mock.Anything, auctionID, now).Return(nil)
		m.expectOutbox()

		result, err := svc.End(context.Background(), ownerAddr, tokenID)
		assert.NoError(t, err)
		assert.False(t, result.Transferred)
		assert.Equal(t, ledger.ZeroAddress, result.Winner)
		assert.Empty(t, result.Payouts)
		m.assertExpectations(t)
	})

	t.Run("second settlement finds no active auction", func(t *testing.T) {
		svc, m := newTestService(now)
		m.auctionRepo.On("GetActiveByTokenForUpdate", mock.Anything, mock.Anything, tokenID).Return(nil, ErrAuctionNotActive)

		result, err := svc.End(context.Background(), ownerAddr, tokenID)
		assert.ErrorIs(t, err, ErrAuctionNotActive)
		assert.Nil(t, result)
		m.assertExpectations(t)
	})

	t.Run("settlement splits proceeds with accredited institutions", func(t *testing.T) {
		svc, m := newTestService(now)
		contested := expiredWithBids()
		contested.HighestBid = 10000
		m.auctionRepo.On("GetActiveByTokenForUpdate", mock.Anything, mock.Anything, tokenID).Return(contested, nil)
		m.itemRepo.On("GetItemForUpdate", mock.Anything, mock.Anything, tokenID).Return(lockedItem(), nil)
		m.bidRepo.On("MarkLeadingBid", mock.Anything, mock.Anything, auctionID, BidStatusWon).Return(nil)
		m.itemRepo.On("TransferOwner", mock.Anything, mock.Anything, tokenID, bidderAddr).Return(nil)
		m.grantRepo.On("DeleteAllForToken", mock.Anything, mock.Anything, tokenID).Return(int64(0), nil)
		m.accredRepo.On("ListInstitutions", mock.Anything, mock.Anything, tokenID).Return([]common.Address{instAddr1}, nil)
		m.payoutRepo.On("SaveAuctionPayouts", mock.Anything, mock.Anything, auctionID, tokenID, mock.Anything).Return(nil)
		m.auctionRepo.On("Settle", mock.Anything, mock.Anything, auctionID, now).Return(nil)
		m.expectOutbox()

		result, err := svc.End(context.Background(), ownerAddr, tokenID)
		assert.NoError(t, err)

		// 10000 at 500 bps royalty, then 20% of the 9500 remainder to the
		// single institution: 500 + 1900 + 7600.
		assert.Equal(t, int64(10000), sumPayouts(result.Payouts))
		inst, ok := payoutFor(result.Payouts, instAddr1, ledger.PayoutRoleAccreditation)
		assert.True(t, ok)
		assert.Equal(t, int64(1900), inst)
		seller, _ := payoutFor(result.Payouts, ownerAddr, ledger.PayoutRoleSeller)
		assert.Equal(t, int64(7600), seller)

		m.assertExpectations(t)
	})
}
