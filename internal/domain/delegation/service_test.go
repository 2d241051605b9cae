package delegation

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/mwynne/curio/internal/domain/items"
	"github.com/mwynne/curio/pkg/events"
	"github.com/mwynne/curio/pkg/ledger"
)

// fakeTx satisfies pgx.Tx for service tests. Only Commit and Rollback are
// ever called by the service; everything else panics via the nil embed.
type fakeTx struct {
	pgx.Tx
}

func (t *fakeTx) Commit(ctx context.Context) error   { return nil }
func (t *fakeTx) Rollback(ctx context.Context) error { return nil }

type fakeTxManager struct{}

func (m *fakeTxManager) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return &fakeTx{}, nil
}

// MockGrantRepository is a mock implementation of GrantRepository for testing
type MockGrantRepository struct {
	mock.Mock
}

func (m *MockGrantRepository) InsertGrant(ctx context.Context, tx pgx.Tx, grant *Grant) (bool, error) {
	args := m.Called(ctx, tx, grant)
	return args.Bool(0), args.Error(1)
}

func (m *MockGrantRepository) DeleteGrant(ctx context.Context, tx pgx.Tx, tokenID int64, grantee common.Address) (bool, error) {
	args := m.Called(ctx, tx, tokenID, grantee)
	return args.Bool(0), args.Error(1)
}

func (m *MockGrantRepository) IsGranted(ctx context.Context, tokenID int64, grantee common.Address) (bool, error) {
	args := m.Called(ctx, tokenID, grantee)
	return args.Bool(0), args.Error(1)
}

func (m *MockGrantRepository) ListGrantees(ctx context.Context, tokenID int64) ([]*Grant, error) {
	args := m.Called(ctx, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Grant), args.Error(1)
}

func (m *MockGrantRepository) ListTokensForGrantee(ctx context.Context, grantee common.Address) ([]int64, error) {
	args := m.Called(ctx, grantee)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
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

func (m *MockItemRepository) GetItem(ctx context.Context, tokenID int64) (*items.Item, error) {
	args := m.Called(ctx, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*items.Item), args.Error(1)
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

var (
	ownerAddr    = common.HexToAddress("0xA000000000000000000000000000000000000001")
	granteeAddr  = common.HexToAddress("0xB000000000000000000000000000000000000002")
	strangerAddr = common.HexToAddress("0xC000000000000000000000000000000000000003")
)

func newTestService() (*DelegationService, *MockGrantRepository, *MockItemRepository, *MockOutboxRepository) {
	grantRepo := new(MockGrantRepository)
	itemRepo := new(MockItemRepository)
	outboxRepo := new(MockOutboxRepository)
	svc := NewDelegationService(&fakeTxManager{}, grantRepo, itemRepo, outboxRepo)
	return svc, grantRepo, itemRepo, outboxRepo
}

func expectOutbox(outboxRepo *MockOutboxRepository) {
	outboxRepo.On("NextBlockNumber", mock.Anything, mock.Anything).Return(int64(1), nil)
	outboxRepo.On("SaveEvent", mock.Anything, mock.Anything, mock.AnythingOfType("*events.OutboxEvent")).Return(nil)
}

func TestDelegationService_Authorize(t *testing.T) {
	tokenID := int64(5)

	t.Run("owner grants a new address", func(t *testing.T) {
		svc, grantRepo, itemRepo, outboxRepo := newTestService()
		itemRepo.On("GetItemForUpdate", mock.Anything, mock.Anything, tokenID).Return(&items.Item{
			TokenID: tokenID,
			Owner:   ownerAddr,
		}, nil)
		grantRepo.On("InsertGrant", mock.Anything, mock.Anything, mock.AnythingOfType("*delegation.Grant")).Return(true, nil)
		expectOutbox(outboxRepo)

		err := svc.Authorize(context.Background(), ownerAddr, tokenID, granteeAddr)
		assert.NoError(t, err)
		grantRepo.AssertExpectations(t)
		outboxRepo.AssertExpectations(t)
	})

	t.Run("re-granting is a silent no-op", func(t *testing.T) {
		svc, grantRepo, itemRepo, outboxRepo := newTestService()
		itemRepo.On("GetItemForUpdate", mock.Anything, mock.Anything, tokenID).Return(&items.Item{
			TokenID: tokenID,
			Owner:   ownerAddr,
		}, nil)
		grantRepo.On("InsertGrant", mock.Anything, mock.Anything, mock.AnythingOfType("*delegation.Grant")).Return(false, nil)

		err := svc.Authorize(context.Background(), ownerAddr, tokenID, granteeAddr)
		assert.NoError(t, err)
		// No event is emitted when nothing changed.
		outboxRepo.AssertNotCalled(t, "SaveEvent", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects the zero address grantee", func(t *testing.T) {
		svc, _, _, _ := newTestService()
		err := svc.Authorize(context.Background(), ownerAddr, tokenID, ledger.ZeroAddress)
		assert.ErrorIs(t, err, ErrInvalidGrantee)
	})

	t.Run("rejects a non-owner caller", func(t *testing.T) {
		svc, _, itemRepo, _ := newTestService()
		itemRepo.On("GetItemForUpdate", mock.Anything, mock.Anything, tokenID).Return(&items.Item{
			TokenID: tokenID,
			Owner:   ownerAddr,
		}, nil)

		err := svc.Authorize(context.Background(), strangerAddr, tokenID, granteeAddr)
		assert.ErrorIs(t, err, ErrNotOwner)
	})
}

func TestDelegationService_Revoke(t *testing.T) {
	tokenID := int64(5)

	t.Run("owner revokes a standing grant", func(t *testing.T) {
		svc, grantRepo, itemRepo, outboxRepo := newTestService()
		itemRepo.On("GetItemForUpdate", mock.Anything, mock.Anything, tokenID).Return(&items.Item{
			TokenID: tokenID,
			Owner:   ownerAddr,
		}, nil)
		grantRepo.On("DeleteGrant", mock.Anything, mock.Anything, tokenID, granteeAddr).Return(true, nil)
		expectOutbox(outboxRepo)

		err := svc.Revoke(context.Background(), ownerAddr, tokenID, granteeAddr)
		assert.NoError(t, err)
		outboxRepo.AssertExpectations(t)
	})

	t.Run("revoking an absent grant is a tolerated no-op", func(t *testing.T) {
		svc, grantRepo, itemRepo, outboxRepo := newTestService()
		itemRepo.On("GetItemForUpdate", mock.Anything, mock.Anything, tokenID).Return(&items.Item{
			TokenID: tokenID,
			Owner:   ownerAddr,
		}, nil)
		grantRepo.On("DeleteGrant", mock.Anything, mock.Anything, tokenID, granteeAddr).Return(false, nil)

		err := svc.Revoke(context.Background(), ownerAddr, tokenID, granteeAddr)
		assert.NoError(t, err)
		outboxRepo.AssertNotCalled(t, "SaveEvent", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects a non-owner caller", func(t *testing.T) {
		svc, _, itemRepo, _ := newTestService()
		itemRepo.On("GetItemForUpdate", mock.Anything, mock.Anything, tokenID).Return(&items.Item{
			TokenID: tokenID,
			Owner:   ownerAddr,
		}, nil)

		err := svc.Revoke(context.Background(), strangerAddr, tokenID, granteeAddr)
		assert.ErrorIs(t, err, ErrNotOwner)
	})
}

func TestDelegationService_IsAuthorized(t *testing.T) {
	tokenID := int64(5)

	tests := []struct {
		name      string
		address   common.Address
		setupMock func(*MockGrantRepository, *MockItemRepository)
		want      bool
	}{
		{
			name:    "owner is always authorized",
			address: ownerAddr,
			setupMock: func(grantRepo *MockGrantRepository, itemRepo *MockItemRepository) {
				itemRepo.On("GetItem", mock.Anything, tokenID).Return(&items.Item{
					TokenID: tokenID,
					Owner:   ownerAddr,
				}, nil)
			},
			want: true,
		},
		{
			name:    "grantee is authorized",
			address: granteeAddr,
			setupMock: func(grantRepo *MockGrantRepository, itemRepo *MockItemRepository) {
				itemRepo.On("GetItem", mock.Anything, tokenID).Return(&items.Item{
					TokenID: tokenID,
					Owner:   ownerAddr,
				}, nil)
				grantRepo.On("IsGranted", mock.Anything, tokenID, granteeAddr).Return(true, nil)
			},
			want: true,
		},
		{
			name:    "stranger is not authorized",
			address: strangerAddr,
			setupMock: func(grantRepo *MockGrantRepository, itemRepo *MockItemRepository) {
				itemRepo.On("GetItem", mock.Anything, tokenID).Return(&items.Item{
					TokenID: tokenID,
					Owner:   ownerAddr,
				}, nil)
				grantRepo.On("IsGranted", mock.Anything, tokenID, strangerAddr).Return(false, nil)
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, grantRepo, itemRepo, _ := newTestService()
			tt.setupMock(grantRepo, itemRepo)

			got, err := svc.IsAuthorized(context.Background(), tokenID, tt.address)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)

			grantRepo.AssertExpectations(t)
			itemRepo.AssertExpectations(t)
		})
	}
}
