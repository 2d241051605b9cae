package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mwynne/curio/internal/domain/auctions"
	pkgdb "github.com/mwynne/curio/pkg/database"
)

// PostgresAuctionRepository implements auctions.AuctionRepository using pgx
type PostgresAuctionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresAuctionRepository creates a new PostgreSQL auction repository
func NewPostgresAuctionRepository(pool *pgxpool.Pool) *PostgresAuctionRepository {
	return &PostgresAuctionRepository{pool: pool}
}

const auctionColumns = `id, token_id, seller_address, start_price, highest_bid, highest_bidder, bid_count, start_time, end_time, is_active, created_at, settled_at`

// CreateAuction inserts a new auction. The partial unique index on active
// auctions backstops the service-level single-auction check.
func (r *PostgresAuctionRepository) CreateAuction(ctx context.Context, tx pgx.Tx, auction *auctions.Auction) error {
	query := `
		INSERT INTO auctions (id, token_id, seller_address, start_price, highest_bid, highest_bidder, bid_count, start_time, end_time, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := tx.Exec(ctx, query,
		auction.ID,
		auction.TokenID,
		auction.Seller.Hex(),
		auction.StartPrice,
		auction.HighestBid,
		auction.HighestBidder.Hex(),
		auction.BidCount,
		auction.StartTime,
		auction.EndTime,
		auction.IsActive,
		auction.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert auction: %w", err)
	}
	return nil
}

// GetByID retrieves an auction by its id
func (r *PostgresAuctionRepository) GetByID(ctx context.Context, auctionID uuid.UUID) (*auctions.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`
	auction, err := scanAuction(r.pool.QueryRow(ctx, query, auctionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auctions.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return auction, nil
}

// GetActiveByToken retrieves the active auction for a token (non-transactional read)
func (r *PostgresAuctionRepository) GetActiveByToken(ctx context.Context, tokenID int64) (*auctions.Auction, error) {
	return r.getActiveByToken(ctx, r.pool, tokenID, false)
}

// GetActiveByTokenForUpdate retrieves the active auction for a token and locks its row
func (r *PostgresAuctionRepository) GetActiveByTokenForUpdate(ctx context.Context, tx pgx.Tx, tokenID int64) (*auctions.Auction, error) {
	return r.getActiveByToken(ctx, tx, tokenID, true)
}

func (r *PostgresAuctionRepository) getActiveByToken(ctx context.Context, db pkgdb.DBTX, tokenID int64, forUpdate bool) (*auctions.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE token_id = $1 AND is_active`
	if forUpdate {
		query += " FOR UPDATE"
	}

	auction, err := scanAuction(db.QueryRow(ctx, query, tokenID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auctions.ErrAuctionNotActive
		}
		return nil, fmt.Errorf("failed to get active auction: %w", err)
	}
	return auction, nil
}

// HasActiveAuction reports whether a token has an active auction
func (r *PostgresAuctionRepository) HasActiveAuction(ctx context.Context, tx pgx.Tx, tokenID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM auctions WHERE token_id = $1 AND is_active)`
	var exists bool
	if err := tx.QueryRow(ctx, query, tokenID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check active auction: %w", err)
	}
	return exists, nil
}

// ListActive retrieves all active auctions, soonest-ending first
func (r *PostgresAuctionRepository) ListActive(ctx context.Context) ([]*auctions.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE is_active ORDER BY end_time`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active auctions: %w", err)
	}
	defer rows.Close()

	var result []*auctions.Auction
	for rows.Next() {
		auction, scanErr := scanAuction(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", scanErr)
		}
		result = append(result, auction)
	}
	return result, rows.Err()
}

// UpdateHighestBid records an accepted bid on the auction row
func (r *PostgresAuctionRepository) UpdateHighestBid(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID, amount int64, bidder common.Address, bidCount int) error {
	query := `
		UPDATE auctions
		SET highest_bid = $1, highest_bidder = $2, bid_count = $3
		WHERE id = $4 AND is_active
	`
	result, err := tx.Exec(ctx, query, amount, bidder.Hex(), bidCount, auctionID)
	if err != nil {
		return fmt.Errorf("failed to update highest bid: %w", err)
	}
	if result.RowsAffected() == 0 {
		return auctions.ErrAuctionNotActive
	}
	return nil
}

// Settle deactivates the auction and stamps the settlement time
func (r *PostgresAuctionRepository) Settle(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID, settledAt time.Time) error {
	query := `
		UPDATE auctions
		SET is_active = FALSE, settled_at = $1
		WHERE id = $2 AND is_active
	`
	result, err := tx.Exec(ctx, query, settledAt, auctionID)
	if err != nil {
		return fmt.Errorf("failed to settle auction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return auctions.ErrAuctionNotActive
	}
	return nil
}

func scanAuction(row pgx.Row) (*auctions.Auction, error) {
	var auction auctions.Auction
	var seller, bidder string
	if err := row.Scan(
		&auction.ID,
		&auction.TokenID,
		&seller,
		&auction.StartPrice,
		&auction.HighestBid,
		&bidder,
		&auction.BidCount,
		&auction.StartTime,
		&auction.EndTime,
		&auction.IsActive,
		&auction.CreatedAt,
		&auction.SettledAt,
	); err != nil {
		return nil, err
	}
	auction.Seller = common.HexToAddress(seller)
	auction.HighestBidder = common.HexToAddress(bidder)
	return &auction, nil
}
