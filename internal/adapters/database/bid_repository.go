package database

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mwynne/curio/internal/domain/auctions"
)

// PostgresBidRepository implements auctions.BidRepository using pgx
type PostgresBidRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresBidRepository creates a new PostgreSQL bid repository
func NewPostgresBidRepository(pool *pgxpool.Pool) *PostgresBidRepository {
	return &PostgresBidRepository{pool: pool}
}

// SaveBid saves a bid within a transaction
func (r *PostgresBidRepository) SaveBid(ctx context.Context, tx pgx.Tx, bid *auctions.Bid) error {
	query := `
		INSERT INTO bids (id, auction_id, token_id, bidder_address, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.Exec(ctx, query,
		bid.ID,
		bid.AuctionID,
		bid.TokenID,
		bid.Bidder.Hex(),
		bid.Amount,
		bid.Status,
		bid.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

// MarkLeadingBid transitions the auction's leading bid to a new status.
// At most one bid per auction is ever leading, so this touches one row.
func (r *PostgresBidRepository) MarkLeadingBid(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID, status auctions.BidStatus) error {
	query := `
		UPDATE bids
		SET status = $1
		WHERE auction_id = $2 AND status = $3
	`
	result, err := tx.Exec(ctx, query, status, auctionID, auctions.BidStatusLeading)
	if err != nil {
		return fmt.Errorf("failed to update bid status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("no leading bid for auction %s", auctionID)
	}
	return nil
}

// ListByAuction retrieves all bids for an auction, oldest first
func (r *PostgresBidRepository) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*auctions.Bid, error) {
	query := `
		SELECT id, auction_id, token_id, bidder_address, amount, status, created_at
		FROM bids
		WHERE auction_id = $1
		ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	var bids []*auctions.Bid
	for rows.Next() {
		var bid auctions.Bid
		var bidder string
		if scanErr := rows.Scan(
			&bid.ID,
			&bid.AuctionID,
			&bid.TokenID,
			&bidder,
			&bid.Amount,
			&bid.Status,
			&bid.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", scanErr)
		}
		bid.Bidder = common.HexToAddress(bidder)
		bids = append(bids, &bid)
	}
	return bids, rows.Err()
}

// ListBidders retrieves the distinct bidder addresses for an auction in
// first-bid order
func (r *PostgresBidRepository) ListBidders(ctx context.Context, auctionID uuid.UUID) ([]common.Address, error) {
	query := `
		SELECT bidder_address
		FROM bids
		WHERE auction_id = $1
		GROUP BY bidder_address
		ORDER BY MIN(created_at)
	`
	rows, err := r.pool.Query(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bidders: %w", err)
	}
	defer rows.Close()

	var bidders []common.Address
	for rows.Next() {
		var bidder string
		if scanErr := rows.Scan(&bidder); scanErr != nil {
			return nil, fmt.Errorf("failed to scan bidder: %w", scanErr)
		}
		bidders = append(bidders, common.HexToAddress(bidder))
	}
	return bidders, rows.Err()
}
