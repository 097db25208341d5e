package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/cardforge/cardforge/internal/domain/exchange"
	"github.com/cardforge/cardforge/internal/gateways/database/models"
)

type listingRepository struct {
	db bun.IDB
}

var _ exchange.ListingRepository = (*listingRepository)(nil)

func NewListingRepository(db bun.IDB) exchange.ListingRepository {
	return &listingRepository{db: db}
}

func (r *listingRepository) Create(ctx context.Context, listing *models.Listing) error {
	if _, err := r.db.NewInsert().Model(listing).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}
	return nil
}

func (r *listingRepository) Get(ctx context.Context, id string) (*models.Listing, error) {
	listing := new(models.Listing)
	err := r.db.NewSelect().
		Model(listing).
		Relation("Card").
		Relation("Card.Definition").
		Where("l.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "listing", id, "get listing")
	}
	return listing, nil
}

// GetForUpdate locks the listing row. The card relation is left out because
// FOR UPDATE cannot lock the nullable side of an outer join.
func (r *listingRepository) GetForUpdate(ctx context.Context, id string) (*models.Listing, error) {
	listing := new(models.Listing)
	err := r.db.NewSelect().
		Model(listing).
		Where("l.id = ?", id).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "listing", id, "get listing for update")
	}
	return listing, nil
}

func (r *listingRepository) Update(ctx context.Context, listing *models.Listing) error {
	prev := listing.Version
	listing.Version++

	res, err := r.db.NewUpdate().
		Model(listing).
		Column("status", "buyer_id", "current_bid", "high_bidder_id", "bid_count", "version", "updated_at").
		WherePK().
		Where("l.version = ?", prev).
		Exec(ctx)
	if err != nil {
		listing.Version = prev
		return fmt.Errorf("failed to update listing: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		listing.Version = prev
		return exchange.Wrap(exchange.ErrConcurrentModification, "listing %s was modified concurrently", listing.ID)
	}
	return nil
}

func (r *listingRepository) CompareAndSwapBid(ctx context.Context, listing *models.Listing, expectedVersion int64) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*models.Listing)(nil)).
		Set("current_bid = ?", listing.CurrentBid).
		Set("high_bidder_id = ?", listing.HighBidderID).
		Set("bid_count = ?", listing.BidCount).
		Set("updated_at = ?", listing.UpdatedAt).
		Set("version = version + 1").
		Where("l.id = ?", listing.ID).
		Where("l.version = ?", expectedVersion).
		Where("l.status = ?", models.ListingActive).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to swap bid: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return false, nil
	}
	listing.Version = expectedVersion + 1
	return true, nil
}

func (r *listingRepository) AppendBid(ctx context.Context, bid *models.ListingBid) error {
	_, err := r.db.NewInsert().
		Model(bid).
		Returning("id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create bid: %w", err)
	}
	return nil
}

// ExpiredIDs skips rows another sweeper or a buyer currently holds.
func (r *listingRepository) ExpiredIDs(ctx context.Context, now time.Time, limit int) ([]string, error) {
	var ids []string
	q := r.db.NewSelect().
		Model((*models.Listing)(nil)).
		Column("l.id").
		Where("l.status = ?", models.ListingActive).
		Where("l.expires_at < ?", now).
		Order("l.expires_at ASC").
		For("UPDATE SKIP LOCKED")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx, &ids); err != nil {
		return nil, fmt.Errorf("failed to get expired listings: %w", err)
	}
	return ids, nil
}

func (r *listingRepository) Search(ctx context.Context, filter exchange.ListingFilter) ([]*models.Listing, int, error) {
	var listings []*models.Listing
	q := r.db.NewSelect().
		Model(&listings).
		Relation("Card").
		Relation("Card.Definition")

	if filter.Status != "" {
		q = q.Where("l.status = ?", filter.Status)
	}
	if filter.Type != "" {
		q = q.Where("l.type = ?", filter.Type)
	}
	if filter.SellerID != "" {
		q = q.Where("l.seller_id = ?", filter.SellerID)
	}
	if !filter.ActiveAt.IsZero() {
		q = q.Where("l.expires_at > ?", filter.ActiveAt)
	}
	if filter.Rarity != "" {
		q = q.Where("card__definition.rarity = ?", filter.Rarity)
	}

	q = q.OrderExpr("l.created_at DESC, l.id ASC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search listings: %w", err)
	}
	return listings, total, nil
}
