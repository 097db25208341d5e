package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/cardforge/cardforge/internal/domain/exchange"
	"github.com/cardforge/cardforge/internal/gateways/database/models"
)

type tradeRepository struct {
	db bun.IDB
}

var _ exchange.TradeRepository = (*tradeRepository)(nil)

func NewTradeRepository(db bun.IDB) exchange.TradeRepository {
	return &tradeRepository{db: db}
}

func (r *tradeRepository) Create(ctx context.Context, trade *models.TradeOffer) error {
	// array columns are NOT NULL
	if trade.SenderCardIDs == nil {
		trade.SenderCardIDs = []string{}
	}
	if trade.ReceiverCardIDs == nil {
		trade.ReceiverCardIDs = []string{}
	}
	if _, err := r.db.NewInsert().Model(trade).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create trade: %w", err)
	}
	return nil
}

func (r *tradeRepository) Get(ctx context.Context, id string) (*models.TradeOffer, error) {
	trade := &models.TradeOffer{ID: id}
	if err := r.db.NewSelect().Model(trade).WherePK().Scan(ctx); err != nil {
		return nil, notFound(err, "trade", id, "get trade")
	}
	return trade, nil
}

func (r *tradeRepository) GetForUpdate(ctx context.Context, id string) (*models.TradeOffer, error) {
	trade := &models.TradeOffer{ID: id}
	err := r.db.NewSelect().
		Model(trade).
		WherePK().
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "trade", id, "get trade for update")
	}
	return trade, nil
}

func (r *tradeRepository) Update(ctx context.Context, trade *models.TradeOffer) error {
	res, err := r.db.NewUpdate().
		Model(trade).
		Column("status", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update trade: %w", err)
	}
	return mustAffect(res, "trade", trade.ID)
}

func (r *tradeRepository) ExpiredIDs(ctx context.Context, now time.Time, limit int) ([]string, error) {
	var ids []string
	q := r.db.NewSelect().
		Model((*models.TradeOffer)(nil)).
		Column("t.id").
		Where("t.status = ?", models.TradePending).
		Where("t.expires_at < ?", now).
		Order("t.expires_at ASC").
		For("UPDATE SKIP LOCKED")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx, &ids); err != nil {
		return nil, fmt.Errorf("failed to get expired trades: %w", err)
	}
	return ids, nil
}

func (r *tradeRepository) ListForAccount(ctx context.Context, filter exchange.TradeFilter) ([]*models.TradeOffer, int, error) {
	var trades []*models.TradeOffer
	q := r.db.NewSelect().Model(&trades)

	switch filter.Role {
	case exchange.RoleSender:
		q = q.Where("t.sender_id = ?", filter.AccountID)
	case exchange.RoleReceiver:
		q = q.Where("t.receiver_id = ?", filter.AccountID)
	default:
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("t.sender_id = ?", filter.AccountID).
				WhereOr("t.receiver_id = ?", filter.AccountID)
		})
	}
	if filter.Status != "" {
		q = q.Where("t.status = ?", filter.Status)
	}

	q = q.OrderExpr("t.created_at DESC, t.id ASC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list trades: %w", err)
	}
	return trades, total, nil
}
