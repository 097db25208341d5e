package trades

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"unicode/utf8"

	"github.com/cardforge/cardforge/internal/domain/exchange"
	"github.com/cardforge/cardforge/internal/domain/inventory"
	"github.com/cardforge/cardforge/internal/domain/ledger"
	"github.com/cardforge/cardforge/internal/domain/settlement"
	"github.com/cardforge/cardforge/internal/gateways/database/models"
)

type Action string

const (
	ActionAccept  Action = "accept"
	ActionDecline Action = "decline"
)

type CreateOfferRequest struct {
	SenderID        string
	ReceiverID      string
	SenderCardIDs   []string
	SenderGold      uint64
	ReceiverCardIDs []string
	ReceiverGold    uint64
	Message         string
}

func (s *Service) validateCreate(req CreateOfferRequest) error {
	if req.SenderID == "" || req.ReceiverID == "" {
		return exchange.Wrap(exchange.ErrInvalid, "sender and receiver are required")
	}
	if req.SenderID == req.ReceiverID {
		return exchange.Wrap(exchange.ErrSelfTrade, "cannot trade with yourself")
	}
	if len(req.SenderCardIDs) == 0 && len(req.ReceiverCardIDs) == 0 && req.SenderGold == req.ReceiverGold {
		return exchange.Wrap(exchange.ErrInvalid, "trade offer is empty")
	}
	if len(req.SenderCardIDs) > s.settings.MaxCardsPerSide || len(req.ReceiverCardIDs) > s.settings.MaxCardsPerSide {
		return exchange.Wrap(exchange.ErrInvalid, "at most %d cards per side", s.settings.MaxCardsPerSide)
	}
	if req.SenderGold > math.MaxInt64 || req.ReceiverGold > math.MaxInt64 {
		return exchange.Wrap(exchange.ErrInvalid, "gold amount out of range")
	}
	if utf8.RuneCountInString(req.Message) > MaxMessageRunes {
		return exchange.Wrap(exchange.ErrInvalid, "message is longer than %d characters", MaxMessageRunes)
	}

	seen := make(map[string]struct{}, len(req.SenderCardIDs)+len(req.ReceiverCardIDs))
	for _, id := range slices.Concat(req.SenderCardIDs, req.ReceiverCardIDs) {
		if id == "" {
			return exchange.Wrap(exchange.ErrInvalid, "empty card id")
		}
		if _, dup := seen[id]; dup {
			return exchange.Wrap(exchange.ErrInvalid, "card %s appears more than once", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Create escrows the sender's cards and opens a pending offer. The
// receiver's cards are checked but not locked.
func (s *Service) Create(ctx context.Context, req CreateOfferRequest) (*models.TradeOffer, error) {
	if err := s.validateCreate(req); err != nil {
		return nil, err
	}

	now := s.now()
	offer := &models.TradeOffer{
		ID:              s.newID(),
		SenderID:        req.SenderID,
		ReceiverID:      req.ReceiverID,
		SenderCardIDs:   slices.Clone(req.SenderCardIDs),
		SenderGold:      req.SenderGold,
		ReceiverCardIDs: slices.Clone(req.ReceiverCardIDs),
		ReceiverGold:    req.ReceiverGold,
		Message:         req.Message,
		Status:          models.TradePending,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.settings.Lifetime),
		UpdatedAt:       now,
	}
	if offer.SenderCardIDs == nil {
		offer.SenderCardIDs = []string{}
	}
	if offer.ReceiverCardIDs == nil {
		offer.ReceiverCardIDs = []string{}
	}

	err := s.uow.Do(ctx, func(ctx context.Context, st exchange.Stores) error {
		if _, err := st.Accounts().Get(ctx, req.ReceiverID); err != nil {
			return err
		}

		// Receiver cards are neither locked nor checked here; accept
		// re-validates them.
		cards := inventory.New(st.Cards())
		if len(offer.SenderCardIDs) > 0 {
			if err := cards.Lock(ctx, req.SenderID, models.TradeHold(offer.ID), offer.SenderCardIDs...); err != nil {
				return err
			}
		}

		balance, err := ledger.New(st.Accounts()).GetBalance(ctx, req.SenderID, models.CurrencyGold)
		if err != nil {
			return err
		}
		if balance < req.SenderGold {
			return &exchange.InsufficientFundsError{
				AccountID: req.SenderID,
				Currency:  models.CurrencyGold,
				Required:  req.SenderGold,
				Available: balance,
			}
		}

		if err := st.Trades().Create(ctx, offer); err != nil {
			return fmt.Errorf("failed to create trade offer: %w", err)
		}
		st.Publish(exchange.Event{
			Type:           exchange.EventTradeCreated,
			AccountID:      offer.ReceiverID,
			CounterpartyID: offer.SenderID,
			TradeID:        offer.ID,
			OccurredAt:     now,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Trade offer created",
		slog.String("type", "rpc"),
		slog.String("trade_id", offer.ID),
		slog.String("sender_id", offer.SenderID),
		slog.String("receiver_id", offer.ReceiverID),
		slog.Int("sender_cards", len(offer.SenderCardIDs)),
		slog.Int("receiver_cards", len(offer.ReceiverCardIDs)))

	return offer, nil
}

// Respond lets the receiver accept or decline a pending offer. An accept
// that can no longer be honoured fails with a TradeInvalidatedError and
// leaves the offer pending.
func (s *Service) Respond(ctx context.Context, tradeID, receiverID string, action Action) (*models.TradeOffer, error) {
	if action != ActionAccept && action != ActionDecline {
		return nil, exchange.Wrap(exchange.ErrInvalid, "action must be accept or decline")
	}

	var result *models.TradeOffer
	err := s.uow.Do(ctx, func(ctx context.Context, st exchange.Stores) error {
		offer, err := st.Trades().GetForUpdate(ctx, tradeID)
		if err != nil {
			return err
		}

		now := s.now()
		switch {
		case offer.ReceiverID != receiverID:
			return exchange.Wrap(exchange.ErrForbidden, "only the receiver can respond to trade %s", tradeID)
		case offer.Status != models.TradePending:
			return exchange.Wrap(exchange.ErrAlreadyFinalized, "trade %s is %s", tradeID, offer.Status)
		case offer.ExpiredAt(now):
			return exchange.Wrap(exchange.ErrExpired, "trade %s has expired", tradeID)
		}

		if action == ActionDecline {
			if err := inventory.New(st.Cards()).Unlock(ctx, models.TradeHold(offer.ID), offer.SenderCardIDs...); err != nil {
				return err
			}
			offer.Status = models.TradeDeclined
		} else {
			if err := s.accept(ctx, st, offer); err != nil {
				return err
			}
			offer.Status = models.TradeAccepted
		}

		offer.UpdatedAt = now
		if err := st.Trades().Update(ctx, offer); err != nil {
			return fmt.Errorf("failed to update trade offer: %w", err)
		}
		st.Publish(exchange.Event{
			Type:           exchange.EventTradeResponded,
			AccountID:      offer.SenderID,
			CounterpartyID: offer.ReceiverID,
			TradeID:        offer.ID,
			Outcome:        string(offer.Status),
			OccurredAt:     now,
		})
		result = offer
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Trade offer answered",
		slog.String("type", "rpc"),
		slog.String("trade_id", tradeID),
		slog.String("status", string(result.Status)))

	return result, nil
}

func (s *Service) accept(ctx context.Context, st exchange.Stores, offer *models.TradeOffer) error {
	invalid := func(reason error) error {
		return &exchange.TradeInvalidatedError{TradeID: offer.ID, Reason: reason}
	}

	hold := models.TradeHold(offer.ID)
	ids := slices.Concat(offer.SenderCardIDs, offer.ReceiverCardIDs)
	if len(ids) > 0 {
		current, err := inventory.New(st.Cards()).GetOwnership(ctx, ids...)
		if errors.Is(err, exchange.ErrNotFound) {
			return invalid(exchange.Wrap(exchange.ErrNotOwned, "%v", err))
		}
		if err != nil {
			return fmt.Errorf("failed to load trade cards: %w", err)
		}
		byID := make(map[string]*models.CardInstance, len(current))
		for _, card := range current {
			byID[card.ID] = card
		}
		for _, id := range offer.SenderCardIDs {
			card, ok := byID[id]
			if !ok || card.OwnerID != offer.SenderID || !card.HeldBy(hold) {
				return invalid(exchange.Wrap(exchange.ErrNotOwned, "sender no longer holds card %s", id))
			}
		}
		for _, id := range offer.ReceiverCardIDs {
			card, ok := byID[id]
			if !ok || card.OwnerID != offer.ReceiverID {
				return invalid(exchange.Wrap(exchange.ErrNotOwned, "receiver no longer owns card %s", id))
			}
			if card.Locked {
				return invalid(exchange.Wrap(exchange.ErrAlreadyLocked, "card %s is engaged in a %s", id, card.LockKind))
			}
		}
	}

	funds := ledger.New(st.Accounts())
	for _, side := range []struct {
		account string
		amount  uint64
	}{
		{offer.SenderID, offer.SenderGold},
		{offer.ReceiverID, offer.ReceiverGold},
	} {
		balance, err := funds.GetBalance(ctx, side.account, models.CurrencyGold)
		if err != nil {
			return invalid(err)
		}
		if balance < side.amount {
			return invalid(&exchange.InsufficientFundsError{
				AccountID: side.account,
				Currency:  models.CurrencyGold,
				Required:  side.amount,
				Available: balance,
			})
		}
	}

	_, err := s.settler.Settle(ctx, st, swapPlan(offer))
	if errors.Is(err, exchange.ErrNotOwned) || errors.Is(err, exchange.ErrInsufficientFunds) {
		return invalid(err)
	}
	return err
}

func swapPlan(offer *models.TradeOffer) settlement.Plan {
	plan := settlement.Plan{
		Source:   models.SourceTrade,
		SourceID: offer.ID,
		PartyA:   offer.SenderID,
		PartyB:   offer.ReceiverID,
	}
	hold := models.TradeHold(offer.ID)
	for _, id := range offer.SenderCardIDs {
		plan.Transfers = append(plan.Transfers, settlement.Transfer{CardInstanceID: id, FromID: offer.SenderID, ToID: offer.ReceiverID, Hold: hold})
	}
	for _, id := range offer.ReceiverCardIDs {
		plan.Transfers = append(plan.Transfers, settlement.Transfer{CardInstanceID: id, FromID: offer.ReceiverID, ToID: offer.SenderID})
	}

	// Only the net gold difference moves.
	if net := int64(offer.ReceiverGold) - int64(offer.SenderGold); net != 0 {
		plan.Adjustments = []settlement.Adjustment{
			{AccountID: offer.SenderID, Currency: models.CurrencyGold, Delta: net},
			{AccountID: offer.ReceiverID, Currency: models.CurrencyGold, Delta: -net},
		}
	}
	return plan
}

// Cancel withdraws a pending offer on behalf of its sender.
func (s *Service) Cancel(ctx context.Context, tradeID, senderID string) (*models.TradeOffer, error) {
	var result *models.TradeOffer
	err := s.uow.Do(ctx, func(ctx context.Context, st exchange.Stores) error {
		offer, err := st.Trades().GetForUpdate(ctx, tradeID)
		if err != nil {
			return err
		}
		if offer.SenderID != senderID {
			return exchange.Wrap(exchange.ErrForbidden, "only the sender can cancel trade %s", tradeID)
		}
		if offer.Status != models.TradePending {
			return exchange.Wrap(exchange.ErrAlreadyFinalized, "trade %s is %s", tradeID, offer.Status)
		}

		if err := inventory.New(st.Cards()).Unlock(ctx, models.TradeHold(offer.ID), offer.SenderCardIDs...); err != nil {
			return err
		}

		now := s.now()
		offer.Status = models.TradeCancelled
		offer.UpdatedAt = now
		if err := st.Trades().Update(ctx, offer); err != nil {
			return fmt.Errorf("failed to cancel trade offer: %w", err)
		}
		st.Publish(exchange.Event{
			Type:           exchange.EventTradeCancelled,
			AccountID:      offer.ReceiverID,
			CounterpartyID: offer.SenderID,
			TradeID:        offer.ID,
			OccurredAt:     now,
		})
		result = offer
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Expire closes a pending offer past its deadline and releases the escrow.
// It reports false when there was nothing to do.
func (s *Service) Expire(ctx context.Context, tradeID string) (bool, error) {
	var expired bool
	err := s.uow.Do(ctx, func(ctx context.Context, st exchange.Stores) error {
		offer, err := st.Trades().GetForUpdate(ctx, tradeID)
		if err != nil {
			return err
		}
		now := s.now()
		if offer.Status != models.TradePending || !offer.ExpiredAt(now) {
			return nil
		}

		if err := inventory.New(st.Cards()).Unlock(ctx, models.TradeHold(offer.ID), offer.SenderCardIDs...); err != nil {
			return err
		}
		offer.Status = models.TradeExpired
		offer.UpdatedAt = now
		if err := st.Trades().Update(ctx, offer); err != nil {
			return fmt.Errorf("failed to expire trade offer: %w", err)
		}
		for _, account := range []string{offer.SenderID, offer.ReceiverID} {
			st.Publish(exchange.Event{
				Type:       exchange.EventTradeExpired,
				AccountID:  account,
				TradeID:    offer.ID,
				OccurredAt: now,
			})
		}
		expired = true
		return nil
	})
	return expired, err
}

func (s *Service) ExpiredIDs(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	err := s.uow.Do(ctx, func(ctx context.Context, st exchange.Stores) error {
		var err error
		ids, err = st.Trades().ExpiredIDs(ctx, s.now(), limit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan expired trades: %w", err)
	}
	return ids, nil
}
