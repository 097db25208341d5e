package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cardforge/cardforge/internal/domain/exchange"
)

// LogHandler writes a one-line notification per event.
func LogHandler(_ context.Context, event exchange.Event) error {
	slog.Info(message(event),
		slog.String("type", "notify"),
		slog.String("event", string(event.Type)),
		slog.String("account_id", event.AccountID))
	return nil
}

func message(e exchange.Event) string {
	switch e.Type {
	case exchange.EventListingCreated:
		return fmt.Sprintf("[LISTED] listing %s is live", e.ListingID)
	case exchange.EventListingSold:
		return fmt.Sprintf("[SOLD] listing %s sold to %s for %d %s", e.ListingID, e.CounterpartyID, e.Amount, e.Currency)
	case exchange.EventListingOutbid:
		return fmt.Sprintf("[OUTBID] %s was outbid on listing %s by %s with %d %s", e.AccountID, e.ListingID, e.CounterpartyID, e.Amount, e.Currency)
	case exchange.EventListingExpired:
		if e.Outcome != "" {
			return fmt.Sprintf("[EXPIRED] listing %s ended: %s", e.ListingID, e.Outcome)
		}
		return fmt.Sprintf("[EXPIRED] listing %s ended without a sale", e.ListingID)
	case exchange.EventListingCancelled:
		return fmt.Sprintf("[CANCELLED] listing %s was withdrawn", e.ListingID)
	case exchange.EventTradeCreated:
		return fmt.Sprintf("[TRADE] %s sent a trade offer %s", e.CounterpartyID, e.TradeID)
	case exchange.EventTradeResponded:
		return fmt.Sprintf("[TRADE] offer %s was %s by %s", e.TradeID, e.Outcome, e.CounterpartyID)
	case exchange.EventTradeCancelled:
		return fmt.Sprintf("[TRADE] offer %s was cancelled by %s", e.TradeID, e.CounterpartyID)
	case exchange.EventTradeExpired:
		return fmt.Sprintf("[TRADE] offer %s expired", e.TradeID)
	}
	return string(e.Type)
}
