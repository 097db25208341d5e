package messaging

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/cardforge/cardforge/internal/domain/exchange"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	event := exchange.Event{Type: exchange.EventListingSold, ListingID: "l1", AccountID: "seller", Amount: 100, Currency: "gold", OccurredAt: at}

	data, err := Encode("cardforge", event)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, "listing.sold", env.EventType)
	assert.Equal(t, "cardforge", env.Source)
	assert.NotEmpty(t, env.EventID)
	assert.True(t, at.Equal(env.Timestamp))

	var got exchange.Event
	require.NoError(t, json.Unmarshal(env.Payload, &got))
	assert.Equal(t, event.ListingID, got.ListingID)
	assert.Equal(t, event.Amount, got.Amount)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "exchange.trade.expired", Subject(exchange.EventTradeExpired))
}
