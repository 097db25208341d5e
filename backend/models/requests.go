package models

type CreateListingRequest struct {
	CardInstanceID  string `json:"card_instance_id"`
	Type            string `json:"type"`
	Price           uint64 `json:"price"`
	Currency        string `json:"currency"`
	DurationHours   int    `json:"duration_hours"`
	MinBidIncrement uint64 `json:"min_bid_increment"`
}

type PlaceBidRequest struct {
	Amount uint64 `json:"amount"`
}

type CreateTradeRequest struct {
	ReceiverID      string   `json:"receiver_id"`
	SenderCardIDs   []string `json:"sender_card_ids"`
	SenderGold      uint64   `json:"sender_gold"`
	ReceiverCardIDs []string `json:"receiver_card_ids"`
	ReceiverGold    uint64   `json:"receiver_gold"`
	Message         string   `json:"message"`
}

type RespondTradeRequest struct {
	Action string `json:"action"`
}
