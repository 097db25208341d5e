package utils

import (
	"fmt"
	"regexp"

	"github.com/cardforge/cardforge/backend/models"
	dbmodels "github.com/cardforge/cardforge/internal/gateways/database/models"
)

// ValidIDRegex matches account, card and listing identifiers.
var ValidIDRegex = regexp.MustCompile(`^[a-zA-Z0-9\-_]{1,64}$`)

func ValidateCreateListingRequest(req *models.CreateListingRequest) []models.ValidationError {
	var errs []models.ValidationError

	if !ValidIDRegex.MatchString(req.CardInstanceID) {
		errs = append(errs, models.ValidationError{Field: "card_instance_id", Description: "Card instance ID is required"})
	}
	if !dbmodels.ListingType(req.Type).Valid() {
		errs = append(errs, models.ValidationError{Field: "type", Description: "Type must be fixed or auction"})
	}
	if req.Price == 0 {
		errs = append(errs, models.ValidationError{Field: "price", Description: "Price must be positive"})
	}
	if req.Currency != "" && !dbmodels.Currency(req.Currency).Valid() {
		errs = append(errs, models.ValidationError{Field: "currency", Description: "Currency must be gold or gems"})
	}
	if req.DurationHours < 0 {
		errs = append(errs, models.ValidationError{Field: "duration_hours", Description: "Duration cannot be negative"})
	}
	if req.Type == string(dbmodels.ListingFixed) && req.MinBidIncrement != 0 {
		errs = append(errs, models.ValidationError{Field: "min_bid_increment", Description: "Fixed-price listings take no bids"})
	}
	return errs
}

func ValidatePlaceBidRequest(req *models.PlaceBidRequest) []models.ValidationError {
	if req.Amount == 0 {
		return []models.ValidationError{{Field: "amount", Description: "Amount must be positive"}}
	}
	return nil
}

func ValidateCreateTradeRequest(req *models.CreateTradeRequest) []models.ValidationError {
	var errs []models.ValidationError

	if !ValidIDRegex.MatchString(req.ReceiverID) {
		errs = append(errs, models.ValidationError{Field: "receiver_id", Description: "Receiver ID is required"})
	}
	for i, id := range req.SenderCardIDs {
		if !ValidIDRegex.MatchString(id) {
			errs = append(errs, models.ValidationError{Field: fmt.Sprintf("sender_card_ids[%d]", i), Description: "Invalid card ID"})
		}
	}
	for i, id := range req.ReceiverCardIDs {
		if !ValidIDRegex.MatchString(id) {
			errs = append(errs, models.ValidationError{Field: fmt.Sprintf("receiver_card_ids[%d]", i), Description: "Invalid card ID"})
		}
	}
	return errs
}

func ValidateRespondTradeRequest(req *models.RespondTradeRequest) []models.ValidationError {
	switch req.Action {
	case "accept", "decline":
		return nil
	}
	return []models.ValidationError{{Field: "action", Description: "Action must be accept or decline"}}
}
