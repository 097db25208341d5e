package exchange

import (
	"errors"
	"fmt"

	"github.com/cardforge/cardforge/internal/gateways/database/models"
)

// Class groups errors by how a caller is expected to react to them.
type Class int

const (
	// ClassValidation errors are surfaced verbatim and never retried.
	ClassValidation Class = iota + 1
	// ClassConflict means the caller lost a race and must refetch before deciding again.
	ClassConflict
	// ClassExhaustion means a balance was too small.
	ClassExhaustion
)

func (c Class) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassConflict:
		return "conflict"
	case ClassExhaustion:
		return "exhaustion"
	}
	return "unknown"
}

// Error is a typed exchange error. Two errors match under errors.Is when
// their codes match, so wrapped instances compare equal to the sentinels below.
type Error struct {
	Class   Class
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func newError(class Class, code, message string) *Error {
	return &Error{Class: class, Code: code, Message: message}
}

var (
	ErrNotFound      = newError(ClassValidation, "NOT_FOUND", "not found")
	ErrNotOwned      = newError(ClassValidation, "NOT_OWNED", "card is not owned by this account")
	ErrAlreadyLocked = newError(ClassValidation, "ALREADY_LOCKED", "card is already engaged in a listing or trade")
	ErrSelfTrade     = newError(ClassValidation, "SELF_TRADE", "cannot trade with yourself")
	ErrBidTooLow     = newError(ClassValidation, "BID_TOO_LOW", "bid is below the minimum")
	ErrAuctionClosed = newError(ClassValidation, "AUCTION_CLOSED", "auction is closed")
	ErrExpired       = newError(ClassValidation, "EXPIRED", "offer has expired")
	ErrWrongType     = newError(ClassValidation, "WRONG_TYPE", "operation not valid for this listing type")
	ErrForbidden     = newError(ClassValidation, "FORBIDDEN", "requester is not allowed to perform this operation")
	ErrInvalid       = newError(ClassValidation, "INVALID", "invalid request")

	ErrBidSuperseded          = newError(ClassConflict, "BID_SUPERSEDED", "a concurrent bid was accepted first")
	ErrTradeInvalidated       = newError(ClassConflict, "TRADE_INVALIDATED", "trade can no longer be honoured")
	ErrAlreadyFinalized       = newError(ClassConflict, "ALREADY_FINALIZED", "already finalized")
	ErrConcurrentModification = newError(ClassConflict, "CONCURRENT_MODIFICATION", "state changed concurrently")

	ErrInsufficientFunds = newError(ClassExhaustion, "INSUFFICIENT_FUNDS", "insufficient funds")
)

// Wrap returns a copy of a sentinel with a more specific message.
func Wrap(sentinel *Error, format string, args ...any) *Error {
	return &Error{Class: sentinel.Class, Code: sentinel.Code, Message: fmt.Sprintf(format, args...)}
}

// InsufficientFundsError carries the amounts the UI needs to explain a
// rejected purchase, bid or trade.
type InsufficientFundsError struct {
	AccountID string
	Currency  models.Currency
	Required  uint64
	Available uint64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient %s: %d required, %d available", e.Currency, e.Required, e.Available)
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// BidTooLowError carries the minimum acceptable bid.
type BidTooLowError struct {
	Minimum uint64
	Amount  uint64
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid of %d is below the minimum of %d", e.Amount, e.Minimum)
}

func (e *BidTooLowError) Is(target error) bool {
	return target == ErrBidTooLow
}

// TradeInvalidatedError explains why an accept could not be honoured.
type TradeInvalidatedError struct {
	TradeID string
	Reason  error
}

func (e *TradeInvalidatedError) Error() string {
	return fmt.Sprintf("trade %s invalidated: %v", e.TradeID, e.Reason)
}

func (e *TradeInvalidatedError) Is(target error) bool {
	return target == ErrTradeInvalidated
}

func (e *TradeInvalidatedError) Unwrap() error {
	return e.Reason
}

// ClassOf reports the class of err, or zero for errors outside the taxonomy.
func ClassOf(err error) Class {
	switch {
	case errors.Is(err, ErrTradeInvalidated), errors.Is(err, ErrBidSuperseded):
		return ClassConflict
	case errors.Is(err, ErrInsufficientFunds):
		return ClassExhaustion
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return 0
}

// CodeOf reports the machine-readable code of err.
func CodeOf(err error) string {
	switch {
	case errors.Is(err, ErrTradeInvalidated):
		return ErrTradeInvalidated.Code
	case errors.Is(err, ErrInsufficientFunds):
		return ErrInsufficientFunds.Code
	case errors.Is(err, ErrBidTooLow):
		return ErrBidTooLow.Code
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
