package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel errors, compare with errors.Is()
// ──────────────────────────────────────────────────────────────────────────────

// Auction errors
var (
	// ErrAuctionNotFound is returned when no auction matches the given id.
	ErrAuctionNotFound = errors.New("auction not found")

	// ErrAuctionNotActive is returned when a bid targets an auction that is not
	// RUNNING or ENDING_SOON.
	ErrAuctionNotActive = errors.New("auction is not open for bidding")

	// ErrAuctionEnded is returned when the closing time has passed, even if the
	// stored status has not caught up yet.
	ErrAuctionEnded = errors.New("auction has ended")

	// ErrInvalidTransition is returned when an admin action asks for a state
	// change the transition table does not allow.
	ErrInvalidTransition = errors.New("auction state transition not allowed")

	// ErrSettlementAlreadyComplete signals an idempotent no-op: the auction was
	// settled by an earlier call.
	ErrSettlementAlreadyComplete = errors.New("settlement already complete")

	// ErrSettlementNotDue is returned when settlement is requested before the
	// closing time or for an auction that never ran.
	ErrSettlementNotDue = errors.New("auction is not due for settlement")

	// ErrInvalidAuction is returned when a create request fails validation.
	ErrInvalidAuction = errors.New("invalid auction")
)

// Bid errors
var (
	// ErrBidTooLow is the sentinel wrapped by *BidTooLowError.
	ErrBidTooLow = errors.New("bid amount is below the minimum")

	// ErrConflict is the sentinel wrapped by *ConflictError.
	ErrConflict = errors.New("bid lost to concurrent updates, retry budget exhausted")

	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("bid amount must be positive")
)

// Auth errors
var (
	// ErrUnauthorized is returned when a valid token is not present.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the caller may not perform the action.
	ErrForbidden = errors.New("forbidden")

	// ErrSelfBid is returned when the seller bids on their own auction.
	ErrSelfBid = fmt.Errorf("%w: sellers cannot bid on their own auction", ErrForbidden)

	// ErrTokenInvalid is returned when a token cannot be parsed or its signature
	// does not match.
	ErrTokenInvalid = errors.New("token is invalid")
)

// ──────────────────────────────────────────────────────────────────────────────
// Structured bid errors
// ──────────────────────────────────────────────────────────────────────────────

// BidTooLowError carries the minimum acceptable amount so the caller can retry
// without re-reading the auction.
type BidTooLowError struct {
	Minimum    decimal.Decimal
	CurrentBid decimal.Decimal
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("%s: minimum is %s", ErrBidTooLow, e.Minimum.String())
}

func (e *BidTooLowError) Unwrap() error { return ErrBidTooLow }

// ConflictError is returned when the bid stayed valid but every conditional
// write lost to a concurrent writer.
type ConflictError struct {
	Minimum    decimal.Decimal
	CurrentBid decimal.Decimal
	Attempts   int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s after %d attempts: minimum is %s", ErrConflict, e.Attempts, e.Minimum.String())
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// MinimumFor extracts the minimum next bid from a bid-path error, if any.
func MinimumFor(err error) (decimal.Decimal, bool) {
	var low *BidTooLowError
	if errors.As(err, &low) {
		return low.Minimum, true
	}
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict.Minimum, true
	}
	return decimal.Zero, false
}

// CurrentBidFor extracts the auction price a bid-path error was judged against.
func CurrentBidFor(err error) (decimal.Decimal, bool) {
	var low *BidTooLowError
	if errors.As(err, &low) {
		return low.CurrentBid, true
	}
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict.CurrentBid, true
	}
	return decimal.Zero, false
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper predicates
// ──────────────────────────────────────────────────────────────────────────────

// IsNotFound returns true when err is a domain "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAuctionNotFound)
}

// IsConflict returns true for errors that represent a state conflict.
func IsConflict(err error) bool {
	conflictErrors := []error{
		ErrConflict,
		ErrAuctionNotActive,
		ErrInvalidTransition,
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsAuthError returns true for authentication/authorisation errors.
func IsAuthError(err error) bool {
	authErrors := []error{
		ErrUnauthorized,
		ErrForbidden,
		ErrTokenInvalid,
	}
	for _, target := range authErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
