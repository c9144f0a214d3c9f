package domain

import (
	"errors"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel errors: compare with errors.Is()
// ──────────────────────────────────────────────────────────────────────────────

// Lookup errors
var (
	// ErrMarketNotFound is returned when no market matches the given id.
	ErrMarketNotFound = errors.New("market not found")
)

// Input errors
var (
	// ErrInvalidInput is returned when market creation parameters are out of
	// bounds (no options, penalty outside [0, 10000] bps).
	ErrInvalidInput = errors.New("invalid market parameters")

	// ErrInvalidCollateral is returned when a bid's collateral is not a
	// positive finite amount.
	ErrInvalidCollateral = errors.New("bid collateral must be a positive amount")

	// ErrInvalidOption is returned when an option index does not exist on the
	// market.
	ErrInvalidOption = errors.New("option does not exist on market")

	// ErrInvalidFilter is returned for an unknown directory filter.
	ErrInvalidFilter = errors.New("invalid market filter")
)

// State errors
var (
	// ErrMarketNotTrading is returned when a bid is placed on a market that is
	// no longer in StateTrading.
	ErrMarketNotTrading = errors.New("market is not open for trading")

	// ErrMarketNotLocked is returned when resolution is attempted before the
	// market has been locked.
	ErrMarketNotLocked = errors.New("market must be locked before resolution")

	// ErrAlreadyResolved is returned when locking or resolving a market that
	// has already been resolved.
	ErrAlreadyResolved = errors.New("market is already resolved")
)

// ──────────────────────────────────────────────────────────────────────────────
// Helper predicates
// ──────────────────────────────────────────────────────────────────────────────

// IsNotFound returns true when err (or any error in its chain) is
// ErrMarketNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMarketNotFound)
}

// IsInvalidInput returns true for errors caused by malformed caller input.
func IsInvalidInput(err error) bool {
	inputErrors := []error{
		ErrInvalidInput,
		ErrInvalidCollateral,
		ErrInvalidOption,
		ErrInvalidFilter,
	}
	for _, target := range inputErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsConflict returns true for errors that represent a lifecycle conflict
// (bidding on a locked market, double resolution).
func IsConflict(err error) bool {
	conflictErrors := []error{
		ErrMarketNotTrading,
		ErrMarketNotLocked,
		ErrAlreadyResolved,
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
