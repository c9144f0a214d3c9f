package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// BidStatus represents the settlement state of a trader's bid.
// Progression is open → {won|lost} → claimed (claim only from won).
type BidStatus string

const (
	BidStatusOpen    BidStatus = "open"    // market not yet resolved
	BidStatusWon     BidStatus = "won"     // bid on the winning option
	BidStatusLost    BidStatus = "lost"    // bid on a losing option; penalised
	BidStatusClaimed BidStatus = "claimed" // winnings released
)

// IsValid returns true if the status is one of the four known values.
func (s BidStatus) IsValid() bool {
	switch s {
	case BidStatusOpen, BidStatusWon, BidStatusLost, BidStatusClaimed:
		return true
	}
	return false
}

// DefaultExecutionPrice is used when the trader does not supply a max price.
var DefaultExecutionPrice = decimal.NewFromFloat(0.6)

// MinExecutionPrice is the floor applied to every execution price.
var MinExecutionPrice = decimal.NewFromFloat(0.01)

// ──────────────────────────────────────────────────────────────────────────────
// Bid
// ──────────────────────────────────────────────────────────────────────────────

// Bid is one trader's fill against a market.
type Bid struct {
	ID           string          `json:"id"`
	Trader       string          `json:"trader"`
	OptionID     int             `json:"optionId"`
	OptionLabel  string          `json:"optionLabel"`
	CollateralIn decimal.Decimal `json:"collateralIn"`
	YesOut       decimal.Decimal `json:"yesOut"`
	Timestamp    time.Time       `json:"timestamp"`
	Status       BidStatus       `json:"status"`
}

// IsOpen returns true until the market is resolved.
func (b *Bid) IsOpen() bool {
	return b.Status == BidStatusOpen
}

// ──────────────────────────────────────────────────────────────────────────────
// Pricing
// ──────────────────────────────────────────────────────────────────────────────

// PricingRule holds the execution price parameters of the simplified model.
type PricingRule struct {
	Default decimal.Decimal // price used when no max price is supplied
	Floor   decimal.Decimal // lowest admissible execution price
}

// DefaultPricing mirrors the contract simulation constants.
func DefaultPricing() PricingRule {
	return PricingRule{Default: DefaultExecutionPrice, Floor: MinExecutionPrice}
}

// ExecutionPrice returns the price a bid is filled at. The caller's slippage
// bound is honoured as the execution price itself, clamped to the floor.
//
//	price = max(maxPrice ?? Default, Floor)
func (r PricingRule) ExecutionPrice(maxPrice *decimal.Decimal) decimal.Decimal {
	price := r.Default
	if maxPrice != nil {
		price = *maxPrice
	}
	return decimal.Max(price, r.Floor)
}

// Quote computes the recorded collateral and the YES tokens minted for a bid.
//
//	collateral = round(collateralIn, 2)
//	yesOut     = max(1, round(collateral / price, 2))
//
// Returns ErrInvalidCollateral when the collateral is not positive once
// rounded.
func (r PricingRule) Quote(collateralIn decimal.Decimal, maxPrice *decimal.Decimal) (collateral, yesOut decimal.Decimal, err error) {
	if !collateralIn.IsPositive() {
		return decimal.Zero, decimal.Zero, ErrInvalidCollateral
	}
	collateral = collateralIn.Round(2)
	if !collateral.IsPositive() {
		return decimal.Zero, decimal.Zero, ErrInvalidCollateral
	}
	price := r.ExecutionPrice(maxPrice)
	yesOut = decimal.Max(decimal.NewFromInt(1), collateral.Div(price).Round(2))
	return collateral, yesOut, nil
}
