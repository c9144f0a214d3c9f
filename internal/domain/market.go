// Package domain defines the core entities and rules of the opportunity
// market simulator: markets, options, bids, the lifecycle state machine and
// the settlement math.
package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// MarketState
// ──────────────────────────────────────────────────────────────────────────────

// MarketState is the lifecycle state of a market. The numeric values match the
// uint8 codes returned by the market contract's state() view.
type MarketState uint8

const (
	StateTrading     MarketState = 0 // accepting bids
	StateLocked      MarketState = 1 // opportunity window closed, awaiting resolution
	StateResolvedYes MarketState = 2 // one option won
	StateResolvedNo  MarketState = 3 // no option won; every bid lost
)

// String returns a human readable name for the state.
func (s MarketState) String() string {
	switch s {
	case StateTrading:
		return "Trading"
	case StateLocked:
		return "Locked"
	case StateResolvedYes:
		return "Resolved YES"
	case StateResolvedNo:
		return "Resolved NO"
	default:
		return fmt.Sprintf("MarketState(%d)", uint8(s))
	}
}

// IsValid reports whether s is one of the four known states.
func (s MarketState) IsValid() bool {
	return s <= StateResolvedNo
}

// IsResolved reports whether s is a terminal state.
func (s MarketState) IsResolved() bool {
	return s == StateResolvedYes || s == StateResolvedNo
}

// MarshalText encodes the state as its contract code ("0".."3").
func (s MarketState) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("domain: invalid market state %d", uint8(s))
	}
	return []byte(strconv.Itoa(int(s))), nil
}

// UnmarshalText parses a contract code ("0".."3").
func (s *MarketState) UnmarshalText(text []byte) error {
	n, err := strconv.Atoi(string(text))
	if err != nil || n < 0 || n > int(StateResolvedNo) {
		return fmt.Errorf("domain: invalid market state %q", text)
	}
	*s = MarketState(n)
	return nil
}

// UnmarshalJSON accepts the state either as a quoted code or as a bare number.
func (s *MarketState) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = StateTrading
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		return s.UnmarshalText([]byte(str))
	}
	return s.UnmarshalText(data)
}

// ──────────────────────────────────────────────────────────────────────────────
// Option
// ──────────────────────────────────────────────────────────────────────────────

// Option is one outcome branch of a market.
type Option struct {
	Label      string `json:"label"      toml:"label"`
	OptionHash string `json:"optionHash" toml:"option_hash"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Market
// ──────────────────────────────────────────────────────────────────────────────

// MaxPenaltyBps is the upper bound for a market's penalty rate (100 %).
const MaxPenaltyBps = 10000

// Market is one sponsor-seeded opportunity window.
type Market struct {
	ID                   int              `json:"id"`
	State                MarketState      `json:"state"`
	MarketAddress        string           `json:"marketAddress"`
	QuestionHash         string           `json:"questionHash"`
	Title                string           `json:"title"`
	Description          string           `json:"description"`
	OpportunityWindowEnd time.Time        `json:"opportunityWindowEnd"`
	PenaltyBps           int              `json:"penaltyBps"`
	Sponsor              string           `json:"sponsor"`
	CollateralSymbol     string           `json:"collateralSymbol"`
	CollateralAddress    string           `json:"collateralAddress"`
	Options              []Option         `json:"options"`
	Bids                 []Bid            `json:"bids"`
	LockedAt             *time.Time       `json:"lockedAt"`
	WinningOptionID      *int             `json:"winningOptionId"`
	SponsorPayout        *decimal.Decimal `json:"sponsorPayout"`
}

// ValidOption reports whether optionID indexes one of the market's options.
func (m *Market) ValidOption(optionID int) bool {
	return optionID >= 0 && optionID < len(m.Options)
}

// OptionLabel returns the label of optionID, or a positional fallback when
// the index is out of range.
func (m *Market) OptionLabel(optionID int) string {
	if m.ValidOption(optionID) {
		return m.Options[optionID].Label
	}
	return fmt.Sprintf("Option %d", optionID+1)
}

// PenaltyFraction returns penaltyBps / 10000.
func (m *Market) PenaltyFraction() decimal.Decimal {
	return decimal.NewFromInt(int64(m.PenaltyBps)).Div(decimal.NewFromInt(MaxPenaltyBps))
}

// IsTrading returns true while the market accepts bids.
func (m *Market) IsTrading() bool {
	return m.State == StateTrading
}

// WindowClosed reports whether the advisory opportunity window has ended.
func (m *Market) WindowClosed(now time.Time) bool {
	return !m.OpportunityWindowEnd.IsZero() && !now.Before(m.OpportunityWindowEnd)
}

// TotalCollateral returns the sum of collateralIn over every bid.
func (m *Market) TotalCollateral() decimal.Decimal {
	total := decimal.Zero
	for _, b := range m.Bids {
		total = total.Add(b.CollateralIn)
	}
	return total
}

// AddBid prepends bid to the bid book. The market must be trading and the
// bid must reference a valid option.
func (m *Market) AddBid(bid Bid) error {
	if !m.IsTrading() {
		return ErrMarketNotTrading
	}
	if !m.ValidOption(bid.OptionID) {
		return ErrInvalidOption
	}
	m.Bids = append([]Bid{bid}, m.Bids...)
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Lifecycle transitions
// ──────────────────────────────────────────────────────────────────────────────

// Lock moves a trading market to StateLocked and stamps LockedAt. Locking an
// already locked market keeps the first LockedAt and returns nil.
func (m *Market) Lock(now time.Time) error {
	switch m.State {
	case StateTrading:
		t := now.UTC()
		m.State = StateLocked
		m.LockedAt = &t
		return nil
	case StateLocked:
		if m.LockedAt == nil {
			t := now.UTC()
			m.LockedAt = &t
		}
		return nil
	default:
		return ErrAlreadyResolved
	}
}

// Resolve settles a locked market in favour of winningOptionID. Bids on the
// winning option are marked won, every other bid is marked lost and its
// penalty share is credited to the sponsor.
func (m *Market) Resolve(winningOptionID int) error {
	if err := m.checkResolvable(); err != nil {
		return err
	}
	if !m.ValidOption(winningOptionID) {
		return ErrInvalidOption
	}
	winner := winningOptionID
	m.settle(&winner)
	m.State = StateResolvedYes
	m.WinningOptionID = &winner
	return nil
}

// ResolveNo settles a locked market with no winning option: every bid is
// lost and penalised.
func (m *Market) ResolveNo() error {
	if err := m.checkResolvable(); err != nil {
		return err
	}
	m.settle(nil)
	m.State = StateResolvedNo
	return nil
}

func (m *Market) checkResolvable() error {
	switch {
	case m.State.IsResolved() || m.WinningOptionID != nil:
		return ErrAlreadyResolved
	case m.State != StateLocked:
		return ErrMarketNotLocked
	}
	return nil
}

// settle partitions the bid book and computes the sponsor payout.
//
//	sponsorPayout = Σ lost.collateralIn × penaltyBps / 10000   (2 dp)
func (m *Market) settle(winner *int) {
	fraction := m.PenaltyFraction()
	payout := decimal.Zero
	for i := range m.Bids {
		b := &m.Bids[i]
		if winner != nil && b.OptionID == *winner {
			b.Status = BidStatusWon
			continue
		}
		b.Status = BidStatusLost
		payout = payout.Add(b.CollateralIn.Mul(fraction))
	}
	payout = payout.Round(2)
	m.SponsorPayout = &payout
}

// ──────────────────────────────────────────────────────────────────────────────
// Settlement
// ──────────────────────────────────────────────────────────────────────────────

// ClaimWinnings marks every won bid as claimed and returns the sum of their
// yesOut (2 dp). A second call returns zero.
func (m *Market) ClaimWinnings() decimal.Decimal {
	amount := decimal.Zero
	for i := range m.Bids {
		b := &m.Bids[i]
		if b.Status != BidStatusWon {
			continue
		}
		amount = amount.Add(b.YesOut)
		b.Status = BidStatusClaimed
	}
	return amount.Round(2)
}

// ClaimSponsorPayout releases the sponsor payout and resets it to zero.
// Before resolution the payout is nil and nothing is released.
func (m *Market) ClaimSponsorPayout() decimal.Decimal {
	if m.SponsorPayout == nil {
		return decimal.Zero
	}
	amount := m.SponsorPayout.Round(2)
	zero := decimal.Zero
	m.SponsorPayout = &zero
	return amount
}

// ──────────────────────────────────────────────────────────────────────────────
// Directory filters
// ──────────────────────────────────────────────────────────────────────────────

// Filter selects markets in the directory view.
type Filter string

const (
	FilterAll      Filter = "all"
	FilterActive   Filter = "active"
	FilterLocked   Filter = "locked"
	FilterResolved Filter = "resolved"
)

// IsValid returns true for a recognised filter.
func (f Filter) IsValid() bool {
	switch f {
	case FilterAll, FilterActive, FilterLocked, FilterResolved:
		return true
	}
	return false
}

// Matches reports whether m belongs to the filter.
func (f Filter) Matches(m *Market) bool {
	switch f {
	case FilterActive:
		return m.State == StateTrading
	case FilterLocked:
		return m.State == StateLocked
	case FilterResolved:
		return m.State.IsResolved()
	default:
		return true
	}
}

// MarketStats counts markets per directory bucket.
type MarketStats struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Locked   int `json:"locked"`
	Resolved int `json:"resolved"`
	Bids     int `json:"bids"`
}

// ComputeStats aggregates the directory counters over markets.
func ComputeStats(markets []Market) MarketStats {
	var st MarketStats
	for i := range markets {
		m := &markets[i]
		st.Total++
		st.Bids += len(m.Bids)
		switch {
		case FilterActive.Matches(m):
			st.Active++
		case FilterLocked.Matches(m):
			st.Locked++
		case FilterResolved.Matches(m):
			st.Resolved++
		}
	}
	return st
}
