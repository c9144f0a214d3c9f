package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is the full persisted state of the simulator: every market plus
// the next fresh market id.
type Snapshot struct {
	Markets []Market `json:"markets"`
	NextID  int      `json:"nextId"`
}

// Find returns the index of the market with the given id, or -1.
func (s *Snapshot) Find(id int) int {
	for i := range s.Markets {
		if s.Markets[i].ID == id {
			return i
		}
	}
	return -1
}

// Market returns a pointer into the snapshot for id, or ErrMarketNotFound.
func (s *Snapshot) Market(id int) (*Market, error) {
	idx := s.Find(id)
	if idx < 0 {
		return nil, ErrMarketNotFound
	}
	return &s.Markets[idx], nil
}

// Prepend inserts m at the head of the market list (most recent first).
func (s *Snapshot) Prepend(m Market) {
	s.Markets = append([]Market{m}, s.Markets...)
}

// Normalize fills defaults on every market and recomputes NextID so that it
// is never lower than max(id)+1. Applying it twice is a no-op.
func (s *Snapshot) Normalize() {
	if s.Markets == nil {
		s.Markets = []Market{}
	}
	maxID := -1
	for i := range s.Markets {
		m := &s.Markets[i]
		if !m.State.IsValid() {
			m.State = StateTrading
		}
		if m.Bids == nil {
			m.Bids = []Bid{}
		}
		if m.Options == nil {
			m.Options = []Option{}
		}
		for j := range m.Bids {
			if !m.Bids[j].Status.IsValid() {
				m.Bids[j].Status = BidStatusOpen
			}
		}
		if m.ID > maxID {
			maxID = m.ID
		}
	}
	if s.NextID < len(s.Markets) {
		s.NextID = len(s.Markets)
	}
	if maxID+1 > s.NextID {
		s.NextID = maxID + 1
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// MarketEvent: lifecycle notifications for push feeds
// ──────────────────────────────────────────────────────────────────────────────

// EventType names a lifecycle change.
type EventType string

const (
	EventMarketCreated  EventType = "market_created"
	EventBidPlaced      EventType = "bid_placed"
	EventMarketLocked   EventType = "market_locked"
	EventMarketResolved EventType = "market_resolved"
	EventTraderClaimed  EventType = "trader_claimed"
	EventSponsorClaimed EventType = "sponsor_claimed"
	EventStateReset     EventType = "state_reset"
)

// MarketEvent is emitted after a mutation has been persisted.
type MarketEvent struct {
	Type      EventType        `json:"type"`
	MarketID  int              `json:"market_id"`
	Market    *Market          `json:"market,omitempty"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewMarketEvent builds an event for m stamped with the current time.
func NewMarketEvent(t EventType, m *Market) MarketEvent {
	evt := MarketEvent{Type: t, Timestamp: time.Now().UTC()}
	if m != nil {
		evt.MarketID = m.ID
		evt.Market = m
	}
	return evt
}
