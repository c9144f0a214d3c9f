// Package ws holds WebSocket message types and the Hub implementation.
// messages.go defines all message structs pushed to connected clients.
package ws

import (
	"time"

	"github.com/evetabi/opportunity/internal/domain"
	"github.com/shopspring/decimal"
)

// MsgType identifies the kind of WS message so clients can switch on it.
type MsgType string

const (
	MsgTypeMarketUpdate MsgType = "market_update"
	MsgTypeStats        MsgType = "stats"
)

// ──────────────────────────────────────────────────────────────────────────────
// MarketUpdateMessage: pushed after every persisted lifecycle change.
// ──────────────────────────────────────────────────────────────────────────────

// MarketUpdateMessage carries the event and the market as saved. Market is
// nil for state_reset.
type MarketUpdateMessage struct {
	Type      MsgType          `json:"type"`
	Event     domain.EventType `json:"event"`
	MarketID  int              `json:"market_id"`
	State     string           `json:"state,omitempty"`
	Window    string           `json:"window,omitempty"`
	Market    *domain.Market   `json:"market,omitempty"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewMarketUpdateMessage converts a domain event into its wire form.
func NewMarketUpdateMessage(evt domain.MarketEvent) MarketUpdateMessage {
	msg := MarketUpdateMessage{
		Type:      MsgTypeMarketUpdate,
		Event:     evt.Type,
		MarketID:  evt.MarketID,
		Market:    evt.Market,
		Amount:    evt.Amount,
		Timestamp: evt.Timestamp,
	}
	if evt.Market != nil {
		msg.State = evt.Market.State.String()
		msg.Window = domain.WindowCopy(evt.Market.OpportunityWindowEnd, evt.Timestamp)
	}
	return msg
}

// StatsMessage is the periodic directory heartbeat.
type StatsMessage struct {
	Type      MsgType            `json:"type"`
	Stats     domain.MarketStats `json:"stats"`
	Timestamp time.Time          `json:"timestamp"`
}
