package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/evetabi/opportunity/internal/config"
	"github.com/evetabi/opportunity/internal/domain"
	"github.com/evetabi/opportunity/internal/ident"
	"github.com/evetabi/opportunity/internal/repository"
	"github.com/shopspring/decimal"
)

// PlaceBidRequest is a trader's fill request. MaxPrice is the caller's
// price bound; nil uses the default execution price.
type PlaceBidRequest struct {
	MarketID     int
	Trader       string
	OptionID     int
	CollateralIn decimal.Decimal
	MaxPrice     *decimal.Decimal
}

// ──────────────────────────────────────────────────────────────────────────────
// BidService
// ──────────────────────────────────────────────────────────────────────────────

// BidService prices and records bids against trading markets.
type BidService struct {
	notifier
	repo    *repository.SnapshotRepository
	pricing domain.PricingRule
}

// NewBidService creates a BidService using the engine's pricing parameters.
func NewBidService(repo *repository.SnapshotRepository, cfg *config.Config, logger *slog.Logger) *BidService {
	return &BidService{
		notifier: newNotifier(logger),
		repo:     repo,
		pricing: domain.PricingRule{
			Default: cfg.Engine.DefaultExecutionPrice,
			Floor:   cfg.Engine.MinExecutionPrice,
		},
	}
}

// PlaceBid quotes the fill, prepends the bid to the market's book, and
// returns the updated market. Nothing is written when any check fails.
func (s *BidService) PlaceBid(ctx context.Context, req PlaceBidRequest) (*domain.Market, error) {
	trader := req.Trader
	if trader == "" {
		trader = ident.RandomAddress()
	}

	var updated domain.Market
	var placed domain.Bid
	err := s.repo.Update(ctx, func(snap *domain.Snapshot) error {
		m, err := snap.Market(req.MarketID)
		if err != nil {
			return err
		}
		collateral, yesOut, err := s.pricing.Quote(req.CollateralIn, req.MaxPrice)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		placed = domain.Bid{
			ID:           ident.BidID(now),
			Trader:       trader,
			OptionID:     req.OptionID,
			OptionLabel:  m.OptionLabel(req.OptionID),
			CollateralIn: collateral,
			YesOut:       yesOut,
			Timestamp:    now,
			Status:       domain.BidStatusOpen,
		}
		if err := m.AddBid(placed); err != nil {
			return err
		}
		updated = *m
		return nil
	})
	if err != nil {
		if !isDomainError(err) {
			err = fmt.Errorf("bid_service.PlaceBid: %w", err)
		}
		return nil, s.observe("place_bid", err)
	}
	s.observe("place_bid", nil)

	s.logger.Info("bid placed",
		"market_id", updated.ID,
		"bid_id", placed.ID,
		"option", placed.OptionID,
		"collateral", placed.CollateralIn.String(),
		"yes_out", placed.YesOut.String(),
	)
	s.publish(domain.EventBidPlaced, &updated, &placed.CollateralIn)
	return &updated, nil
}

// isDomainError reports whether err is one of the caller-facing sentinels
// and can be returned without a wrapping prefix.
func isDomainError(err error) bool {
	return domain.IsNotFound(err) || domain.IsInvalidInput(err) || domain.IsConflict(err)
}
