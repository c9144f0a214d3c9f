package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/evetabi/opportunity/internal/config"
	"github.com/evetabi/opportunity/internal/domain"
	"github.com/evetabi/opportunity/internal/ident"
	"github.com/evetabi/opportunity/internal/repository"
	"github.com/shopspring/decimal"
)

// untitledMarket is the title given to markets created without a question.
const untitledMarket = "Untitled opportunity window"

// CreateMarketInput carries the parameters of a new opportunity window.
type CreateMarketInput struct {
	Question             string          `json:"question"`
	PenaltyBps           int             `json:"penalty_bps"`
	OpportunityWindowEnd *time.Time      `json:"opportunity_window_end"`
	CollateralAddress    string          `json:"collateral_address"`
	CollateralSymbol     string          `json:"collateral_symbol"`
	OptionLabels         []string        `json:"option_labels"`
	InitialCollateral    decimal.Decimal `json:"initial_collateral"`
	Sponsor              string          `json:"sponsor"`
}

// ──────────────────────────────────────────────────────────────────────────────
// MarketService
// ──────────────────────────────────────────────────────────────────────────────

// MarketService creates markets and serves the market directory.
type MarketService struct {
	notifier
	repo *repository.SnapshotRepository
	cfg  *config.Config
}

// NewMarketService creates a MarketService.
func NewMarketService(repo *repository.SnapshotRepository, cfg *config.Config, logger *slog.Logger) *MarketService {
	return &MarketService{notifier: newNotifier(logger), repo: repo, cfg: cfg}
}

// ──────────────────────────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────────────────────────

// ListMarkets returns markets matching filter, most recent first. An empty
// filter means all.
func (s *MarketService) ListMarkets(ctx context.Context, filter domain.Filter) ([]domain.Market, error) {
	if filter == "" {
		filter = domain.FilterAll
	}
	if !filter.IsValid() {
		return nil, domain.ErrInvalidFilter
	}
	snap, err := s.repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("market_service.ListMarkets: %w", err)
	}
	out := make([]domain.Market, 0, len(snap.Markets))
	for i := range snap.Markets {
		if filter.Matches(&snap.Markets[i]) {
			out = append(out, snap.Markets[i])
		}
	}
	return out, nil
}

// GetMarket returns a single market by id.
func (s *MarketService) GetMarket(ctx context.Context, id int) (*domain.Market, error) {
	snap, err := s.repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("market_service.GetMarket: %w", err)
	}
	return snap.Market(id)
}

// Stats returns directory counters.
func (s *MarketService) Stats(ctx context.Context) (domain.MarketStats, error) {
	snap, err := s.repo.Load(ctx)
	if err != nil {
		return domain.MarketStats{}, fmt.Errorf("market_service.Stats: %w", err)
	}
	return domain.ComputeStats(snap.Markets), nil
}

// ──────────────────────────────────────────────────────────────────────────────
// CreateMarket
// ──────────────────────────────────────────────────────────────────────────────

// CreateMarket builds a Trading market from in, assigns the next id, and
// prepends it to the directory.
func (s *MarketService) CreateMarket(ctx context.Context, in CreateMarketInput) (*domain.Market, error) {
	if err := validateCreate(in); err != nil {
		return nil, s.observe("create_market", err)
	}

	now := time.Now().UTC()
	windowEnd := now.Add(s.cfg.Engine.DefaultWindow)
	if in.OpportunityWindowEnd != nil {
		windowEnd = in.OpportunityWindowEnd.UTC()
	}

	symbol := strings.TrimSpace(in.CollateralSymbol)
	if symbol == "" {
		symbol = s.cfg.Engine.DefaultCollateralSymbol
	}
	collateralAddr := in.CollateralAddress
	if collateralAddr == "" {
		collateralAddr = ident.ZeroAddress
	}
	sponsor := in.Sponsor
	if sponsor == "" {
		sponsor = ident.RandomAddress()
	}
	title := in.Question
	if title == "" {
		title = untitledMarket
	}

	options := make([]domain.Option, len(in.OptionLabels))
	for i, label := range in.OptionLabels {
		options[i] = domain.Option{Label: label, OptionHash: ident.OptionHash(label, now, i)}
	}

	m := domain.Market{
		State:                domain.StateTrading,
		MarketAddress:        ident.RandomAddress(),
		QuestionHash:         ident.QuestionHash(in.Question),
		Title:                title,
		Description:          fmt.Sprintf("Sponsor window with %s %s per option and hidden order flow.", in.InitialCollateral.String(), symbol),
		OpportunityWindowEnd: windowEnd,
		PenaltyBps:           in.PenaltyBps,
		Sponsor:              sponsor,
		CollateralSymbol:     symbol,
		CollateralAddress:    collateralAddr,
		Options:              options,
		Bids:                 []domain.Bid{},
	}

	err := s.repo.Update(ctx, func(snap *domain.Snapshot) error {
		m.ID = snap.NextID
		snap.NextID++
		snap.Prepend(m)
		return nil
	})
	if err != nil {
		return nil, s.observe("create_market", fmt.Errorf("market_service.CreateMarket: %w", err))
	}
	s.observe("create_market", nil)

	s.logger.Info("market created", "market_id", m.ID, "options", len(m.Options), "penalty_bps", m.PenaltyBps)
	s.publish(domain.EventMarketCreated, &m, nil)
	return &m, nil
}

func validateCreate(in CreateMarketInput) error {
	if len(in.OptionLabels) == 0 {
		return fmt.Errorf("at least one option label is required: %w", domain.ErrInvalidInput)
	}
	if in.PenaltyBps < 0 || in.PenaltyBps > domain.MaxPenaltyBps {
		return fmt.Errorf("penalty %d bps outside [0, %d]: %w", in.PenaltyBps, domain.MaxPenaltyBps, domain.ErrInvalidInput)
	}
	if in.InitialCollateral.IsNegative() {
		return fmt.Errorf("initial collateral %s is negative: %w", in.InitialCollateral, domain.ErrInvalidInput)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// ResetToSeed
// ──────────────────────────────────────────────────────────────────────────────

// ResetToSeed discards every market and restores the seed catalog.
func (s *MarketService) ResetToSeed(ctx context.Context) (*domain.Snapshot, error) {
	snap, err := s.repo.Reset(ctx)
	if err != nil {
		return nil, s.observe("reset", fmt.Errorf("market_service.ResetToSeed: %w", err))
	}
	s.observe("reset", nil)
	s.logger.Info("state reset to seed", "markets", len(snap.Markets))
	s.publish(domain.EventStateReset, nil, nil)
	return snap, nil
}
