package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/evetabi/opportunity/internal/domain"
	"github.com/evetabi/opportunity/internal/repository"
	"github.com/shopspring/decimal"
)

// SettlementService releases funds from resolved markets.
type SettlementService struct {
	notifier
	repo *repository.SnapshotRepository
}

// NewSettlementService builds a SettlementService.
func NewSettlementService(repo *repository.SnapshotRepository, logger *slog.Logger) *SettlementService {
	return &SettlementService{notifier: newNotifier(logger), repo: repo}
}

// ClaimTraderFunds marks every won bid as claimed and returns the released
// YES amount. Repeated claims release zero.
func (s *SettlementService) ClaimTraderFunds(ctx context.Context, id int) (*domain.Market, decimal.Decimal, error) {
	return s.claim(ctx, "claim_trader", id, domain.EventTraderClaimed, func(m *domain.Market) decimal.Decimal {
		return m.ClaimWinnings()
	})
}

// ClaimSponsorPayout releases the sponsor's accrued penalty and zeroes it.
// Unresolved markets release zero.
func (s *SettlementService) ClaimSponsorPayout(ctx context.Context, id int) (*domain.Market, decimal.Decimal, error) {
	return s.claim(ctx, "claim_sponsor", id, domain.EventSponsorClaimed, func(m *domain.Market) decimal.Decimal {
		return m.ClaimSponsorPayout()
	})
}

func (s *SettlementService) claim(
	ctx context.Context,
	op string,
	id int,
	evt domain.EventType,
	release func(*domain.Market) decimal.Decimal,
) (*domain.Market, decimal.Decimal, error) {
	var (
		updated domain.Market
		amount  decimal.Decimal
	)
	err := s.repo.Update(ctx, func(snap *domain.Snapshot) error {
		m, err := snap.Market(id)
		if err != nil {
			return err
		}
		amount = release(m)
		updated = *m
		return nil
	})
	if err != nil {
		if !isDomainError(err) {
			err = fmt.Errorf("settlement_service.%s: %w", op, err)
		}
		return nil, decimal.Zero, s.observe(op, err)
	}
	s.observe(op, nil)
	s.released(op, amount)

	s.logger.Info("claim processed", "op", op, "market_id", id, "amount", amount.String())
	s.publish(evt, &updated, &amount)
	return &updated, amount, nil
}
