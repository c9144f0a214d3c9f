package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/evetabi/opportunity/internal/domain"
	"github.com/evetabi/opportunity/internal/repository"
)

// ResolutionService drives the Trading → Locked → Resolved lifecycle.
type ResolutionService struct {
	notifier
	repo *repository.SnapshotRepository
}

// NewResolutionService builds a ResolutionService.
func NewResolutionService(repo *repository.SnapshotRepository, logger *slog.Logger) *ResolutionService {
	return &ResolutionService{notifier: newNotifier(logger), repo: repo}
}

// mutate applies fn to market id inside one repository update and returns a
// copy of the market as saved.
func (s *ResolutionService) mutate(ctx context.Context, op string, id int, fn func(*domain.Market) error) (*domain.Market, error) {
	var updated domain.Market
	err := s.repo.Update(ctx, func(snap *domain.Snapshot) error {
		m, err := snap.Market(id)
		if err != nil {
			return err
		}
		if err := fn(m); err != nil {
			return err
		}
		updated = *m
		return nil
	})
	if err != nil {
		if !isDomainError(err) {
			err = fmt.Errorf("resolution_service.%s: %w", op, err)
		}
		return nil, s.observe(op, err)
	}
	s.observe(op, nil)
	return &updated, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Lock
// ──────────────────────────────────────────────────────────────────────────────

// Lock closes a market to new bids. Locking a locked market is a no-op that
// keeps the first LockedAt.
func (s *ResolutionService) Lock(ctx context.Context, id int) (*domain.Market, error) {
	m, err := s.mutate(ctx, "lock", id, func(m *domain.Market) error {
		return m.Lock(time.Now())
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("market locked", "market_id", m.ID, "locked_at", m.LockedAt)
	s.publish(domain.EventMarketLocked, m, nil)
	return m, nil
}

// errNothingExpired aborts the LockExpired update so an idle pass does not
// rewrite the snapshot.
var errNothingExpired = errors.New("no expired markets")

// LockExpired locks every Trading market whose window ended at or before
// now and returns their ids. Used by the scheduler when auto-lock is on.
func (s *ResolutionService) LockExpired(ctx context.Context, now time.Time) ([]int, error) {
	var locked []domain.Market
	err := s.repo.Update(ctx, func(snap *domain.Snapshot) error {
		for i := range snap.Markets {
			m := &snap.Markets[i]
			if !m.IsTrading() || !m.WindowClosed(now) {
				continue
			}
			if err := m.Lock(now); err != nil {
				return err
			}
			locked = append(locked, *m)
		}
		if len(locked) == 0 {
			return errNothingExpired
		}
		return nil
	})
	if errors.Is(err, errNothingExpired) {
		return []int{}, nil
	}
	if err != nil {
		return nil, s.observe("auto_lock", fmt.Errorf("resolution_service.LockExpired: %w", err))
	}

	ids := make([]int, 0, len(locked))
	for i := range locked {
		ids = append(ids, locked[i].ID)
		s.publish(domain.EventMarketLocked, &locked[i], nil)
	}
	s.observe("auto_lock", nil)
	s.logger.Info("expired markets locked", "market_ids", ids)
	return ids, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Resolve / ResolveNo
// ──────────────────────────────────────────────────────────────────────────────

// Resolve settles a locked market in favour of winningOptionID.
func (s *ResolutionService) Resolve(ctx context.Context, id, winningOptionID int) (*domain.Market, error) {
	m, err := s.mutate(ctx, "resolve", id, func(m *domain.Market) error {
		return m.Resolve(winningOptionID)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("market resolved",
		"market_id", m.ID,
		"winning_option", winningOptionID,
		"sponsor_payout", m.SponsorPayout.String(),
	)
	s.publish(domain.EventMarketResolved, m, m.SponsorPayout)
	return m, nil
}

// ResolveNo settles a locked market with no winning option.
func (s *ResolutionService) ResolveNo(ctx context.Context, id int) (*domain.Market, error) {
	m, err := s.mutate(ctx, "resolve_no", id, func(m *domain.Market) error {
		return m.ResolveNo()
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("market resolved NO", "market_id", m.ID, "sponsor_payout", m.SponsorPayout.String())
	s.publish(domain.EventMarketResolved, m, m.SponsorPayout)
	return m, nil
}
