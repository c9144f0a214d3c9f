// Package scheduler runs the background loops around the market engine:
//  1. autoLockLoop       – locks Trading markets whose window has closed (opt-in).
//  2. archiveLoop        – uploads the snapshot document to object storage.
//  3. statsBroadcastLoop – pushes directory counters to WS clients.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/evetabi/opportunity/internal/config"
	"github.com/evetabi/opportunity/internal/domain"
)

// statsInterval is how often directory counters are pushed to WS clients.
const statsInterval = 10 * time.Second

// ──────────────────────────────────────────────────────────────────────────────
// Collaborator interfaces
// ──────────────────────────────────────────────────────────────────────────────

// Locker is implemented by service.ResolutionService.
type Locker interface {
	LockExpired(ctx context.Context, now time.Time) ([]int, error)
}

// Exporter is implemented by repository.SnapshotRepository.
type Exporter interface {
	Export(ctx context.Context) ([]byte, error)
}

// Archiver is implemented by archive.Archiver.
type Archiver interface {
	PutSnapshot(ctx context.Context, data []byte, at time.Time) (string, error)
}

// StatsSource is implemented by service.MarketService.
type StatsSource interface {
	Stats(ctx context.Context) (domain.MarketStats, error)
}

// StatsBroadcaster is implemented by ws.Hub.
type StatsBroadcaster interface {
	BroadcastStats(stats domain.MarketStats)
}

// Deps bundles the scheduler's collaborators. Nil members disable the loop
// that needs them.
type Deps struct {
	Locker   Locker
	Exporter Exporter
	Archiver Archiver
	Stats    StatsSource
	Hub      StatsBroadcaster
}

// ──────────────────────────────────────────────────────────────────────────────
// Scheduler
// ──────────────────────────────────────────────────────────────────────────────

// Scheduler owns the background loops. Call Run(ctx) once from main();
// cancel the context to shut it down gracefully.
type Scheduler struct {
	deps   Deps
	cfg    *config.Config
	logger *slog.Logger
}

// NewScheduler creates a Scheduler.
func NewScheduler(deps Deps, cfg *config.Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{deps: deps, cfg: cfg, logger: logger}
}

// Run blocks until ctx is cancelled, running every enabled loop.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { <-ctx.Done(); return nil })

	if s.cfg.Engine.AutoLockExpired && s.deps.Locker != nil {
		g.Go(func() error { s.autoLockLoop(ctx); return nil })
	}
	if s.cfg.Archive.Enabled() && s.deps.Archiver != nil && s.deps.Exporter != nil {
		g.Go(func() error { s.archiveLoop(ctx); return nil })
	}
	if s.deps.Hub != nil && s.deps.Stats != nil {
		g.Go(func() error { s.statsBroadcastLoop(ctx); return nil })
	}

	s.logger.Info("scheduler started",
		"auto_lock", s.cfg.Engine.AutoLockExpired,
		"archive", s.cfg.Archive.Enabled(),
	)
	return g.Wait()
}

// ──────────────────────────────────────────────────────────────────────────────
// autoLockLoop
// ──────────────────────────────────────────────────────────────────────────────

func (s *Scheduler) autoLockLoop(ctx context.Context) {
	defer s.recoverAndLog("autoLockLoop")
	s.tick(ctx, "autoLockLoop", s.cfg.Engine.AutoLockInterval, s.LockExpired)
}

// LockExpired runs one auto-lock pass.
func (s *Scheduler) LockExpired(ctx context.Context) {
	ids, err := s.deps.Locker.LockExpired(ctx, time.Now())
	if err != nil {
		s.logger.Error("autoLockLoop: LockExpired", "err", err)
		return
	}
	if len(ids) > 0 {
		s.logger.Info("autoLockLoop: locked expired markets", "count", len(ids))
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// archiveLoop
// ──────────────────────────────────────────────────────────────────────────────

func (s *Scheduler) archiveLoop(ctx context.Context) {
	defer s.recoverAndLog("archiveLoop")
	s.tick(ctx, "archiveLoop", s.cfg.Archive.Interval, func(ctx context.Context) {
		if err := s.ArchiveWithRetry(ctx); err != nil {
			s.logger.Error("archiveLoop: giving up until next tick", "err", err)
		}
	})
}

// ArchiveWithRetry uploads the current snapshot, retrying up to 3 times.
func (s *Scheduler) ArchiveWithRetry(ctx context.Context) error {
	const maxAttempts = 3
	const retryDelay = 5 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		key, err := s.archiveOnce(ctx)
		if err == nil {
			s.logger.Info("snapshot archived", "key", key)
			return nil
		}
		lastErr = err
		s.logger.Warn("snapshot archive failed, retrying",
			"attempt", attempt, "max", maxAttempts, "err", err)

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}
	return lastErr
}

func (s *Scheduler) archiveOnce(ctx context.Context) (string, error) {
	data, err := s.deps.Exporter.Export(ctx)
	if err != nil {
		return "", err
	}
	return s.deps.Archiver.PutSnapshot(ctx, data, time.Now())
}

// ──────────────────────────────────────────────────────────────────────────────
// statsBroadcastLoop
// ──────────────────────────────────────────────────────────────────────────────

func (s *Scheduler) statsBroadcastLoop(ctx context.Context) {
	defer s.recoverAndLog("statsBroadcastLoop")
	s.tick(ctx, "statsBroadcastLoop", statsInterval, s.BroadcastStats)
}

// BroadcastStats pushes the current directory counters once.
func (s *Scheduler) BroadcastStats(ctx context.Context) {
	stats, err := s.deps.Stats.Stats(ctx)
	if err != nil {
		s.logger.Warn("statsBroadcastLoop: stats failed", "err", err)
		return
	}
	s.deps.Hub.BroadcastStats(stats)
}

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

// tick calls fn every interval until ctx is cancelled.
func (s *Scheduler) tick(ctx context.Context, loop string, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(loop + ": shutting down")
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// recoverAndLog is deferred inside each goroutine to catch unexpected panics,
// log them, and allow the process to keep serving.
func (s *Scheduler) recoverAndLog(loop string) {
	if r := recover(); r != nil {
		s.logger.Error("PANIC recovered in scheduler loop",
			"loop", loop, "panic", r)
	}
}
