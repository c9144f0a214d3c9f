// Package main is the entry point for the opportunity market simulator API
// server. It wires together the snapshot store, the engine services, the
// WebSocket hub, optional NATS/S3 sinks, and the background scheduler.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // postgres driver
	"golang.org/x/sync/errgroup"

	"github.com/evetabi/opportunity/internal/api"
	"github.com/evetabi/opportunity/internal/archive"
	"github.com/evetabi/opportunity/internal/backoffice"
	"github.com/evetabi/opportunity/internal/config"
	"github.com/evetabi/opportunity/internal/events"
	"github.com/evetabi/opportunity/internal/metrics"
	"github.com/evetabi/opportunity/internal/repository"
	"github.com/evetabi/opportunity/internal/scheduler"
	"github.com/evetabi/opportunity/internal/seed"
	"github.com/evetabi/opportunity/internal/service"
	"github.com/evetabi/opportunity/internal/ws"
)

func main() {
	// ── 1. Logger ─────────────────────────────────────────────────────────────
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting opportunity server",
		"env", cfg.Server.Env, "port", cfg.Server.Port, "store", cfg.Store.Backend)

	// ── 2. Root context + signal handling ─────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 3. Seed catalog ───────────────────────────────────────────────────────
	catalog := seed.Default()
	if cfg.Engine.CatalogPath != "" {
		c, err := seed.LoadFile(cfg.Engine.CatalogPath)
		if err != nil {
			logger.Error("seed catalog load failed", "path", cfg.Engine.CatalogPath, "err", err)
			os.Exit(1)
		}
		catalog = c
		logger.Info("seed catalog loaded", "path", cfg.Engine.CatalogPath, "markets", len(c.Markets))
	}

	// ── 4. Snapshot store ─────────────────────────────────────────────────────
	backend, closer, err := repository.Open(ctx, cfg.Store, logger)
	if err != nil {
		logger.Error("snapshot store unavailable", "backend", cfg.Store.Backend, "err", err)
		os.Exit(1)
	}
	defer closer.Close()

	repo := repository.NewSnapshotRepository(backend, catalog, logger)
	if _, err = repo.Load(ctx); err != nil {
		logger.Error("initial snapshot load failed", "err", err)
		os.Exit(1)
	}

	// ── 5. Services ───────────────────────────────────────────────────────────
	marketSvc := service.NewMarketService(repo, cfg, logger)
	bidSvc := service.NewBidService(repo, cfg, logger)
	resolutionSvc := service.NewResolutionService(repo, logger)
	settlementSvc := service.NewSettlementService(repo, logger)

	// ── 6. Metrics ────────────────────────────────────────────────────────────
	rec := metrics.NewRecorder()
	if err = rec.RegisterStats(rec.Registerer(), marketSvc.Stats, logger); err != nil {
		logger.Error("metrics registration failed", "err", err)
		os.Exit(1)
	}

	// ── 7. Event sinks: WebSocket hub + optional NATS ────────────────────────
	hub := ws.NewHub(cfg.Server.AllowedOrigins, logger)
	sinks := service.Broadcasters{hub}

	if cfg.Events.NATSURL != "" {
		pub, nc, err := events.Connect(cfg.Events.NATSURL, cfg.Events.SubjectPrefix, logger)
		if err != nil {
			logger.Error("nats connection failed", "err", err)
			os.Exit(1)
		}
		defer func() {
			if err := nc.Drain(); err != nil {
				logger.Warn("nats drain failed", "err", err)
			}
		}()
		sinks = append(sinks, pub)
		logger.Info("nats publisher connected", "prefix", cfg.Events.SubjectPrefix)
	}

	marketSvc.SetBroadcaster(sinks)
	bidSvc.SetBroadcaster(sinks)
	resolutionSvc.SetBroadcaster(sinks)
	settlementSvc.SetBroadcaster(sinks)

	marketSvc.SetRecorder(rec)
	bidSvc.SetRecorder(rec)
	resolutionSvc.SetRecorder(rec)
	settlementSvc.SetRecorder(rec)

	// ── 8. Scheduler (+ optional S3 archive) ──────────────────────────────────
	deps := scheduler.Deps{
		Locker:   resolutionSvc,
		Exporter: repo,
		Stats:    marketSvc,
		Hub:      hub,
	}
	if cfg.Archive.Enabled() {
		arch, err := archive.New(ctx, cfg.Archive)
		if err != nil {
			logger.Error("s3 archive setup failed", "err", err)
			os.Exit(1)
		}
		deps.Archiver = arch
		logger.Info("snapshot archive enabled", "bucket", cfg.Archive.Bucket, "interval", cfg.Archive.Interval)
	}
	sched := scheduler.NewScheduler(deps, cfg, logger)

	// ── 9. HTTP Router ────────────────────────────────────────────────────────
	router := api.SetupRouter(ctx, api.RouterDeps{
		MarketSvc:     marketSvc,
		BidSvc:        bidSvc,
		ResolutionSvc: resolutionSvc,
		SettlementSvc: settlementSvc,
		Hub:           hub,
		Metrics:       rec,
		Cfg:           cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── 10. Back-office listener (optional) ──────────────────────────────────
	var boSrv *http.Server
	if cfg.Server.BackofficePort != "" {
		boSrv = &http.Server{
			Addr: ":" + cfg.Server.BackofficePort,
			Handler: backoffice.SetupBackofficeRouter(backoffice.BackofficeDeps{
				MarketSvc:     marketSvc,
				ResolutionSvc: resolutionSvc,
				Repo:          repo,
				Archiver:      deps.Archiver,
				Hub:           hub,
				Cfg:           cfg,
			}),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
	}

	// ── 11. Run everything until a signal or a fatal error ───────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if boSrv != nil {
		g.Go(func() error {
			logger.Info("backoffice http server listening", "addr", boSrv.Addr)
			if err := boSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("backoffice server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received, draining connections…")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if boSrv != nil {
			if err := boSrv.Shutdown(shutdownCtx); err != nil {
				logger.Error("backoffice shutdown error", "err", err)
			}
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err = g.Wait(); err != nil {
		logger.Error("server stopped with error", "err", err)
		os.Exit(1)
	}
	logger.Info("server stopped cleanly")
}
