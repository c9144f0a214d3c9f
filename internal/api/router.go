package api

import (
	"context"
	"net/http"

	"github.com/evetabi/opportunity/internal/api/handler"
	"github.com/evetabi/opportunity/internal/api/middleware"
	"github.com/evetabi/opportunity/internal/config"
	"github.com/evetabi/opportunity/internal/metrics"
	"github.com/evetabi/opportunity/internal/service"
	"github.com/evetabi/opportunity/internal/ws"
	"github.com/gin-gonic/gin"
)

// RouterDeps bundles every dependency needed to build the router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	MarketSvc     *service.MarketService
	BidSvc        *service.BidService
	ResolutionSvc *service.ResolutionService
	SettlementSvc *service.SettlementService
	Hub           *ws.Hub           // optional
	Metrics       *metrics.Recorder // optional
	Cfg           *config.Config
}

// SetupRouter creates and configures the main Gin engine with all routes,
// middleware, CORS, and rate limiting rules. ctx bounds background work
// started by middleware.
func SetupRouter(ctx context.Context, deps RouterDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	if deps.Metrics != nil {
		r.Use(middleware.MetricsMiddleware(deps.Metrics))
	}

	// ── CORS ─────────────────────────────────────────────────────────────────
	r.Use(corsMiddleware(deps.Cfg))

	// ── Health check ─────────────────────────────────────────────────────────
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	// ── Handlers ─────────────────────────────────────────────────────────────
	marketH := handler.NewMarketHandler(deps.MarketSvc)
	bidH := handler.NewBidHandler(deps.BidSvc)
	lifecycleH := handler.NewLifecycleHandler(deps.ResolutionSvc)
	claimH := handler.NewClaimHandler(deps.SettlementSvc)

	// ── Rate limiter (mutations only) ─────────────────────────────────────────
	writeRL := middleware.RateLimitMiddleware(ctx, deps.Cfg.Server.RateLimitRPS)

	api := r.Group("/api")
	{
		// ── Markets (reads) ──────────────────────────────────────────────────
		markets := api.Group("/markets")
		{
			markets.GET("", marketH.ListMarkets)
			markets.GET("/stats", marketH.Stats)
			markets.GET("/:id", marketH.GetByID)
		}

		// ── Markets (writes) ─────────────────────────────────────────────────
		writes := api.Group("/markets")
		writes.Use(writeRL)
		{
			writes.POST("", marketH.Create)
			writes.POST("/:id/bids", bidH.PlaceBid)
			writes.POST("/:id/lock", lifecycleH.Lock)
			writes.POST("/:id/resolve", lifecycleH.Resolve)
			writes.POST("/:id/resolve-no", lifecycleH.ResolveNo)
			writes.POST("/:id/claims/trader", claimH.ClaimTrader)
			writes.POST("/:id/claims/sponsor", claimH.ClaimSponsor)
		}

		// ── Admin ─────────────────────────────────────────────────────────────
		if !deps.Cfg.Server.AdminResetDisabled {
			api.POST("/admin/reset", writeRL, marketH.Reset)
		}
	}

	// ── WebSocket ─────────────────────────────────────────────────────────────
	if deps.Hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			deps.Hub.ServeWs(c.Writer, c.Request)
		})
	}

	return r
}

// ── CORS helper ───────────────────────────────────────────────────────────────

// corsMiddleware returns a gin middleware that sets appropriate CORS headers.
// Outside production, or with no configured origins, all origins are allowed.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	allowed := make(map[string]bool, len(cfg.Server.AllowedOrigins))
	for _, o := range cfg.Server.AllowedOrigins {
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if !cfg.IsProd() || len(allowed) == 0 {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" && allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
