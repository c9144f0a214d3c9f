// Package backoffice serves the operator endpoints on a separate listener:
// a directory dashboard, snapshot export and archive, bulk auto-lock, and
// reset. It shares the server process so the store keeps a single writer.
package backoffice

import (
	"net/http"

	"github.com/evetabi/opportunity/internal/backoffice/handler"
	"github.com/evetabi/opportunity/internal/config"
	"github.com/evetabi/opportunity/internal/repository"
	"github.com/evetabi/opportunity/internal/service"
	"github.com/evetabi/opportunity/internal/ws"
	"github.com/gin-gonic/gin"
)

// BackofficeDeps bundles every dependency needed for the admin router.
type BackofficeDeps struct {
	MarketSvc     *service.MarketService
	ResolutionSvc *service.ResolutionService
	Repo          *repository.SnapshotRepository
	Archiver      handler.Archiver // nil when archiving is disabled
	Hub           *ws.Hub          // optional, for the client count
	Cfg           *config.Config
}

// SetupBackofficeRouter creates the admin Gin engine.
func SetupBackofficeRouter(deps BackofficeDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(ipWhitelistMiddleware(deps.Cfg.Server.BackofficeAllowedIPs))

	dashH := handler.NewDashboardHandler(deps.MarketSvc, deps.Hub)
	snapH := handler.NewSnapshotHandler(deps.Repo, deps.Archiver)
	opsH := handler.NewOpsHandler(deps.MarketSvc, deps.ResolutionSvc)

	admin := r.Group("/admin")
	{
		admin.GET("/dashboard", dashH.Dashboard)

		admin.GET("/snapshot", snapH.Export)
		admin.POST("/snapshot/archive", snapH.Archive)

		admin.POST("/markets/lock-expired", opsH.LockExpired)
		admin.POST("/reset", opsH.Reset)
	}

	return r
}

// ── IP whitelist middleware ───────────────────────────────────────────────────

// ipWhitelistMiddleware blocks requests from IPs not in the allowlist.
// An empty list allows every caller.
func ipWhitelistMiddleware(allowedIPs []string) gin.HandlerFunc {
	if len(allowedIPs) == 0 {
		return func(c *gin.Context) { c.Next() } // dev mode: no restriction
	}

	allowed := make(map[string]bool, len(allowedIPs))
	for _, ip := range allowedIPs {
		allowed[ip] = true
	}

	return func(c *gin.Context) {
		if !allowed[c.ClientIP()] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "access denied: your IP is not whitelisted",
				"code":    "ERR_FORBIDDEN",
			})
			return
		}
		c.Next()
	}
}
