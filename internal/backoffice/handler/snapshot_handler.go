package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/evetabi/opportunity/internal/repository"
	"github.com/evetabi/opportunity/internal/service"
	"github.com/gin-gonic/gin"
)

// Archiver uploads a snapshot document. Implemented by archive.Archiver.
type Archiver interface {
	PutSnapshot(ctx context.Context, data []byte, at time.Time) (string, error)
}

// SnapshotHandler exposes the raw persisted document.
type SnapshotHandler struct {
	repo     *repository.SnapshotRepository
	archiver Archiver
}

// NewSnapshotHandler creates a SnapshotHandler. archiver may be nil.
func NewSnapshotHandler(repo *repository.SnapshotRepository, archiver Archiver) *SnapshotHandler {
	return &SnapshotHandler{repo: repo, archiver: archiver}
}

// Export godoc
// GET /admin/snapshot
// Returns the normalized document exactly as it would be persisted.
func (h *SnapshotHandler) Export(c *gin.Context) {
	data, err := h.repo.Export(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not export snapshot")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="snapshot.json"`)
	c.Data(http.StatusOK, "application/json", data)
}

// Archive godoc
// POST /admin/snapshot/archive
func (h *SnapshotHandler) Archive(c *gin.Context) {
	if h.archiver == nil {
		respondError(c, http.StatusServiceUnavailable, "ERR_ARCHIVE_DISABLED", "snapshot archive is not configured")
		return
	}
	ctx := c.Request.Context()

	data, err := h.repo.Export(ctx)
	if err != nil {
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not export snapshot")
		return
	}
	key, err := h.archiver.PutSnapshot(ctx, data, time.Now())
	if err != nil {
		_ = c.Error(err)
		respondError(c, http.StatusBadGateway, "ERR_ARCHIVE_FAILED", "snapshot upload failed")
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"key": key, "bytes": len(data)})
}

// OpsHandler runs bulk lifecycle operations.
type OpsHandler struct {
	marketSvc     *service.MarketService
	resolutionSvc *service.ResolutionService
}

// NewOpsHandler creates an OpsHandler.
func NewOpsHandler(marketSvc *service.MarketService, resolutionSvc *service.ResolutionService) *OpsHandler {
	return &OpsHandler{marketSvc: marketSvc, resolutionSvc: resolutionSvc}
}

// LockExpired godoc
// POST /admin/markets/lock-expired
func (h *OpsHandler) LockExpired(c *gin.Context) {
	ids, err := h.resolutionSvc.LockExpired(c.Request.Context(), time.Now())
	if err != nil {
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not lock expired markets")
		return
	}
	if ids == nil {
		ids = []int{}
	}
	respondSuccess(c, http.StatusOK, gin.H{"locked": ids})
}

// Reset godoc
// POST /admin/reset
func (h *OpsHandler) Reset(c *gin.Context) {
	snap, err := h.marketSvc.ResetToSeed(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not reset state")
		return
	}
	respondSuccess(c, http.StatusOK, snap)
}
