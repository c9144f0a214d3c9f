package handler

import (
	"net/http"

	"github.com/evetabi/opportunity/internal/service"
	"github.com/gin-gonic/gin"
)

// LifecycleHandler serves lock and resolution endpoints.
type LifecycleHandler struct {
	resolutionSvc *service.ResolutionService
}

// NewLifecycleHandler creates a LifecycleHandler.
func NewLifecycleHandler(resolutionSvc *service.ResolutionService) *LifecycleHandler {
	return &LifecycleHandler{resolutionSvc: resolutionSvc}
}

// Lock godoc
// POST /api/markets/:id/lock
func (h *LifecycleHandler) Lock(c *gin.Context) {
	id, ok := parseMarketID(c)
	if !ok {
		return
	}
	market, err := h.resolutionSvc.Lock(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "could not lock market")
		return
	}
	respondSuccess(c, http.StatusOK, market)
}

// Resolve godoc
// POST /api/markets/:id/resolve
// Body: {"option_id":0}
func (h *LifecycleHandler) Resolve(c *gin.Context) {
	id, ok := parseMarketID(c)
	if !ok {
		return
	}
	var body struct {
		OptionID *int `json:"option_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	market, err := h.resolutionSvc.Resolve(c.Request.Context(), id, *body.OptionID)
	if err != nil {
		respondServiceError(c, err, "could not resolve market")
		return
	}
	respondSuccess(c, http.StatusOK, market)
}

// ResolveNo godoc
// POST /api/markets/:id/resolve-no
func (h *LifecycleHandler) ResolveNo(c *gin.Context) {
	id, ok := parseMarketID(c)
	if !ok {
		return
	}
	market, err := h.resolutionSvc.ResolveNo(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "could not resolve market")
		return
	}
	respondSuccess(c, http.StatusOK, market)
}
