package handler

import (
	"net/http"

	"github.com/evetabi/opportunity/internal/service"
	"github.com/gin-gonic/gin"
)

// ClaimHandler serves trader and sponsor claims.
type ClaimHandler struct {
	settlementSvc *service.SettlementService
}

// NewClaimHandler creates a ClaimHandler.
func NewClaimHandler(settlementSvc *service.SettlementService) *ClaimHandler {
	return &ClaimHandler{settlementSvc: settlementSvc}
}

// ClaimTrader godoc
// POST /api/markets/:id/claims/trader
func (h *ClaimHandler) ClaimTrader(c *gin.Context) {
	id, ok := parseMarketID(c)
	if !ok {
		return
	}
	market, amount, err := h.settlementSvc.ClaimTraderFunds(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "could not claim funds")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"market": market, "amount": amount})
}

// ClaimSponsor godoc
// POST /api/markets/:id/claims/sponsor
func (h *ClaimHandler) ClaimSponsor(c *gin.Context) {
	id, ok := parseMarketID(c)
	if !ok {
		return
	}
	market, amount, err := h.settlementSvc.ClaimSponsorPayout(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "could not claim sponsor payout")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"market": market, "amount": amount})
}
