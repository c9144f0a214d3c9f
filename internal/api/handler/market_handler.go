package handler

import (
	"net/http"
	"time"

	"github.com/evetabi/opportunity/internal/domain"
	"github.com/evetabi/opportunity/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// MarketHandler serves the market directory and market creation.
type MarketHandler struct {
	marketSvc *service.MarketService
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(marketSvc *service.MarketService) *MarketHandler {
	return &MarketHandler{marketSvc: marketSvc}
}

// ListMarkets godoc
// GET /api/markets?filter=active&page=1&limit=50
func (h *MarketHandler) ListMarkets(c *gin.Context) {
	page, limit := parsePagination(c)

	markets, err := h.marketSvc.ListMarkets(c.Request.Context(), domain.Filter(c.Query("filter")))
	if err != nil {
		respondServiceError(c, err, "could not list markets")
		return
	}

	total := len(markets)
	start, end := pageBounds(page, limit, total)
	respondList(c, markets[start:end], total, page, limit)
}

// GetByID godoc
// GET /api/markets/:id
func (h *MarketHandler) GetByID(c *gin.Context) {
	id, ok := parseMarketID(c)
	if !ok {
		return
	}
	market, err := h.marketSvc.GetMarket(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "could not fetch market")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"market":  market,
		"penalty": domain.FormatPenalty(market.PenaltyBps),
		"window":  domain.WindowCopy(market.OpportunityWindowEnd, time.Now()),
	})
}

// Stats godoc
// GET /api/markets/stats
func (h *MarketHandler) Stats(c *gin.Context) {
	stats, err := h.marketSvc.Stats(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "could not compute stats")
		return
	}
	respondSuccess(c, http.StatusOK, stats)
}

// Create godoc
// POST /api/markets
// Body: {"question":"...","penalty_bps":500,"option_labels":["Yes","No"],"initial_collateral":"250"}
func (h *MarketHandler) Create(c *gin.Context) {
	var body struct {
		Question             string     `json:"question"`
		PenaltyBps           int        `json:"penalty_bps"`
		OpportunityWindowEnd *time.Time `json:"opportunity_window_end"`
		CollateralAddress    string     `json:"collateral_address"`
		CollateralSymbol     string     `json:"collateral_symbol"`
		OptionLabels         []string   `json:"option_labels" binding:"required"`
		InitialCollateral    string     `json:"initial_collateral"`
		Sponsor              string     `json:"sponsor"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	initial := decimal.Zero
	if body.InitialCollateral != "" {
		d, err := decimal.NewFromString(body.InitialCollateral)
		if err != nil {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "initial_collateral must be a decimal string")
			return
		}
		initial = d
	}

	market, err := h.marketSvc.CreateMarket(c.Request.Context(), service.CreateMarketInput{
		Question:             body.Question,
		PenaltyBps:           body.PenaltyBps,
		OpportunityWindowEnd: body.OpportunityWindowEnd,
		CollateralAddress:    body.CollateralAddress,
		CollateralSymbol:     body.CollateralSymbol,
		OptionLabels:         body.OptionLabels,
		InitialCollateral:    initial,
		Sponsor:              body.Sponsor,
	})
	if err != nil {
		respondServiceError(c, err, "could not create market")
		return
	}
	respondSuccess(c, http.StatusCreated, market)
}

// Reset godoc
// POST /api/admin/reset
func (h *MarketHandler) Reset(c *gin.Context) {
	snap, err := h.marketSvc.ResetToSeed(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "could not reset state")
		return
	}
	respondSuccess(c, http.StatusOK, snap)
}
