package handler

import (
	"net/http"
	"time"

	"github.com/evetabi/opportunity/internal/domain"
	"github.com/evetabi/opportunity/internal/service"
	"github.com/evetabi/opportunity/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// DashboardHandler serves the /admin/dashboard endpoint.
type DashboardHandler struct {
	marketSvc *service.MarketService
	hub       *ws.Hub
}

// NewDashboardHandler creates a DashboardHandler. hub may be nil.
func NewDashboardHandler(marketSvc *service.MarketService, hub *ws.Hub) *DashboardHandler {
	return &DashboardHandler{marketSvc: marketSvc, hub: hub}
}

// marketRow is one line of the operator directory.
type marketRow struct {
	ID              int              `json:"id"`
	Title           string           `json:"title"`
	State           string           `json:"state"`
	Penalty         string           `json:"penalty"`
	Window          string           `json:"window"`
	Bids            int              `json:"bids"`
	OpenBids        int              `json:"open_bids"`
	TotalCollateral decimal.Decimal  `json:"total_collateral"`
	SponsorPayout   *decimal.Decimal `json:"sponsor_payout"`
}

// Dashboard godoc
// GET /admin/dashboard
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()

	markets, err := h.marketSvc.ListMarkets(ctx, domain.FilterAll)
	if err != nil {
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not load markets")
		return
	}

	now := time.Now()
	rows := make([]marketRow, 0, len(markets))
	totalCollateral := decimal.Zero
	for i := range markets {
		m := &markets[i]
		open := 0
		for _, b := range m.Bids {
			if b.IsOpen() {
				open++
			}
		}
		collateral := m.TotalCollateral()
		totalCollateral = totalCollateral.Add(collateral)
		rows = append(rows, marketRow{
			ID:              m.ID,
			Title:           m.Title,
			State:           m.State.String(),
			Penalty:         domain.FormatPenalty(m.PenaltyBps),
			Window:          domain.WindowCopy(m.OpportunityWindowEnd, now),
			Bids:            len(m.Bids),
			OpenBids:        open,
			TotalCollateral: collateral,
			SponsorPayout:   m.SponsorPayout,
		})
	}

	wsClients := 0
	if h.hub != nil {
		wsClients = h.hub.ConnectedCount()
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"stats":            domain.ComputeStats(markets),
		"total_collateral": totalCollateral,
		"ws_clients":       wsClients,
		"markets":          rows,
		"generated_at":     now.UTC(),
	})
}
