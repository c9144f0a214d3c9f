package handler

import (
	"net/http"

	"github.com/evetabi/opportunity/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// BidHandler serves bid placement.
type BidHandler struct {
	bidSvc *service.BidService
}

// NewBidHandler creates a BidHandler.
func NewBidHandler(bidSvc *service.BidService) *BidHandler {
	return &BidHandler{bidSvc: bidSvc}
}

// PlaceBid godoc
// POST /api/markets/:id/bids
// Body: {"option_id":0,"collateral_in":"100.00","max_price":"0.5","trader":"0x..."}
func (h *BidHandler) PlaceBid(c *gin.Context) {
	marketID, ok := parseMarketID(c)
	if !ok {
		return
	}

	var body struct {
		Trader       string `json:"trader"`
		OptionID     *int   `json:"option_id"     binding:"required"`
		CollateralIn string `json:"collateral_in" binding:"required"`
		MaxPrice     string `json:"max_price"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	collateral, err := decimal.NewFromString(body.CollateralIn)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "collateral_in must be a decimal string")
		return
	}
	req := service.PlaceBidRequest{
		MarketID:     marketID,
		Trader:       body.Trader,
		OptionID:     *body.OptionID,
		CollateralIn: collateral,
	}
	if body.MaxPrice != "" {
		p, err := decimal.NewFromString(body.MaxPrice)
		if err != nil {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_PRICE", "max_price must be a decimal string")
			return
		}
		req.MaxPrice = &p
	}

	market, err := h.bidSvc.PlaceBid(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "could not place bid")
		return
	}
	respondSuccess(c, http.StatusCreated, market)
}
