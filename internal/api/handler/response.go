package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/evetabi/opportunity/internal/domain"
	"github.com/gin-gonic/gin"
)

// ──────────────────────────────────────────────────────────────────────────────
// Standard response helpers
// ──────────────────────────────────────────────────────────────────────────────

// respondSuccess writes {"success": true, "data": data} with the given status.
func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// respondError writes {"success": false, "error": msg, "code": code}.
func respondError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}

// respondList writes {"success": true, "data": items, "meta": {...}}.
func respondList(c *gin.Context, items interface{}, total, page, limit int) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    items,
		"meta": gin.H{
			"total": total,
			"page":  page,
			"limit": limit,
		},
	})
}

// errorCodes maps engine sentinels to stable API codes.
var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrMarketNotFound, http.StatusNotFound, "ERR_MARKET_NOT_FOUND"},
	{domain.ErrInvalidInput, http.StatusBadRequest, "ERR_INVALID_INPUT"},
	{domain.ErrInvalidCollateral, http.StatusBadRequest, "ERR_INVALID_COLLATERAL"},
	{domain.ErrInvalidOption, http.StatusBadRequest, "ERR_INVALID_OPTION"},
	{domain.ErrInvalidFilter, http.StatusBadRequest, "ERR_INVALID_FILTER"},
	{domain.ErrMarketNotTrading, http.StatusConflict, "ERR_MARKET_NOT_TRADING"},
	{domain.ErrMarketNotLocked, http.StatusConflict, "ERR_MARKET_NOT_LOCKED"},
	{domain.ErrAlreadyResolved, http.StatusConflict, "ERR_ALREADY_RESOLVED"},
}

// respondServiceError translates a service error into the error envelope.
// Unknown errors become a 500 with the generic fallback message.
func respondServiceError(c *gin.Context, err error, fallback string) {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			respondError(c, e.status, e.code, err.Error())
			return
		}
	}
	_ = c.Error(err)
	respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", fallback)
}

// ── helpers ──────────────────────────────────────────────────────────────────

// parseMarketID reads the :id path parameter. It writes a 400 and returns
// false when the id is not an integer.
func parseMarketID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "market id must be an integer")
		return 0, false
	}
	return id, true
}

func parsePagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return
}

// pageBounds returns the [start, end) slice bounds of page over total items.
// Pages past the end yield an empty range without overflowing.
func pageBounds(page, limit, total int) (start, end int) {
	if page-1 >= (total+limit-1)/limit {
		return total, total
	}
	start = (page - 1) * limit
	end = start + limit
	if end > total {
		end = total
	}
	return start, end
}
