package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/evetabi/auction/internal/domain"
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

// respondDomainError maps engine errors onto HTTP statuses. Bid errors that
// carry prices expose them as "current_bid" and "min_next_bid" so the client
// can re-bid without another read. Anything unrecognised is a 500 with
// fallback as the message.
func respondDomainError(c *gin.Context, err error, fallback string) {
	status, code := http.StatusInternalServerError, "ERR_INTERNAL"
	switch {
	case errors.Is(err, domain.ErrAuctionNotFound):
		status, code = http.StatusNotFound, "ERR_AUCTION_NOT_FOUND"
	case errors.Is(err, domain.ErrAuctionNotActive):
		status, code = http.StatusConflict, "ERR_AUCTION_NOT_ACTIVE"
	case errors.Is(err, domain.ErrAuctionEnded):
		status, code = http.StatusGone, "ERR_AUCTION_ENDED"
	case errors.Is(err, domain.ErrBidTooLow):
		status, code = http.StatusUnprocessableEntity, "ERR_BID_TOO_LOW"
	case domain.IsConflict(err):
		status, code = http.StatusConflict, "ERR_CONFLICT"
	case errors.Is(err, domain.ErrInvalidAmount):
		status, code = http.StatusBadRequest, "ERR_INVALID_AMOUNT"
	case errors.Is(err, domain.ErrForbidden):
		status, code = http.StatusForbidden, "ERR_FORBIDDEN"
	case domain.IsAuthError(err):
		status, code = http.StatusUnauthorized, "ERR_UNAUTHORIZED"
	case errors.Is(err, domain.ErrInvalidAuction):
		status, code = http.StatusBadRequest, "ERR_VALIDATION"
	}

	if status == http.StatusInternalServerError {
		respondError(c, status, code, fallback)
		return
	}

	body := gin.H{
		"success": false,
		"error":   err.Error(),
		"code":    code,
	}
	if minimum, ok := domain.MinimumFor(err); ok {
		body["min_next_bid"] = minimum
	}
	if current, ok := domain.CurrentBidFor(err); ok {
		body["current_bid"] = current
	}
	c.AbortWithStatusJSON(status, body)
}

// parsePagination reads ?page=&limit= with defaults 1 and 20, limit capped
// at 100.
func parsePagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return
}
