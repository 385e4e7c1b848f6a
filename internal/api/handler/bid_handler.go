package handler

import (
	"net/http"
	"time"

	"github.com/evetabi/auction/internal/api/middleware"
	"github.com/evetabi/auction/internal/domain"
	"github.com/evetabi/auction/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BidHandler serves bid placement and bid history endpoints.
type BidHandler struct {
	bidSvc *service.BidService
}

// NewBidHandler creates a BidHandler.
func NewBidHandler(bidSvc *service.BidService) *BidHandler {
	return &BidHandler{bidSvc: bidSvc}
}

// placeBidResponse is returned for an accepted bid.
type placeBidResponse struct {
	Bid        *domain.Bid           `json:"bid"`
	Auction    domain.AuctionSummary `json:"auction"`
	Extended   bool                  `json:"extended"`
	MinNextBid decimal.Decimal       `json:"min_next_bid"`
}

// PlaceBid godoc
// POST /api/auctions/:id/bids [JWT]
// Body: {"amount":"120.00","is_auto":false}
func (h *BidHandler) PlaceBid(c *gin.Context) {
	userID := middleware.GetUserID(c)

	auctionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid auction id")
		return
	}

	var body struct {
		Amount string `json:"amount"  binding:"required"`
		IsAuto bool   `json:"is_auto"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	amount, err := decimal.NewFromString(body.Amount)
	if err != nil || !amount.IsPositive() {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "amount must be a positive decimal string")
		return
	}

	res, err := h.bidSvc.PlaceBid(c.Request.Context(), domain.PlaceBidRequest{
		AuctionID: auctionID,
		BidderID:  userID,
		Amount:    amount,
		IsAuto:    body.IsAuto,
	})
	if err != nil {
		respondDomainError(c, err, "could not place bid")
		return
	}

	respondSuccess(c, http.StatusCreated, placeBidResponse{
		Bid:        res.Bid,
		Auction:    res.Auction.ToSummary(time.Now().UTC()),
		Extended:   res.Extended(),
		MinNextBid: res.Auction.MinNextBid(),
	})
}

// GetMyBids godoc
// GET /api/bids/my?page=1&limit=20 [JWT]
func (h *BidHandler) GetMyBids(c *gin.Context) {
	userID := middleware.GetUserID(c)
	page, limit := parsePagination(c)

	bids, total, err := h.bidSvc.MyBids(c.Request.Context(), userID, limit, (page-1)*limit)
	if err != nil {
		respondDomainError(c, err, "could not fetch bids")
		return
	}
	respondList(c, bids, total, page, limit)
}
