package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/evetabi/auction/internal/domain"
	"github.com/evetabi/auction/internal/repository"
	"github.com/evetabi/auction/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuctionHandler serves public auction query endpoints.
type AuctionHandler struct {
	auctionSvc *service.AuctionService
	bidSvc     *service.BidService
}

// NewAuctionHandler creates an AuctionHandler.
func NewAuctionHandler(auctionSvc *service.AuctionService, bidSvc *service.BidService) *AuctionHandler {
	return &AuctionHandler{auctionSvc: auctionSvc, bidSvc: bidSvc}
}

// auctionView is the public shape of one auction: the record plus values a
// bidding client needs without computing them itself.
type auctionView struct {
	*domain.Auction
	MinNextBid  string `json:"min_next_bid"`
	TimeLeftSec int64  `json:"time_left_sec"`
}

func newAuctionView(a *domain.Auction, now time.Time) auctionView {
	return auctionView{
		Auction:     a,
		MinNextBid:  a.MinNextBid().String(),
		TimeLeftSec: int64(a.TimeLeft(now).Seconds()),
	}
}

// ListAuctions godoc
// GET /api/auctions?status=RUNNING,ENDING_SOON&store_id=uuid&page=1&limit=20
func (h *AuctionHandler) ListAuctions(c *gin.Context) {
	f, ok := parseAuctionFilter(c)
	if !ok {
		return
	}
	if len(f.Statuses) == 0 {
		f.Statuses = domain.BiddableStatuses
	}

	auctions, total, err := h.auctionSvc.ListAuctions(c.Request.Context(), f)
	if err != nil {
		respondDomainError(c, err, "could not list auctions")
		return
	}
	now := time.Now().UTC()
	summaries := make([]domain.AuctionSummary, 0, len(auctions))
	for _, a := range auctions {
		summaries = append(summaries, a.ToSummary(now))
	}
	respondList(c, summaries, total, f.Offset/f.Limit+1, f.Limit)
}

// GetByID godoc
// GET /api/auctions/:id
func (h *AuctionHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid auction id")
		return
	}

	a, err := h.auctionSvc.GetAuction(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err, "could not fetch auction")
		return
	}
	respondSuccess(c, http.StatusOK, newAuctionView(a, time.Now().UTC()))
}

// ListBids godoc
// GET /api/auctions/:id/bids?page=1&limit=20
func (h *AuctionHandler) ListBids(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid auction id")
		return
	}
	page, limit := parsePagination(c)

	bids, total, err := h.bidSvc.ListBids(c.Request.Context(), id, limit, (page-1)*limit)
	if err != nil {
		respondDomainError(c, err, "could not fetch bids")
		return
	}
	respondList(c, bids, total, page, limit)
}

// ── helpers ──────────────────────────────────────────────────────────────────

// parseAuctionFilter reads ?status=, ?store_id=, ?seller_id= and pagination.
// On a malformed value it writes a 400 and returns false.
func parseAuctionFilter(c *gin.Context) (repository.AuctionFilter, bool) {
	page, limit := parsePagination(c)
	f := repository.AuctionFilter{Limit: limit, Offset: (page - 1) * limit}

	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			f.Statuses = append(f.Statuses, domain.AuctionStatus(strings.ToUpper(strings.TrimSpace(s))))
		}
	}
	for param, dst := range map[string]**uuid.UUID{"store_id": &f.StoreID, "seller_id": &f.SellerID} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid "+param)
			return f, false
		}
		*dst = &id
	}
	return f, true
}
