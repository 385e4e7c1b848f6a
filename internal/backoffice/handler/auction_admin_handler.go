package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/evetabi/auction/internal/domain"
	"github.com/evetabi/auction/internal/repository"
	"github.com/evetabi/auction/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuctionAdminHandler serves /admin/auctions endpoints.
type AuctionAdminHandler struct {
	auctionSvc    *service.AuctionService
	settlementSvc *service.SettlementService
	store         repository.Store
}

// NewAuctionAdminHandler creates an AuctionAdminHandler.
func NewAuctionAdminHandler(
	auctionSvc *service.AuctionService,
	settlementSvc *service.SettlementService,
	store repository.Store,
) *AuctionAdminHandler {
	return &AuctionAdminHandler{auctionSvc: auctionSvc, settlementSvc: settlementSvc, store: store}
}

// List godoc
// GET /admin/auctions?status=ENDED,ARCHIVED&seller_id=uuid&page=1&limit=50
func (h *AuctionAdminHandler) List(c *gin.Context) {
	page, limit := adminPagination(c)
	f := repository.AuctionFilter{Limit: limit, Offset: (page - 1) * limit}

	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			f.Statuses = append(f.Statuses, domain.AuctionStatus(strings.ToUpper(strings.TrimSpace(s))))
		}
	}
	if raw := c.Query("store_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid store_id")
			return
		}
		f.StoreID = &id
	}
	if raw := c.Query("seller_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid seller_id")
			return
		}
		f.SellerID = &id
	}

	auctions, total, err := h.auctionSvc.ListAuctions(c.Request.Context(), f)
	if err != nil {
		respondAdminError(c, err)
		return
	}
	respondList(c, auctions, total, page, limit)
}

// Detail godoc
// GET /admin/auctions/:id
func (h *AuctionAdminHandler) Detail(c *gin.Context) {
	id, ok := auctionID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	a, err := h.auctionSvc.GetAuction(ctx, id)
	if err != nil {
		respondAdminError(c, err)
		return
	}

	bids, err := h.store.ListBids(ctx, id, 200, 0)
	if err != nil {
		respondAdminError(c, err)
		return
	}
	order, err := h.store.GetOrderByAuction(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrOrderNotFound) {
		respondAdminError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"auction": a,
		"bids":    bids,
		"order":   order,
	})
}

// Create godoc
// POST /admin/auctions
func (h *AuctionAdminHandler) Create(c *gin.Context) {
	var req domain.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	a, err := h.auctionSvc.CreateAuction(c.Request.Context(), req)
	if err != nil {
		respondAdminError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, a)
}

// Cancel godoc
// POST /admin/auctions/:id/cancel
func (h *AuctionAdminHandler) Cancel(c *gin.Context) {
	id, ok := auctionID(c)
	if !ok {
		return
	}
	a, err := h.auctionSvc.CancelAuction(c.Request.Context(), id)
	if err != nil {
		respondAdminError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, a)
}

// Archive godoc
// POST /admin/auctions/:id/archive
func (h *AuctionAdminHandler) Archive(c *gin.Context) {
	id, ok := auctionID(c)
	if !ok {
		return
	}
	a, err := h.auctionSvc.ArchiveAuction(c.Request.Context(), id)
	if err != nil {
		respondAdminError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, a)
}

// Settle godoc
// POST /admin/auctions/:id/settle
//
// Re-running settlement for an already settled auction is not an error: the
// response is 200 with "already_complete": true.
func (h *AuctionAdminHandler) Settle(c *gin.Context) {
	id, ok := auctionID(c)
	if !ok {
		return
	}
	res, err := h.settlementSvc.Settle(c.Request.Context(), id)
	if errors.Is(err, domain.ErrSettlementAlreadyComplete) {
		respondSuccess(c, http.StatusOK, gin.H{"already_complete": true})
		return
	}
	if err != nil {
		respondAdminError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, res)
}

func auctionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid auction id")
		return uuid.Nil, false
	}
	return id, true
}
