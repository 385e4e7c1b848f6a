package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/evetabi/auction/internal/config"
	"github.com/evetabi/auction/internal/service"
	"github.com/gin-gonic/gin"
)

// Sweeper is the part of LifecycleService the ops endpoint triggers.
type Sweeper interface {
	RunSweep(ctx context.Context) (service.SweepResult, error)
}

// DashboardHandler serves /admin/dashboard and the manual sweep trigger.
type DashboardHandler struct {
	auctionSvc *service.AuctionService
	sweeper    Sweeper
	cfg        *config.Config
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(auctionSvc *service.AuctionService, sweeper Sweeper, cfg *config.Config) *DashboardHandler {
	return &DashboardHandler{auctionSvc: auctionSvc, sweeper: sweeper, cfg: cfg}
}

// Dashboard godoc
// GET /admin/dashboard
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	counts, err := h.auctionSvc.StatusCounts(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"auctions_by_status": counts,
		"auctions_total":     total,
		"sweep_interval_sec": int64(h.cfg.Auction.SweepInterval.Seconds()),
		"ending_soon_window": h.cfg.Auction.EndingSoonWindow.String(),
		"max_bid_attempts":   h.cfg.Auction.MaxBidAttempts,
		"server_time":        time.Now().UTC(),
	})
}

// Sweep godoc
// POST /admin/sweep
//
// Runs one lifecycle sweep synchronously. Lets an external cron drive the
// lifecycle when the in-process scheduler is disabled, and lets ops force a
// pass after an outage. Candidate-query failures still return the partial
// counts alongside the error.
func (h *DashboardHandler) Sweep(c *gin.Context) {
	res, err := h.sweeper.RunSweep(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
			"code":    "ERR_SWEEP_PARTIAL",
			"data":    res,
		})
		return
	}
	respondSuccess(c, http.StatusOK, res)
}
