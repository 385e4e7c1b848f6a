package backoffice

import (
	"net/http"
	"strings"

	"github.com/evetabi/auction/internal/api/middleware"
	"github.com/evetabi/auction/internal/auth"
	"github.com/evetabi/auction/internal/backoffice/handler"
	"github.com/evetabi/auction/internal/config"
	"github.com/evetabi/auction/internal/repository"
	"github.com/evetabi/auction/internal/service"
	"github.com/gin-gonic/gin"
)

// BackofficeDeps bundles every dependency needed for the admin router.
type BackofficeDeps struct {
	Verifier      *auth.TokenVerifier
	AuctionSvc    *service.AuctionService
	SettlementSvc *service.SettlementService
	Sweeper       handler.Sweeper
	Store         repository.Store
	Cfg           *config.Config
}

// SetupBackofficeRouter creates the admin Gin engine.
func SetupBackofficeRouter(deps BackofficeDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(ipAllowlistMiddleware(deps.Cfg.Server.BackofficeAllowedIPs))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	dashH := handler.NewDashboardHandler(deps.AuctionSvc, deps.Sweeper, deps.Cfg)
	auctionH := handler.NewAuctionAdminHandler(deps.AuctionSvc, deps.SettlementSvc, deps.Store)

	manage := middleware.ManageMiddleware()

	admin := r.Group("/admin")
	admin.Use(middleware.JWTMiddleware(deps.Verifier), middleware.BackofficeMiddleware())
	{
		admin.GET("/dashboard", dashH.Dashboard)
		admin.POST("/sweep", manage, dashH.Sweep)

		// Auctions
		a := admin.Group("/auctions")
		{
			a.GET("", auctionH.List)
			a.GET("/:id", auctionH.Detail)
			a.POST("", manage, auctionH.Create)
			a.POST("/:id/cancel", manage, auctionH.Cancel)
			a.POST("/:id/archive", manage, auctionH.Archive)
			a.POST("/:id/settle", manage, auctionH.Settle)
		}
	}

	return r
}

// ── IP allowlist middleware ───────────────────────────────────────────────────

// ipAllowlistMiddleware blocks requests from IPs not in the allowlist.
// An empty list allows everyone.
func ipAllowlistMiddleware(allowedIPs []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedIPs))
	for _, ip := range allowedIPs {
		if ip = strings.TrimSpace(ip); ip != "" {
			allowed[ip] = true
		}
	}
	if len(allowed) == 0 {
		return func(c *gin.Context) { c.Next() } // dev mode: no restriction
	}

	return func(c *gin.Context) {
		if !allowed[c.ClientIP()] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "access denied: your IP is not allowlisted",
				"code":    "ERR_IP_DENIED",
			})
			return
		}
		c.Next()
	}
}
