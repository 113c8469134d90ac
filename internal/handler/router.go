package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/leonardo-panseri/discord-coins/shared/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// NewRouter builds the admin API. Every /v1 route requires a bearer token signed
// with secret; /v1/admin routes also require the admin claim.
func NewRouter(h *LedgerHandler, secret []byte, serviceName string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.LoggingMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1", middleware.AuthMiddleware(secret))
	{
		v1.GET("/accounts/:memberId", h.GetAccount)
		v1.GET("/organizations/:name", h.GetOrganization)
		v1.GET("/organizations/:name/donors", h.TopDonors)
		v1.GET("/leaderboard/accounts", h.TopAccounts)
		v1.GET("/leaderboard/organizations", h.TopOrganizations)
	}

	admin := v1.Group("/admin", middleware.RequireAdmin())
	{
		admin.PUT("/accounts/:memberId/balance", h.SetBalance)
		admin.POST("/accounts/:memberId/credits", h.AddCredits)
		admin.PUT("/accounts/:memberId/blacklist", h.SetBlacklisted)
		admin.PUT("/organizations/:name/balance", h.SetOrganizationBalance)
		admin.PUT("/settings", h.UpdateSettings)
	}

	return router
}
