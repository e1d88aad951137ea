package routes

import (
	"time"

	"stock_price_updater/controllers"
	"stock_price_updater/middleware"

	"github.com/gin-gonic/gin"
)

// SetupRoutes wires the HTTP surface: health check, market status, manual
// trigger and the WebSocket result feed.
func SetupRoutes(router *gin.Engine, rc *controllers.RefreshController, jwtSecret string) {
	router.GET("/", rc.HealthCheck)
	router.GET("/health", rc.HealthCheck)

	api := router.Group("/api/v1")
	{
		marketGroup := api.Group("/market")
		{
			marketGroup.GET("/status", rc.MarketStatus)
		}

		refresh := api.Group("/refresh")
		refresh.Use(
			middleware.TriggerRateLimitMiddleware(middleware.NewTriggerRateLimiter(6, time.Minute)),
			middleware.TriggerAuthMiddleware(jwtSecret),
		)
		{
			refresh.POST("/trigger", rc.TriggerRefresh)
		}

		api.GET("/ws/prices", rc.PriceFeed)
	}
}
