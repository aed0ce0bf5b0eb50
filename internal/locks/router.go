package locks

import (
	"ridehub/internal/shared/config"
	"ridehub/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupLockRoutes(rg *gin.RouterGroup, controller *Controller, cfg *config.Config) {
	trips := rg.Group("/trips")
	{
		trips.GET("/:tripId/seats", controller.GetTripSeatMap)
		trips.GET("/:tripId/seats/:seatNo", controller.GetSeatStatus)
		trips.POST("/:tripId/locks", middleware.JWTAuth(cfg), controller.Hold)
	}

	lockGroup := rg.Group("/locks")
	lockGroup.Use(middleware.JWTAuth(cfg))
	{
		lockGroup.POST("/:lockId/renew", controller.Renew)
		lockGroup.DELETE("/:lockId", controller.Release)
		lockGroup.POST("/:lockId/confirm", controller.Confirm)
		lockGroup.POST("/:lockId/abort", controller.Abort)
	}
}
