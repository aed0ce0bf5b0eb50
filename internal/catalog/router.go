package catalog

import (
	"github.com/gin-gonic/gin"
)

func SetupTripRoutes(rg *gin.RouterGroup, controller *Controller) {
	trips := rg.Group("/trips")
	{
		trips.GET("", controller.ListTrips)        // GET /api/v1/trips
		trips.GET("/:tripId", controller.GetTrip)  // GET /api/v1/trips/:tripId
	}
}
