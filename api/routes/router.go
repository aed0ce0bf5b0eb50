// api/routes/router.go
package routes

import (
	"net/http"
	"time"

	"ridehub/internal/catalog"
	"ridehub/internal/locks"
	"ridehub/internal/notifications"
	"ridehub/internal/shared/config"
	"ridehub/internal/shared/database"
	"ridehub/pkg/cache"

	"github.com/gin-gonic/gin"
)

// Router holds all route dependencies
type Router struct {
	config   *config.Config
	db       *database.DB
	producer notifications.AvailabilityProducer

	cacheService   cache.Service
	catalogService catalog.Service
	lockService    locks.Service
	sweeper        *locks.Sweeper
}

// NewRouter creates a new router instance
func NewRouter(cfg *config.Config, db *database.DB, producer notifications.AvailabilityProducer) *Router {
	return &Router{
		config:   cfg,
		db:       db,
		producer: producer,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	r.cacheService = cache.NewService(r.db.GetRedisClient())

	r.setupHealthRoutes(engine)

	api := engine.Group(r.config.GetAPIBasePath())
	{
		// Catalog before locks: the lock service reads the seat map
		// through the catalog service.
		r.setupCatalogRoutes(api)
		r.setupLockRoutes(api)
	}
}

// Sweeper returns the background reclaimer built during route setup.
func (r *Router) Sweeper() *locks.Sweeper {
	return r.sweeper
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "ridehub-reservation",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "ridehub-reservation",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "operational",
			"api_version": r.config.APIVersion,
			"timestamp":   time.Now(),
		})
	})
}

// setupCatalogRoutes configures trip catalog routes
func (r *Router) setupCatalogRoutes(rg *gin.RouterGroup) {
	catalogRepo := catalog.NewRepository(r.db.GetPostgreSQL())
	catalogService := catalog.NewService(catalogRepo)
	catalogService.SetCacheService(r.cacheService)
	catalogController := catalog.NewController(catalogService)

	r.catalogService = catalogService

	catalog.SetupTripRoutes(rg, catalogController)
}

// setupLockRoutes configures seat reservation routes
func (r *Router) setupLockRoutes(rg *gin.RouterGroup) {
	catalogRepo := catalog.NewRepository(r.db.GetPostgreSQL())
	lockRepo := locks.NewRepository(r.db.GetPostgreSQL(), catalogRepo)
	lockService := locks.NewService(lockRepo, r.catalogService, r.producer, r.config)
	lockService.SetCacheService(r.cacheService)
	lockController := locks.NewController(lockService)

	r.lockService = lockService
	r.sweeper = locks.NewSweeper(lockRepo, r.producer, r.config)

	locks.SetupLockRoutes(rg, lockController, r.config)
}
