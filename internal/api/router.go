package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/snapcaption/internal/api/handler"
	"github.com/timmy/snapcaption/internal/api/middleware"
	"github.com/timmy/snapcaption/internal/cache"
	"github.com/timmy/snapcaption/internal/logger"
	"github.com/timmy/snapcaption/internal/service"
	"github.com/timmy/snapcaption/internal/source"
)

// Dependencies holds everything the router wires into handlers.
type Dependencies struct {
	CaptionService *service.CaptionService
	RatingService  *service.RatingService
	HistoryService *service.HistoryService
	BatchService   *service.BatchService
	Cache          *cache.ContentCache
	Providers      handler.ProviderStatus
	Models         []handler.ModelInfo
	Logger         *logger.Logger

	// BatchSource builds the source for admin-triggered batch runs; nil
	// disables the batch endpoints.
	BatchSource func() source.Source
}

// RouterConfig holds HTTP-level settings.
type RouterConfig struct {
	Mode          string
	MaxUploadSize int64
	CORS          middleware.CORSConfig
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps *Dependencies, cfg *RouterConfig) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(deps.Logger))
	r.Use(middleware.CORS(cfg.CORS))

	healthHandler := handler.NewHealthHandler()
	captionHandler := handler.NewCaptionHandler(deps.CaptionService, cfg.MaxUploadSize)
	ratingHandler := handler.NewRatingHandler(deps.RatingService, deps.HistoryService)
	modelsHandler := handler.NewModelsHandler(deps.Providers, deps.Models)
	adminHandler := handler.NewAdminHandler(deps.Cache, deps.BatchService, deps.BatchSource)

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")
	{
		// Captions
		api.POST("/caption", captionHandler.Caption)
		api.GET("/images/:image_id", captionHandler.Image)

		// Ratings and history
		api.POST("/rate", ratingHandler.Rate)
		api.GET("/history", ratingHandler.History)
		api.GET("/history/:image_id/ratings", ratingHandler.ImageRatings)

		// Models
		api.GET("/models", modelsHandler.List)

		// Cache
		api.GET("/cache", adminHandler.CacheStats)
		api.DELETE("/cache", adminHandler.ClearCache)

		if adminHandler.BatchEnabled() {
			admin := api.Group("/admin")
			admin.POST("/batch", adminHandler.RunBatch)
			admin.GET("/batch/status", adminHandler.BatchStatus)
		}
	}

	return r
}
