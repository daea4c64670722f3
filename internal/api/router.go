package api

import (
	"github.com/gin-gonic/gin"

	"github.com/granarylabs/granary/internal/api/handler"
	"github.com/granarylabs/granary/internal/api/middleware"
	"github.com/granarylabs/granary/internal/config"
	"github.com/granarylabs/granary/internal/logger"
	"github.com/granarylabs/granary/internal/service"
	"github.com/granarylabs/granary/internal/status"
)

// Version is the service version reported by the health endpoint.
const Version = "1.0.0"

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	scheduler *service.Scheduler,
	store *status.Store,
	cfg *config.ServerConfig,
	log *logger.Logger,
) *gin.Engine {
	// Set Gin mode
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.CORS.AllowAllOrigins,
	}))

	// Create handlers
	healthHandler := handler.NewHealthHandler(Version)
	filesHandler := handler.NewFilesHandler(store)
	adminHandler := handler.NewAdminHandler(scheduler, log)

	// Health check
	r.GET("/health", healthHandler.Health)

	// Admin dashboard
	r.GET("/admin", adminHandler.AdminPage)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// File records
		v1.GET("/files", filesHandler.ListFiles)
		v1.GET("/file", filesHandler.GetFile)

		// Passes
		v1.POST("/passes", adminHandler.TriggerPass)
		v1.GET("/passes/status", adminHandler.GetPassStatus)
		v1.GET("/passes/last", adminHandler.GetLastPass)

		// Stats
		v1.GET("/stats", filesHandler.GetStats)
	}

	return r
}
