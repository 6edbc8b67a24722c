package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/mockup-studio/internal/api/handler"
	"github.com/timmy/mockup-studio/internal/api/middleware"
	"github.com/timmy/mockup-studio/internal/config"
	"github.com/timmy/mockup-studio/internal/logger"
	"github.com/timmy/mockup-studio/internal/service"
	"gorm.io/gorm"
)

// Deps holds everything the HTTP layer talks to.
type Deps struct {
	Dispatcher    *service.Dispatcher
	Broker        *service.Broker
	Samples       *service.SampleStore
	GenerationLog *service.GenerationLogService
	DB            *gorm.DB
	Logger        *logger.Logger
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(cfg *config.ServerConfig, deps *Deps) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	log := deps.Logger
	if log == nil {
		log = logger.GetDefault()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(cfg.CORS))

	healthHandler := handler.NewHealthHandler(deps.DB)
	jobHandler := handler.NewJobHandler(deps.Dispatcher, deps.Broker, deps.Samples)
	logHandler := handler.NewLogHandler(deps.GenerationLog)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		// Jobs
		v1.POST("/jobs", jobHandler.Enqueue)
		v1.GET("/jobs", jobHandler.List)
		v1.GET("/jobs/events", jobHandler.Events)
		v1.DELETE("/jobs/completed", jobHandler.ClearCompleted)
		v1.GET("/jobs/:id", jobHandler.Get)
		v1.POST("/jobs/:id/cancel", jobHandler.Cancel)

		// Queue settings
		v1.PUT("/batch-mode", jobHandler.SetBatchMode)
		v1.GET("/samples", jobHandler.GetSamples)
		v1.PUT("/samples", jobHandler.SetSamples)

		// Generation log
		v1.GET("/log", logHandler.List)
		v1.DELETE("/log", logHandler.Delete)
	}

	return r
}
