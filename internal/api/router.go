package api

import (
	"log/slog"
	"net/http"

	"rec-lem-prices/internal/api/handlers"
	"rec-lem-prices/internal/api/middleware"
	"rec-lem-prices/internal/data"
	"rec-lem-prices/internal/schedule"

	"github.com/gin-gonic/gin"
)

// Options wires the router's collaborators. Zero values are usable: runs use
// the built-in pool scheduler and are not stored.
type Options struct {
	Scheduler    schedule.Config
	NewScheduler handlers.SchedulerFactory
	Store        *data.RunStore
	CORSOrigins  []string
	Logger       *slog.Logger
}

// NewRouter builds the HTTP API on top of engine, usually gin.Default() or
// gin.New() in tests.
func NewRouter(engine *gin.Engine, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	newScheduler := opts.NewScheduler
	if newScheduler == nil {
		newScheduler = func(cfg schedule.Config) schedule.Scheduler {
			return schedule.NewPoolScheduler(cfg, logger)
		}
	}

	engine.Use(middleware.CORS(opts.CORSOrigins...))
	engine.Use(middleware.ErrorHandler(logger))

	mechanismHandler := handlers.NewMechanismHandler()
	priceHandler := handlers.NewPriceHandler()
	runHandler := handlers.NewRunHandler(newScheduler, opts.Scheduler, opts.Store, logger)

	// Health check
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API routes
	api := engine.Group("/api/v1")
	{
		api.GET("/mechanisms", mechanismHandler.ListMechanisms)
		api.POST("/prices", priceHandler.Price)

		api.POST("/runs", runHandler.RunPrices)
		api.GET("/runs/:id/ledger", runHandler.GetLedger)
		api.POST("/runs/compare", runHandler.CompareRuns)
	}

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "Not found"}})
	})
	return engine
}
