package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"rec-lem-prices/internal/api"
	"rec-lem-prices/internal/data"
	"rec-lem-prices/internal/schedule"

	"github.com/gin-gonic/gin"
)

func main() {
	// Get configuration from environment
	port := os.Getenv("API_PORT")
	if port == "" {
		port = "8080"
	}

	ttl := data.DefaultRunTTL
	if ttlStr := os.Getenv("RUN_TTL"); ttlStr != "" {
		if parsed, err := time.ParseDuration(ttlStr); err == nil {
			ttl = parsed
		} else {
			log.Printf("Ignoring invalid RUN_TTL %q: %v", ttlStr, err)
		}
	}

	var sched schedule.Config
	if timeoutStr := os.Getenv("SCHEDULER_TIMEOUT"); timeoutStr != "" {
		if parsed, err := time.ParseDuration(timeoutStr); err == nil {
			sched.Timeout = parsed
		} else {
			log.Printf("Ignoring invalid SCHEDULER_TIMEOUT %q: %v", timeoutStr, err)
		}
	}

	var origins []string
	if raw := os.Getenv("CORS_ORIGINS"); raw != "" {
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}

	// Set up Gin router
	if os.Getenv("API_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	store := data.NewRunStore(ttl, data.DefaultCleanupInterval)
	defer store.Close()

	router := api.NewRouter(gin.Default(), api.Options{
		Scheduler:   sched,
		Store:       store,
		CORSOrigins: origins,
		Logger:      slog.New(slog.NewJSONHandler(os.Stderr, nil)),
	})
	log.Printf("Keeping runs for %s", ttl)

	// Start server
	addr := fmt.Sprintf(":%s", port)
	log.Printf("Starting API server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
