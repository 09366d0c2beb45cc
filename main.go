package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"sales_portal_backend/config"
	"sales_portal_backend/models"
	"sales_portal_backend/routes"
	"sales_portal_backend/scheduler"
	"sales_portal_backend/services/archive"
	"sales_portal_backend/services/cache"
	"sales_portal_backend/services/exchangerate"
	"sales_portal_backend/services/salesdata"
	"sales_portal_backend/services/stream"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// sourcesInitialized tracks whether the region databases came up.
// The /ready probe reads it from another goroutine.
var sourcesInitialized bool
var sourcesInitMutex sync.RWMutex

func main() {
	log.Println("==============================================")
	log.Println("  Sales Portal Backend - Starting...")
	log.Println("==============================================")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("Warning: Config load issue: %v", err)
	}

	// Set Gin mode based on environment
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router
	router := gin.New()

	// Add middlewares
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger())

	// Setup health check endpoints FIRST so the platform can detect the
	// service is up; sources come online in the background.
	setupHealthEndpoints(router)

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	// Start server IMMEDIATELY so probes see us listening
	go func() {
		log.Printf("Server listening on 0.0.0.0:%s", cfg.Port)
		log.Println("==============================================")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Connect region sources and wire the pipeline in background. The
	// handles are written by the init goroutine and read at shutdown, so
	// they share a mutex.
	var (
		pipelineMu      sync.Mutex
		jobScheduler    *scheduler.Scheduler
		snapshotArchive *archive.Archive
	)
	hub := stream.NewHub()

	go func() {
		dbs := make(map[string]*gorm.DB)
		for _, region := range cfg.Regions() {
			db, err := config.InitRegionDB(region)
			if err != nil {
				log.Printf("ERROR: %s source connection failed: %v", region, err)
				continue
			}
			dbs[region] = db
		}
		if len(dbs) == 0 {
			log.Println("Service will continue in limited mode (health check only)")
			return
		}

		store := cache.NewStore()
		fetcher := salesdata.NewFetcher(dbs, cfg.QueryTimeout)
		resolver := exchangerate.NewDefaultResolver(cfg.FallbackRate, cfg.RateProviderTimeout)
		service := salesdata.NewService(fetcher, store, resolver,
			salesdata.DefaultExclusions(), cfg.Regions(),
			cfg.BookingsCacheTTL, cfg.OpenOrdersCacheTTL)

		// Snapshot history archive; the pipeline runs without it if the
		// local database cannot be opened.
		arc, err := archive.NewArchive(cfg.ArchivePath)
		if err != nil {
			log.Printf("Warning: Snapshot archive unavailable: %v", err)
			arc = nil
		} else {
			go runArchiveRetention(arc)
		}

		service.SetPublishHook(func(snap *models.Snapshot) {
			if arc != nil {
				if err := arc.SaveSnapshot(snap); err != nil {
					log.Printf("Warning: Failed to archive %s/%s snapshot: %v",
						snap.Dataset, snap.Region, err)
				}
			}
			hub.BroadcastSnapshot(snap)
		})
		service.SetRateHook(hub.BroadcastRate)

		sourcesInitMutex.Lock()
		sourcesInitialized = true
		sourcesInitMutex.Unlock()

		// Start background scheduler (runs the startup refresh itself)
		sched := scheduler.NewScheduler(service, cfg.BookingsInterval, cfg.OpenOrdersInterval)
		sched.Start()

		pipelineMu.Lock()
		jobScheduler = sched
		snapshotArchive = arc
		pipelineMu.Unlock()

		// Setup all API routes
		routes.SetupRoutes(router, service, store, sched, arc, hub)

		log.Println("Application fully initialized with region sources")
	}()

	// Graceful shutdown
	gracefulShutdown(server, func() {
		pipelineMu.Lock()
		sched := jobScheduler
		arc := snapshotArchive
		pipelineMu.Unlock()

		if sched != nil {
			sched.Stop()
		}
		hub.Shutdown()
		if arc != nil {
			arc.Close()
		}
	})
}

// runArchiveRetention prunes snapshot history older than 90 days, once a day.
func runArchiveRetention(a *archive.Archive) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		if err := a.Prune(time.Now().AddDate(0, 0, -90)); err != nil {
			log.Printf("Warning: Archive prune failed: %v", err)
		}
	}
}

// setupHealthEndpoints sets up liveness and readiness probes
func setupHealthEndpoints(router *gin.Engine) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Sales Portal Backend API",
			"version": "1.0.0",
		})
	})

	// Liveness probe - always returns OK if server is running
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// Readiness probe - checks if the refresh pipeline is wired
	router.GET("/ready", func(c *gin.Context) {
		sourcesInitMutex.RLock()
		ready := sourcesInitialized
		sourcesInitMutex.RUnlock()

		if !ready {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Region sources not connected",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
		})
	})

	// Startup probe - can be used for initial health check
	router.GET("/startup", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "started",
		})
	})
}

// corsMiddleware returns a CORS middleware handler
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger returns a request logging middleware
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip logging for health checks to reduce noise
		path := c.Request.URL.Path
		if path == "/health" || path == "/ready" || path == "/startup" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		// Only log errors or slow requests
		if c.Writer.Status() >= 400 || duration > 1*time.Second {
			log.Printf("%s %s %d %v", c.Request.Method, path, c.Writer.Status(), duration)
		}
	}
}

// gracefulShutdown stops the pipeline, then the HTTP server
func gracefulShutdown(server *http.Server, stopPipeline func()) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Printf("Received signal %v, shutting down gracefully...", sig)

	stopPipeline()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server shutdown completed")
}
