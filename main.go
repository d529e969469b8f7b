package main

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"bid_monitoring_platform/admin/templates"
	"bid_monitoring_platform/config"
	"bid_monitoring_platform/models"
	"bid_monitoring_platform/routes"
	"bid_monitoring_platform/scheduler"
	"bid_monitoring_platform/services"

	"github.com/gin-contrib/multitemplate"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// dbInitialized tracks whether database has been successfully initialized
// This global variable is used for thread-safe access across goroutines to allow
// the /ready health endpoint to dynamically check database status
var dbInitialized bool
var dbInitMutex sync.RWMutex

func main() {
	log.Println("==============================================")
	log.Println("  Bid Monitoring Platform - Starting...")
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

	// Load HTML templates from embedded filesystem
	if err := loadTemplates(router); err != nil {
		log.Printf("Warning: Could not load templates: %v", err)
	}

	// Setup health check endpoints FIRST so Cloud Run can detect the service is up
	// Database will be initialized in background
	setupHealthEndpoints(router)

	// Create HTTP server with timeouts optimized for Cloud Run
	// Bind to 0.0.0.0 explicitly for container networking
	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	// Start server IMMEDIATELY so Cloud Run knows we're listening
	go func() {
		log.Printf("Server listening on 0.0.0.0:%s", cfg.Port)
		log.Println("==============================================")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Initialize database and setup routes in background
	var jobScheduler *scheduler.Scheduler
	go func() {
		// Initialize database connection
		db, err := config.InitDB()
		if err != nil {
			log.Printf("ERROR: Database connection failed: %v", err)
			log.Println("Service will continue in limited mode (health check only)")
			return
		}

		// Make sure local data directories exist
		if err := config.EnsureDataDirs(); err != nil {
			log.Printf("Warning: Could not create data directories: %v", err)
		}

		// Run database migrations
		log.Println("Running database migrations...")
		if err := runMigrations(); err != nil {
			log.Printf("ERROR: Migration failed: %v", err)
		} else {
			log.Println("Database migrations completed successfully")
		}

		// Seed default sales team and admin user
		if err := models.SeedDefaultUser(config.DB); err != nil {
			log.Printf("Warning: Could not seed default users: %v", err)
		}
		if err := models.SeedDefaultAdminUser(config.DB); err != nil {
			log.Printf("Warning: Could not seed admin user: %v", err)
		}

		// Initialize global services
		initializeGlobalServices(db)

		// Mark database as ready
		dbInitMutex.Lock()
		dbInitialized = true
		dbInitMutex.Unlock()

		// Setup all API routes (includes admin routes with login)
		routes.SetupRoutes(router, db)

		// Start background scheduler
		jobScheduler = scheduler.NewScheduler(db)
		go jobScheduler.Start()

		log.Println("Application fully initialized with database")
	}()

	// Graceful shutdown
	gracefulShutdown(server, jobScheduler)
}

// runMigrations runs all database migrations
func runMigrations() error {
	db := config.DB

	// Migrate bid models (bids, stages, history)
	if err := models.MigrateBidModels(db); err != nil {
		return err
	}

	// Migrate document models
	if err := models.MigrateDocumentModels(db); err != nil {
		return err
	}

	// Migrate user models
	if err := models.MigrateUserModels(db); err != nil {
		return err
	}

	// Migrate admin models
	if err := models.MigrateAdminModels(db); err != nil {
		return err
	}

	return nil
}

// initializeGlobalServices initializes global service instances
func initializeGlobalServices(db *gorm.DB) {
	// Initialize analytics store first (metrics snapshots depend on it)
	if err := services.InitAnalytics(); err != nil {
		log.Printf("Warning: Failed to initialize analytics store: %v", err)
	}

	// Initialize document storage
	if err := services.InitDocumentStorage(); err != nil {
		log.Printf("Warning: Failed to initialize document storage: %v", err)
	}

	// Initialize MongoDB archive client if configured
	if err := services.InitMongoDBClient(); err != nil {
		log.Printf("MongoDB not configured or failed to connect: %v", err)
	}

	// Initialize WebSocket notification hub
	if err := services.InitNotificationService(); err != nil {
		log.Printf("Warning: Failed to initialize notification service: %v", err)
	}

	// Initialize metrics service
	if err := services.InitMetricsService(db); err != nil {
		log.Printf("Warning: Failed to initialize metrics service: %v", err)
	}

	// Initialize deadline reminder scheduler
	if err := services.InitReminderScheduler(db); err != nil {
		log.Printf("Warning: Failed to initialize reminder scheduler: %v", err)
	}

	log.Println("Global services initialized")
}

// templateFuncs returns custom template functions
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"add": func(a, b int) int {
			return a + b
		},
		"sub": func(a, b int) int {
			return a - b
		},
		"subtract": func(a, b int) int {
			return a - b
		},
		"mul": func(a, b int) int {
			return a * b
		},
		"div": func(a, b int) int {
			if b == 0 {
				return 0
			}
			return a / b
		},
		"iterate": func(n int) []int {
			result := make([]int, n)
			for i := 0; i < n; i++ {
				result[i] = i
			}
			return result
		},
	}
}

// loadTemplates loads HTML templates from embedded filesystem
func loadTemplates(router *gin.Engine) error {
	// Get embedded templates
	tmplFS := templates.TemplateFS

	// Read layout template first
	layoutContent, err := fs.ReadFile(tmplFS, "layout.html")
	if err != nil {
		return fmt.Errorf("failed to read layout.html: %w", err)
	}

	// Every page defines "content", so each page needs its own template
	// tree. A single shared tree would let the last parsed page win.
	renderer := multitemplate.NewRenderer()

	// Walk through embedded files and parse them
	var templateFiles []string
	err = fs.WalkDir(tmplFS, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path == "embed.go" {
			return nil
		}
		templateFiles = append(templateFiles, path)
		return nil
	})
	if err != nil {
		return err
	}

	// Parse each template file
	for _, path := range templateFiles {
		content, err := fs.ReadFile(tmplFS, path)
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", path, err)
		}

		// Skip layout.html as it's a base template
		if path == "layout.html" {
			continue
		}

		// For login.html, parse it standalone (it's a complete page)
		if path == "login.html" {
			renderer.AddFromStringsFuncs(path, templateFuncs(), string(content))
			continue
		}

		// Pages that define "content" must live in the same tree as the
		// layout that invokes {{ template "content" . }}.
		if strings.Contains(string(content), `{{ define "content" }}`) {
			combinedContent := string(layoutContent) + "\n" + string(content)
			renderer.AddFromStringsFuncs(path, templateFuncs(), combinedContent)
		} else {
			renderer.AddFromStringsFuncs(path, templateFuncs(), string(content))
		}
	}

	router.HTMLRender = renderer
	log.Println("HTML templates loaded successfully")
	return nil
}

// setupHealthEndpoints sets up health check endpoints for Cloud Run
func setupHealthEndpoints(router *gin.Engine) {
	// Root endpoint
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Bid Monitoring Platform API",
			"version": "1.0.0",
		})
	})

	// Liveness probe - always returns OK if server is running
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// Readiness probe - checks if service is ready to receive traffic
	router.GET("/ready", func(c *gin.Context) {
		dbInitMutex.RLock()
		isDBReady := dbInitialized
		dbInitMutex.RUnlock()

		if !isDBReady {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database not connected",
			})
			return
		}

		// Check database connection
		sqlDB, err := config.DB.DB()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database connection error",
			})
			return
		}

		if err := sqlDB.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database ping failed",
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
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
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

		// Only log errors or slow requests in production
		if c.Writer.Status() >= 400 || duration > 1*time.Second {
			log.Printf("%s %s %d %v", c.Request.Method, path, c.Writer.Status(), duration)
		}
	}
}

// gracefulShutdown handles graceful shutdown of the server
func gracefulShutdown(server *http.Server, jobScheduler *scheduler.Scheduler) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	sig := <-quit
	log.Printf("Received signal %v, shutting down gracefully...", sig)

	// Stop schedulers first so no new work starts
	if jobScheduler != nil {
		jobScheduler.Stop()
	}
	if services.GlobalReminderScheduler != nil {
		services.GlobalReminderScheduler.Stop()
	}

	// Disconnect WebSocket clients
	if services.GlobalNotificationService != nil {
		services.GlobalNotificationService.Shutdown()
	}

	// Create context with timeout for shutdown
	// Cloud Run gives 10 seconds for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Close database connection
	if config.DB != nil {
		sqlDB, err := config.DB.DB()
		if err == nil {
			sqlDB.Close()
			log.Println("Database connection closed")
		}
	}

	// Close analytics store, metrics cache and archive client
	if services.GlobalAnalytics != nil {
		services.GlobalAnalytics.Close()
	}
	if services.GlobalMetrics != nil {
		services.GlobalMetrics.Close()
	}
	if services.GlobalMongoClient != nil {
		services.GlobalMongoClient.Close()
	}

	log.Println("Server shutdown completed")
}
