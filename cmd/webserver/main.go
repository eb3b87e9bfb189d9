package main

import (
	"log"
	"os"
	"time"

	"github.com/amitdubeyup/jobpay-backend/configs"
	"github.com/amitdubeyup/jobpay-backend/internal/cache"
	"github.com/amitdubeyup/jobpay-backend/internal/database"
	"github.com/amitdubeyup/jobpay-backend/internal/handlers"
	"github.com/amitdubeyup/jobpay-backend/internal/middleware"
	"github.com/amitdubeyup/jobpay-backend/internal/security"
	"github.com/amitdubeyup/jobpay-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

// @title JobPay API
// @version 1.0
// @description Multi-tenant job-marketplace backend with Redis-backed security middleware

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using default configuration")
	}

	if err := configs.LoadConfig(); err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize database and cache
	database.GetDBManager()
	cacheMgr := cache.GetCacheManager()

	// Real-time alert feed
	alertFeed := handlers.NewAlertFeedHandler()
	go alertFeed.RunHub()

	// Security subsystem
	secCfg := configs.AppConfig.Security
	registry := security.NewBlockRegistry(cacheMgr)
	ledger := security.NewSuspiciousLedger(cacheMgr, registry, secCfg)
	tracker := security.NewRequestTracker(cacheMgr, ledger, secCfg)
	metrics := security.NewMetricsRecorder(cacheMgr, secCfg, alertFeed)
	policies := security.NewPolicyTable()

	// Services and handlers
	authService := services.NewAuthService()
	authHandler := handlers.NewAuthHandler(authService)
	jobHandler := handlers.NewJobHandler()
	securityHandler := handlers.NewSecurityHandler(registry, ledger, metrics, alertFeed)

	if os.Getenv("GIN_MODE") != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Global middleware: block check first, then tracking, sanitization
	// and metrics around everything else.
	router.Use(gin.Recovery())
	router.Use(middleware.IPBlockMiddleware(registry))
	router.Use(middleware.RequestTrackingMiddleware(tracker, ledger, policies))
	router.Use(middleware.SanitizationMiddleware(ledger))
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.ValidationMiddleware())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Public routes
	router.POST("/api/auth/register", authHandler.Register)
	router.POST("/api/auth/login", authHandler.Login)
	router.GET("/api/jobs", jobHandler.ListJobs)
	router.GET("/api/jobs/:id", jobHandler.GetJob)

	// Protected routes
	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(authService))

	protected.POST("/auth/logout", authHandler.Logout)
	protected.POST("/jobs", middleware.RequireRole("employer"), jobHandler.CreateJob)
	protected.PUT("/jobs/:id", middleware.RequireRole("employer"), jobHandler.UpdateJob)
	protected.DELETE("/jobs/:id", middleware.RequireRole("employer"), jobHandler.DeleteJob)
	protected.POST("/jobs/:id/apply", jobHandler.ApplyToJob)
	protected.GET("/applications", jobHandler.ListApplications)
	protected.POST("/jobs/:id/bookmark", jobHandler.BookmarkJob)
	protected.DELETE("/jobs/:id/bookmark", jobHandler.RemoveBookmark)
	protected.GET("/bookmarks", jobHandler.ListBookmarks)

	// Admin security surface
	admin := protected.Group("/admin/security")
	admin.Use(middleware.RequireRole("admin"))
	admin.GET("/blocked", securityHandler.GetBlockedIPs)
	admin.GET("/suspicious", securityHandler.GetSuspiciousActivity)
	admin.GET("/suspicious/:ip", securityHandler.GetSuspiciousRecord)
	admin.GET("/stats", securityHandler.GetStats)
	admin.GET("/metrics", securityHandler.GetSystemMetrics)
	admin.GET("/endpoints", securityHandler.GetEndpointStats)
	admin.GET("/alerts", securityHandler.GetPerformanceAlerts)
	admin.POST("/block", securityHandler.BlockIP)
	admin.DELETE("/block/:ip", securityHandler.UnblockIP)
	admin.POST("/import", securityHandler.ImportMaliciousIPs)

	// WebSocket alert feed
	if configs.AppConfig.EnableWebSocket {
		router.GET("/ws/alerts", alertFeed.HandleConnections)
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().Unix(),
			"services": map[string]string{
				"database": "connected",
				"redis": func() string {
					if cacheMgr.IsAvailable() {
						return "connected"
					} else {
						return "degraded"
					}
				}(),
			},
		})
	})

	port := ":" + configs.AppConfig.ServerPort
	log.Printf("Server starting on port %s", port)

	if err := router.Run(port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
