package routes

import (
	"bid_monitoring_platform/admin"
	"bid_monitoring_platform/controllers"
	"bid_monitoring_platform/middleware"
	"bid_monitoring_platform/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRoutes sets up all API and admin UI routes
func SetupRoutes(router *gin.Engine, db *gorm.DB) {
	// Initialize controllers
	authController := controllers.NewAuthController(db)
	bidController := controllers.NewBidController(db)
	documentController := controllers.NewDocumentController(db)
	userController := controllers.NewUserController(db)
	metricsController := controllers.NewMetricsController(db)

	// Initialize admin controllers
	adminAuthController := admin.NewAuthController(db)
	adminController := admin.NewAdminController(db)
	settingsController := admin.NewSettingsController(db)

	// API v1 group
	api := router.Group("/api/v1")
	{
		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/login", authController.Login)
		}

		// Bid routes
		bids := api.Group("/bids")
		{
			bids.GET("", bidController.GetBids)
			bids.GET("/deadlines", bidController.GetDeadlines)
			bids.GET("/:id", bidController.GetBid)
			bids.GET("/:id/stages", bidController.GetBidStages)
			bids.GET("/:id/stages/available", bidController.GetAvailableStages)
			bids.GET("/:id/history", bidController.GetBidHistory)
			bids.GET("/:id/documents", bidController.GetBidDocuments)

			bids.POST("", middleware.JWTAuthMiddleware(), bidController.CreateBid)
			bids.PUT("/:id/status", middleware.JWTAuthMiddleware(), bidController.UpdateBidStatus)
			bids.PUT("/:id/stage", middleware.JWTAuthMiddleware(), bidController.UpdateBidStage)
			bids.POST("/:id/documents", middleware.JWTAuthMiddleware(), documentController.UploadDocument)
			bids.DELETE("/:id", middleware.JWTAuthMiddleware(), middleware.ManagerRoleMiddleware(), bidController.DeleteBid)
		}

		// Document routes
		documents := api.Group("/documents")
		{
			documents.DELETE("/:id", middleware.JWTAuthMiddleware(), documentController.DeleteDocument)
		}

		// User routes
		users := api.Group("/users")
		{
			users.GET("", userController.GetUsers)
			users.GET("/:id", userController.GetUser)

			users.POST("", middleware.JWTAuthMiddleware(), middleware.AdminRoleMiddleware(), userController.CreateUser)
			users.PUT("/:id/role", middleware.JWTAuthMiddleware(), middleware.AdminRoleMiddleware(), userController.UpdateUserRole)
			users.DELETE("/:id", middleware.JWTAuthMiddleware(), middleware.AdminRoleMiddleware(), userController.DeleteUser)
		}

		// Metrics routes
		metrics := api.Group("/metrics")
		{
			metrics.GET("/summary", metricsController.GetSummary)
			metrics.GET("/overview", metricsController.GetOverview)
			metrics.GET("/history", metricsController.GetHistory)
		}

		// Activity feed
		api.GET("/activity", bidController.GetActivity)
	}

	// WebSocket notifications
	router.GET("/ws/notifications", func(c *gin.Context) {
		services.GlobalNotificationService.HandleWebSocket(c.Writer, c.Request)
	})

	// Locally stored documents
	if services.GlobalDocumentStorage != nil {
		router.Static("/documents", services.GlobalDocumentStorage.LocalDir)
	}

	// Admin UI routes
	adminRoutes := router.Group("/admin")
	{
		// Public auth routes with rate limiting and CSRF protection on login
		adminRoutes.GET("/login", adminAuthController.LoginPage)
		adminRoutes.POST("/login",
			middleware.LoginRateLimitMiddleware(),
			middleware.CSRFMiddleware(),
			adminAuthController.Login)
		adminRoutes.GET("/logout", adminAuthController.Logout)

		// Protected admin pages
		protected := adminRoutes.Group("")
		protected.Use(adminAuthController.AuthMiddleware())
		{
			protected.GET("", adminController.Dashboard)
			protected.GET("/bids", adminController.BidsPage)
			protected.GET("/bids/:id", adminController.BidDetailPage)
			protected.GET("/activity", adminController.ActivityPage)
			protected.GET("/users", adminController.UsersPage)
			protected.GET("/settings", settingsController.SettingsPage)

			// Admin actions
			actions := protected.Group("/actions")
			{
				actions.POST("/create-bid", adminController.CreateBidAction)
				actions.POST("/update-status", adminController.UpdateStatusAction)
				actions.POST("/advance-stage", adminController.AdvanceStageAction)
				actions.POST("/upload-document", adminController.UploadDocumentAction)

				// User management requires the admin role
				userActions := actions.Group("")
				userActions.Use(adminAuthController.RequireAdminRole())
				{
					userActions.POST("/create-user", adminController.CreateUserAction)
					userActions.POST("/update-user-role", adminController.UpdateUserRoleAction)
					userActions.POST("/update-user-status", adminController.UpdateUserStatusAction)
					userActions.POST("/create-admin-user", adminController.CreateAdminUserAction)
				}

				actions.POST("/update-reminder-config", settingsController.UpdateReminderConfigAction)
				actions.POST("/run-reminder-now", settingsController.RunReminderNowAction)
				actions.POST("/archive-now", settingsController.ArchiveNowAction)
			}
		}
	}
}
