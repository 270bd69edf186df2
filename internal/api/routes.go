package api

import (
	"net/http"
	"time"

	"iap-verify-api/internal/config"
	"iap-verify-api/internal/database"
	"iap-verify-api/internal/middleware"
	"iap-verify-api/internal/models"
	"iap-verify-api/internal/services"

	"github.com/gin-gonic/gin"
)

// SetupRoutes sets up all routes
func SetupRoutes(r *gin.Engine) {
	// Initialize app manager
	middleware.InitAppManager()

	appService := services.NewAppService()
	client := services.NewAppStoreClient()
	reconciler := services.NewReconciler(config.AppConfig.GracePeriodDays)

	var cache services.ResultCache
	if database.GetRedis() != nil {
		ttl := time.Duration(config.AppConfig.CacheTTLMinutes) * time.Minute
		cache = services.NewOutcomeCache(database.GetRedis(), ttl)
	}

	verifier := services.NewReceiptVerificationService(client, reconciler, cache)
	receiptHandler := NewReceiptHandler(
		verifier,
		appService,
		database.NewValidationLogStore(),
		appService,
		services.NewWebhookNotifier(),
	)

	// API route group
	api := r.Group("/api")
	{
		// Receipt verification routes (client API - no authentication required)
		receipt := api.Group("/receipt")
		{
			receipt.POST("/verify", receiptHandler.VerifyReceipt)
		}

		// Receipt routes for app backend (requires app authentication)
		receiptBackend := api.Group("/receipt")
		receiptBackend.Use(middleware.AppAuthMiddleware())
		{
			receiptBackend.GET("/:transaction_id", receiptHandler.GetReceiptHistory)
		}

		// App management routes (for admin use)
		admin := api.Group("/admin")
		{
			admin.GET("/apps", GetApps)
			admin.POST("/apps", CreateApp)
			admin.PUT("/apps/:bundle_id", UpdateApp)
			admin.DELETE("/apps/:bundle_id", DeleteApp)
			admin.GET("/apps/:bundle_id/stats", GetAppStats)
		}
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "iap-verify-service",
		})
	})
}

// GetApps gets all apps
func GetApps(c *gin.Context) {
	appService := services.NewAppService()
	apps, err := appService.GetAllApps()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Failed to get apps",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    apps,
	})
}

// CreateAppRequest represents create app request
type CreateAppRequest struct {
	BundleID           string `json:"bundle_id" binding:"required"`
	AppName            string `json:"app_name" binding:"required"`
	APIKey             string `json:"api_key" binding:"required"`
	Description        string `json:"description"`
	SharedSecret       string `json:"shared_secret"`
	WebhookCallbackURL string `json:"webhook_callback_url"`
	WebhookSecret      string `json:"webhook_secret"`
}

// CreateApp creates a new app registration
func CreateApp(c *gin.Context) {
	var req CreateAppRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid request format: " + err.Error(),
		})
		return
	}

	app := &models.App{
		BundleID:           req.BundleID,
		AppName:            req.AppName,
		APIKey:             req.APIKey,
		Description:        req.Description,
		SharedSecret:       req.SharedSecret,
		WebhookCallbackURL: req.WebhookCallbackURL,
		WebhookSecret:      req.WebhookSecret,
		IsActive:           true,
	}

	appService := services.NewAppService()
	if err := appService.CreateApp(app); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Failed to create app: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "App created successfully",
		"data":    app,
	})
}

// UpdateAppRequest represents update app request
type UpdateAppRequest struct {
	AppName            string `json:"app_name"`
	Description        string `json:"description"`
	SharedSecret       string `json:"shared_secret"`
	WebhookCallbackURL string `json:"webhook_callback_url"`
	WebhookSecret      string `json:"webhook_secret"`
	IsActive           *bool  `json:"is_active"`
}

// UpdateApp updates an existing app registration
func UpdateApp(c *gin.Context) {
	bundleID := c.Param("bundle_id")
	if bundleID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Bundle ID is required",
		})
		return
	}

	var req UpdateAppRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid request format: " + err.Error(),
		})
		return
	}

	// Build update map
	updates := make(map[string]interface{})
	if req.AppName != "" {
		updates["app_name"] = req.AppName
	}
	if req.Description != "" {
		updates["description"] = req.Description
	}
	if req.SharedSecret != "" {
		updates["shared_secret"] = req.SharedSecret
	}
	if req.WebhookCallbackURL != "" {
		updates["webhook_callback_url"] = req.WebhookCallbackURL
	}
	if req.WebhookSecret != "" {
		updates["webhook_secret"] = req.WebhookSecret
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	appService := services.NewAppService()
	if err := appService.UpdateApp(bundleID, updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Failed to update app: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "App updated successfully",
	})
}

// DeleteApp deletes an app registration
func DeleteApp(c *gin.Context) {
	bundleID := c.Param("bundle_id")
	if bundleID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Bundle ID is required",
		})
		return
	}

	appService := services.NewAppService()
	if err := appService.DeleteApp(bundleID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Failed to delete app: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "App deleted successfully",
	})
}

// GetAppStats gets verification statistics for an app
func GetAppStats(c *gin.Context) {
	bundleID := c.Param("bundle_id")
	if bundleID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Bundle ID is required",
		})
		return
	}

	appService := services.NewAppService()
	stats, err := appService.GetAppStats(bundleID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Failed to get app stats: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    stats,
	})
}
