package middleware

import (
	"net/http"
	"time"

	"iap-verify-api/internal/response"
	"iap-verify-api/internal/services"

	"github.com/gin-gonic/gin"
)

var AppService *services.AppService

// InitAppManager initializes the app manager
func InitAppManager() {
	AppService = services.NewAppService()
}

// AppAuthMiddleware provides app authentication middleware
func AppAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get bundle ID and API key
		bundleID := c.GetHeader("X-Bundle-ID")
		apiKey := c.GetHeader("X-API-Key")

		// If not passed via header, try to get from query parameters
		if bundleID == "" {
			bundleID = c.Query("bundle_id")
		}
		if apiKey == "" {
			apiKey = c.Query("api_key")
		}

		// Validate bundle ID and API key
		if bundleID == "" || apiKey == "" {
			c.JSON(http.StatusUnauthorized, response.Error("Missing bundle_id or api_key"))
			c.Abort()
			return
		}

		// Validate app using database
		if !AppService.ValidateApp(bundleID, apiKey) {
			c.JSON(http.StatusUnauthorized, response.Error("Invalid bundle_id or api_key"))
			c.Abort()
			return
		}

		// Store bundle ID and additional info in context
		c.Set("bundle_id", bundleID)
		c.Set("request_time", time.Now())
		c.Next()
	}
}
