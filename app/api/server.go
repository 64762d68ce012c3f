package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer creates the HTTP server with all routes configured.
func NewServer(handler *Handler, apiAccessKey string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	r.Use(gin.Recovery())

	setupRoutes(r, handler, apiAccessKey)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey string) {
	// Read-only endpoints
	r.GET("/articles", handler.ListArticles)
	r.GET("/sources", handler.ListSources)
	r.GET("/health", handler.GetHealth)
	r.GET("/stats", handler.GetStats)

	// Mutating endpoints (conditionally enabled with authentication)
	if apiAccessKey != "" {
		api := r.Group("/api")
		api.Use(authMiddleware(apiAccessKey))
		{
			api.POST("/scrape", handler.TriggerScrape)
			api.POST("/sources/:id/revalidate", handler.RevalidateSource)
		}
		slog.Info("API endpoints enabled with authentication")
	} else {
		slog.Info("API endpoints disabled (API_ACCESS_KEY not set)")
	}

	r.GET("/", handler.GetRoot)

	// Favicon handler (return 204 to avoid 404s)
	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

// authMiddleware guards the mutating endpoints with a shared key.
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			c.Abort()
			return
		}

		if providedKey != apiAccessKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
