package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lumilearn/lumifeed/app/cfg"
)

// NewServer creates the HTTP server with all routes configured
func NewServer(handler *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// Middleware
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

	// CORS middleware for the app client
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-User-ID, X-Curator, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler)

	return r
}

// setupRoutes configures all the application routes
func setupRoutes(r *gin.Engine, handler *Handler) {
	appCfg := cfg.Get()

	// Feed session surface, consumed by the app client. The identity
	// middleware extracts the opaque user id and curator flag supplied by
	// the identity provider in front of this service.
	sessions := r.Group("/sessions")
	sessions.Use(identityMiddleware())
	{
		sessions.POST("", handler.CreateSession)
		sessions.GET("/:id", handler.GetSession)
		sessions.POST("/:id/visibility", handler.ReportVisibility)
		sessions.POST("/:id/answer", handler.Answer)
		sessions.POST("/:id/dismiss", handler.Dismiss)
		sessions.POST("/:id/mute", handler.SetMuted)
		sessions.POST("/:id/refresh", handler.RefreshSession)
		sessions.DELETE("/:id", handler.CloseSession)
	}

	// Reward read models
	r.GET("/users/:id/lumis", handler.GetBalance)
	r.GET("/users/:id/repetition", handler.GetRepetition)

	// Health and status endpoints
	r.GET("/health", handler.GetHealth)
	r.GET("/stats", handler.GetStats)

	// Curator studio endpoints (conditionally enabled with authentication)
	if appCfg.APIAccessKey != "" {
		api := r.Group("/api")
		api.Use(authMiddleware(appCfg.APIAccessKey))
		api.Use(identityMiddleware())
		{
			api.POST("/items", handler.CreateItem)
			api.GET("/items/:id", handler.GetItem)
			api.POST("/items/:id/approve", handler.ApproveItem)
			api.POST("/items/analyze", handler.AnalyzeItem)
			api.GET("/curators/:id/items", handler.ListCuratorItems)
			api.POST("/import", handler.TriggerImport)
		}
		slog.Info("Curator API endpoints enabled with authentication")
	} else {
		slog.Info("Curator API endpoints disabled (API_ACCESS_KEY not set)")
	}

	// Root endpoint with basic information
	r.GET("/", func(c *gin.Context) {
		endpoints := map[string]string{
			"session":    "/sessions (POST, X-User-ID header)",
			"visibility": "/sessions/<id>/visibility (POST)",
			"answer":     "/sessions/<id>/answer (POST)",
			"balance":    "/users/<id>/lumis",
			"repetition": "/users/<id>/repetition",
			"health":     "/health",
			"stats":      "/stats",
		}

		if appCfg.APIAccessKey != "" {
			endpoints["items"] = "/api/items (POST, requires X-API-Key header)"
			endpoints["analyze"] = "/api/items/analyze (POST, requires X-API-Key header)"
		}

		c.JSON(200, gin.H{
			"service":     "LumiFeed",
			"version":     appCfg.Version,
			"description": "Short-video learning feed with spaced quiz scheduling and lumi rewards",
			"endpoints":   endpoints,
			"api_status": map[string]interface{}{
				"enabled":       appCfg.APIAccessKey != "",
				"auth_required": appCfg.APIAccessKey != "",
				"header":        "X-API-Key",
			},
		})
	})

	// Favicon handler (return 204 to avoid 404s)
	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}

// identityMiddleware copies the identity provider's opaque outputs into
// the request context. The service never re-derives who the user is.
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", c.GetHeader("X-User-ID"))
		c.Set("isCurator", strings.EqualFold(c.GetHeader("X-Curator"), "true"))
		c.Next()
	}
}

// authMiddleware creates authentication middleware for curator endpoints
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		// Also check Authorization header with Bearer prefix
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
