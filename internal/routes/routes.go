package routes

import (
	"net/http"

	"github.com/hunghhdev/sqlcache/internal/handlers"
	"github.com/hunghhdev/sqlcache/internal/middleware"
	"github.com/hunghhdev/sqlcache/internal/realtime"
	"github.com/hunghhdev/sqlcache/internal/store"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(st *store.Store, hub *realtime.Hub) *gin.Engine {
	// Create a new GIN Router
	ginRouter := gin.Default()

	// CORS middleware (for frontend integration)
	ginRouter.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Health check endpoint: reports whether the backing store is reachable
	ginRouter.GET("/health", func(c *gin.Context) {
		if err := st.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "down",
				"error":  err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"size":   mustSize(c, st),
		})
	})

	// Public routes (no authentication required)
	api := ginRouter.Group("/api")
	{
		// Login endpoint
		api.POST("/login", handlers.Login)
	}

	// Protected routes (authentication required)
	protectedRoutes := api.Group("")
	protectedRoutes.Use(middleware.JWTAuthMiddleware())
	{
		// Single-entry endpoints
		protectedRoutes.GET("/cache/:key", handlers.GetEntry(st))
		protectedRoutes.PUT("/cache/:key", handlers.PutEntry(st))
		protectedRoutes.DELETE("/cache/:key", handlers.DeleteEntry(st))
		protectedRoutes.GET("/cache/:key/exists", handlers.ContainsEntry(st))
		protectedRoutes.GET("/cache/:key/ttl", handlers.GetEntryTTL(st))
		protectedRoutes.POST("/cache/:key/ttl", handlers.RefreshEntryTTL(st))
		protectedRoutes.POST("/cache/:key/put-if-absent", handlers.PutEntryIfAbsent(st))
		// Whole-cache endpoints
		protectedRoutes.DELETE("/cache", handlers.ClearCache(st))
		protectedRoutes.GET("/keys", handlers.GetKeys(st))
		protectedRoutes.DELETE("/keys", handlers.EvictByPattern(st))
		protectedRoutes.GET("/size", handlers.GetSize(st))
		protectedRoutes.POST("/cleanup", handlers.Cleanup(st))
		// Batch endpoints
		protectedRoutes.POST("/cache/batch/get", handlers.BatchGet(st))
		protectedRoutes.POST("/cache/batch/put", handlers.BatchPut(st))
		protectedRoutes.POST("/cache/batch/evict", handlers.BatchEvict(st))
		// Statistics endpoints
		protectedRoutes.GET("/statistics", handlers.GetStatistics(st))
		protectedRoutes.POST("/statistics/reset", handlers.ResetStatistics(st))
		// Event feed
		protectedRoutes.GET("/events", handlers.EventFeed(hub))
	}

	return ginRouter
}

// mustSize reports the live entry count for the health payload; a failure
// here should not fail an otherwise healthy check.
func mustSize(c *gin.Context, st *store.Store) int64 {
	size, err := st.Size(c.Request.Context())
	if err != nil {
		return -1
	}
	return size
}
