package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/hunghhdev/sqlcache/internal/database"
	"github.com/hunghhdev/sqlcache/internal/realtime"
	"github.com/hunghhdev/sqlcache/internal/routes"
	"github.com/hunghhdev/sqlcache/internal/store"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

func main() {
	// Open the backing database
	db, err := database.Open(getEnv("SQLCACHE_DSN", "sqlcache.db"))
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}

	// Event fan-out to websocket subscribers
	hub := realtime.NewHub()

	st := store.New(db, store.Options{
		AutoCreateTable:         true,
		EnableBackgroundCleanup: getEnvBool("SQLCACHE_BACKGROUND_CLEANUP", true),
		CleanupInterval:         getEnvSeconds("SQLCACHE_CLEANUP_INTERVAL_SECONDS", 5*time.Minute),
		AllowNullValues:         getEnvBool("SQLCACHE_ALLOW_NULL_VALUES", false),
		Listeners:               []store.Listener{realtime.NewEventBridge(hub)},
	})
	defer st.Shutdown()

	ginRoutes := routes.SetupRoutes(st, hub)

	port := ":" + getEnv("PORT", "8008")
	log.Printf("Cache server starting on port %s", port)
	log.Println("API endpoints:")
	log.Println("  POST   /api/login")
	log.Println("  GET    /api/cache/:key")
	log.Println("  PUT    /api/cache/:key")
	log.Println("  DELETE /api/cache/:key")
	log.Println("  POST   /api/cache/:key/put-if-absent")
	log.Println("  GET    /api/keys")
	log.Println("  GET    /api/statistics")
	log.Println("  GET    /api/events (websocket)")
	log.Println("  GET    /health")

	if err := ginRoutes.Run(port); err != nil {
		log.Fatal("Failed to start server: ", err)
	}
}
