package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/docmill/docmill/internal/config"
	"github.com/docmill/docmill/internal/database"
	"github.com/docmill/docmill/internal/engine"
	"github.com/docmill/docmill/internal/janitor"
	"github.com/docmill/docmill/internal/logging"
	"github.com/docmill/docmill/internal/ratelimit"
	"github.com/docmill/docmill/internal/security"
	"github.com/docmill/docmill/internal/server"
	"github.com/docmill/docmill/internal/storage"
	"github.com/docmill/docmill/internal/task"
)

func main() {
	// Load .env if present
	_ = godotenv.Load()

	port := config.Get("PORT", "8000")
	addr := ":" + port

	if mode, ok := os.LookupEnv("GIN_MODE"); ok {
		gin.SetMode(mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := database.Initialize(); err != nil {
		log.Fatalf("database init failed: %v", err)
	}
	if err := storage.Initialize(); err != nil {
		log.Fatalf("storage init failed: %v", err)
	}

	// Rate-limit counters live in Redis when configured, so limits hold
	// across replicas; otherwise a per-process store is used.
	var limiterStore ratelimit.Store
	var memory *ratelimit.MemoryStore
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Fatalf("invalid REDIS_URL: %v", err)
		}
		limiterStore = ratelimit.NewRedisStore(redis.NewClient(opts))
		logging.Logf("[STARTUP] Rate limiting backed by Redis")
	} else {
		memory = ratelimit.NewMemoryStore()
		limiterStore = memory
		logging.Logf("[STARTUP] Rate limiting backed by process memory")
	}

	workRoot := config.Get("WORK_DIR", os.TempDir())
	pipeline := task.New(
		database.DB,
		storage.GetBackend(),
		ratelimit.New(limiterStore),
		security.NewChecker(),
		engine.New(workRoot),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go janitor.New(database.DB, storage.GetBackend(), memory).Run(ctx)

	router := server.NewRouter(pipeline)
	logging.Logf("[STARTUP] Listening on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
