// Package main runs the revattest HTTP service.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"revattest/internal/config"
	"revattest/internal/handlers"
	"revattest/internal/repositories"
	"revattest/internal/repositories/cache"
	"revattest/internal/routes"
	"revattest/internal/services/attest"
	"revattest/internal/services/ingest"
	"revattest/internal/telemetry"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	config.LoadEnv()
	cfg := config.Load()

	if cfg.ServiceJWTSecret == "" {
		log.Fatal("SERVICE_JWT_SECRET must be set")
	}

	logLevel := slog.LevelInfo
	if !cfg.IsProduction() {
		logLevel = slog.LevelDebug
	}
	slogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(slogger)

	ctx := context.Background()
	shutdownTracing, err := telemetry.Init(ctx, "revattest", cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	db, err := repositories.InitDB(cfg.DB)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}

	redisClient := cache.NewRedisClient(cfg.Redis)
	cacheService := cache.NewCacheService(redisClient, cfg.CacheTTL)

	var roster *config.Roster
	if path := config.GetEnv("ROSTER_PATH", ""); path != "" {
		if roster, err = config.LoadRoster(path); err != nil {
			log.Fatalf("Failed to load roster: %v", err)
		}
	}

	records := repositories.NewRecordRepository(db)
	ingestService := ingest.NewService(records, ingest.Config{
		Options:  ingest.AdapterOptions(cfg, slogger),
		Cache:    cacheService,
		CacheTTL: cfg.CacheTTL,
		Logger:   slogger,
	})
	attestService := attest.NewService(records)

	app := fiber.New(fiber.Config{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		BodyLimit:    32 << 20,
	})
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	routes.SetupRoutes(app, routes.Deps{
		JWTSecret:       cfg.ServiceJWTSecret,
		IngestPerMinute: cfg.IngestPerMinute,
		Health:          handlers.NewHealthHandler(map[string]handlers.Pinger{"redis": cacheService, "database": sqlPinger{sqlDB}}),
		Attestations:    handlers.NewAttestationHandler(attestService),
		Ingest:          handlers.NewIngestHandler(ingestService, roster, cfg.WindowDays),
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down")

	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		log.Printf("Failed to shut down server: %v", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("Failed to flush traces: %v", err)
	}
	if err := redisClient.Close(); err != nil {
		log.Printf("Failed to close Redis connection: %v", err)
	}
	if err := sqlDB.Close(); err != nil {
		log.Printf("Failed to close database connection: %v", err)
	}
}
