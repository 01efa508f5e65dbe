package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fieldops/attendance-engine/internal/config"
	"github.com/fieldops/attendance-engine/internal/database"
	"github.com/fieldops/attendance-engine/internal/integrity"
	"github.com/fieldops/attendance-engine/internal/integrity/lock"
	"github.com/fieldops/attendance-engine/internal/server"
	"github.com/fieldops/attendance-engine/internal/storage"
	"github.com/fieldops/attendance-engine/pkg/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	zapLogger, err := logger.New(logLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	cfg, err := config.Load()
	if err != nil {
		zapLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := database.NewPostgresDB(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
	if err != nil {
		zapLogger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}

	store := storage.NewStore(db, zapLogger.Sugar())
	if err := store.AutoMigrate(); err != nil {
		zapLogger.Fatal("Failed to run migrations", zap.Error(err))
	}
	entityStore := storage.NewEntityStore(db)

	var locker lock.Locker
	switch cfg.Lock.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		locker = lock.NewRedisLocker(client, zapLogger.Sugar(), cfg.Lock.Timeout, cfg.Lock.TTL)
	default:
		locker = lock.NewRegistry(zapLogger.Sugar(), cfg.Lock.Timeout)
	}

	engine, err := integrity.NewEngine(zapLogger.Sugar(), locker, store, entityStore, store, cfg.Integrity)
	if err != nil {
		zapLogger.Fatal("Failed to build integrity engine", zap.Error(err))
	}

	srv := server.New(engine, zapLogger)
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Handler(),
	}

	go func() {
		zapLogger.Info("Attendance engine listening", zap.String("addr", cfg.Server.Addr), zap.String("lock_backend", cfg.Lock.Backend))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		zapLogger.Error("Graceful shutdown failed", zap.Error(err))
	}
}
