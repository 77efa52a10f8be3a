package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inventory-tracker/config"
	"inventory-tracker/internal/api"
	"inventory-tracker/internal/auth"
	"inventory-tracker/internal/broker"
	"inventory-tracker/internal/redisclient"
	"inventory-tracker/internal/service"
	"inventory-tracker/internal/store"
	"inventory-tracker/internal/util"
	"inventory-tracker/internal/view"
	"inventory-tracker/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const eventDedupeTTL = 24 * time.Hour

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting inventory tracker")

	tp, err := util.InitTracer(cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicChanges)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicChanges))

	eventPublisher := broker.NewEventPublisher(producer)

	tokens := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL, logger)
	authService := auth.NewService(db, redisClient, tokens)

	sorter := view.NewSorter(cfg.App.Locale, "")
	registry := service.NewRegistry(authService, db, db, eventPublisher, sorter, cfg.App.DefaultDescription)
	defer registry.Close()

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	changeConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicChanges, cfg.Kafka.ConsumerGroup)
	syncWorker := worker.NewSyncWorker(changeConsumer, redisClient, registry, cfg.Kafka.ConsumerGroup, eventDedupeTTL)
	go func() {
		if err := syncWorker.Start(workerCtx); err != nil && err != context.Canceled {
			logger.Error("Sync worker error", zap.Error(err))
		}
	}()

	if cfg.App.SweepInterval > 0 {
		go registry.StartSweeper(workerCtx, cfg.App.SweepInterval)
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(authService, registry, cfg.Auth.EmailHeader, cfg.App.RemoteTimeout, map[string]api.Pinger{
		"postgres": db,
		"redis":    redisClient,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := syncWorker.Stop(); err != nil {
		logger.Error("Error stopping sync worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
