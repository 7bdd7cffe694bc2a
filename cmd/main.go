package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/callback-engine/internal/api"
	"github.com/akylbek/payment-system/callback-engine/internal/config"
	"github.com/akylbek/payment-system/callback-engine/internal/processors"
	"github.com/akylbek/payment-system/callback-engine/internal/reconcile"
	"github.com/akylbek/payment-system/callback-engine/internal/remote"
	"github.com/akylbek/payment-system/callback-engine/internal/repository"
	"github.com/akylbek/payment-system/callback-engine/internal/service"
	"github.com/akylbek/payment-system/callback-engine/internal/telemetry"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize telemetry
	if err := telemetry.InitTelemetry("callback-engine", cfg.JaegerEndpoint); err != nil {
		panic(fmt.Sprintf("Failed to initialize telemetry: %v", err))
	}
	defer telemetry.Shutdown(context.Background())

	telemetry.Logger.Info("Starting Callback Engine")

	// Load and validate the processor table
	processorConfigs, err := config.LoadProcessors(cfg.ProcessorsFile)
	if err != nil {
		telemetry.Logger.Fatal("Failed to load processor configuration", zap.Error(err))
	}

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		telemetry.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Initialize repository
	repo := repository.NewPaymentRepository(db)
	if err := repo.InitDB(); err != nil {
		telemetry.Logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisURL,
	})

	// Connect to NATS
	nc, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		telemetry.Logger.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer nc.Close()

	// Connect to Kafka
	kafkaWriter := &kafka.Writer{
		Addr:     kafka.TCP(cfg.KafkaBrokers),
		Topic:    "payment.state.changed",
		Balancer: &kafka.LeastBytes{},
	}
	defer kafkaWriter.Close()

	// Bind configured processors to their built-in profiles
	registry := make(map[string]processors.Processor, len(processorConfigs))
	for _, pc := range processorConfigs {
		profile, err := processors.Resolve(pc.Profile)
		if err != nil {
			telemetry.Logger.Fatal("Unknown processor profile",
				zap.String("processor", pc.Name),
				zap.String("profile", pc.Profile),
				zap.Strings("known_profiles", processors.ProfileNames()),
			)
		}

		client := remote.NewClient(pc.QueryURL, pc.APIKey, nil)
		registry[pc.Name] = processors.Processor{
			Profile:              profile,
			Secret:               pc.SigningSecret(),
			ReconcileMaxAttempts: pc.MaxAttempts(),
			ReconcileDelay:       pc.ReconcileDelay(),
			Query:                client.QueryFunc(),
			Perform:              client.PerformFunc(),
		}
	}

	// Initialize the engine
	locker := service.NewRedisLocker(redisClient)
	events := service.NewKafkaEventPublisher(kafkaWriter)
	completion := service.NewNatsCompletionSignaler(nc)
	poller := reconcile.NewPoller(telemetry.Logger)
	processor := service.NewCallbackProcessor(repo, locker, events, completion, poller, telemetry.Logger)
	executor := service.NewOperationExecutor(processor)

	// Setup Gin router
	r := api.NewRouter(repo, registry, processor, executor)

	// Setup HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		telemetry.Logger.Info("Callback Engine starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			telemetry.Logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	telemetry.Logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		telemetry.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	telemetry.Logger.Info("Server exited")
}
