package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studysphere/internal/config"
	"studysphere/internal/consul"
	"studysphere/internal/database"
	"studysphere/internal/kafka"
	"studysphere/internal/logger"
	"studysphere/internal/server"
	"studysphere/internal/session"
	"studysphere/internal/storage"

	_ "github.com/joho/godotenv/autoload"
)

const serviceName = "studysphere-api"

func gracefulShutdown(apiServer *http.Server, registrar consul.ServiceRegistrar, serviceID string, timeout time.Duration, log *slog.Logger, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop()

	if registrar != nil {
		if err := registrar.Deregister(serviceID); err != nil {
			log.Warn("Failed to deregister from Consul", "error", err)
		} else {
			log.Info("Deregistered from Consul")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	done <- true
}

func main() {
	log := logger.New(serviceName)
	logger.SetDefault(log)

	cfg, err := config.LoadAPIConfig()
	if err != nil {
		log.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	log.Info("Starting StudySphere API", "port", cfg.Port, "host", cfg.Host)

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Migrate(migrateCtx); err != nil {
		cancel()
		log.Error("Failed to apply schema", "error", err)
		os.Exit(1)
	}
	cancel()
	log.Info("Database ready")

	redisClient := session.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Error("Failed to connect to Redis", "addr", cfg.Redis.Addr, "error", err)
		os.Exit(1)
	}
	store := session.NewRedisStore(redisClient)
	log.Info("Connected to Redis", "addr", cfg.Redis.Addr)

	deps := server.Deps{
		DB:       db,
		Sessions: session.NewManager(store),
		Cache:    store,
	}

	storageService, err := storage.New(context.Background(), cfg.S3, log)
	switch {
	case errors.Is(err, storage.ErrDisabled):
		log.Warn("S3 not configured, resource attachments disabled")
	case err != nil:
		log.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	default:
		if err := storageService.EnsureBucketExists(context.Background()); err != nil {
			log.Error("Failed to ensure bucket exists", "bucket", cfg.S3.Bucket, "error", err)
			os.Exit(1)
		}
		deps.Storage = storageService
	}

	if cfg.KafkaBrokers != "" {
		producer, err := kafka.NewProducer(kafka.ProducerConfig(cfg), log)
		if err != nil {
			log.Error("Failed to create Kafka producer", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		deps.Publisher = producer
	} else {
		log.Warn("KAFKA_BROKERS not set, XP events will not be published")
	}

	var registrar consul.ServiceRegistrar
	svc := consul.HTTPService(serviceName, cfg.Host, cfg.Port, "api", "sessions", "xp")
	consulClient, err := consul.NewClient(cfg.Consul)
	if err != nil {
		log.Warn("Consul unavailable, running unregistered", "error", err)
	} else {
		// Clean up a registration left by a previous crash.
		_ = consulClient.Deregister(svc.ID)
		if err := consulClient.Register(svc); err != nil {
			log.Warn("Failed to register with Consul", "error", err)
		} else {
			registrar = consulClient
			log.Info("Registered with Consul", "service_id", svc.ID)
		}
	}

	apiServer := server.NewServer(cfg, deps, log).HTTPServer()

	done := make(chan bool, 1)
	go gracefulShutdown(apiServer, registrar, svc.ID, cfg.ShutdownTimeout, log, done)

	log.Info("StudySphere API listening", "addr", apiServer.Addr)
	if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("HTTP server error", "error", err)
		os.Exit(1)
	}

	<-done
	log.Info("Graceful shutdown complete")
}
