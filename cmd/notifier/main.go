package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studysphere/internal/config"
	"studysphere/internal/kafka"
	"studysphere/internal/logger"
	"studysphere/internal/notify"
	"studysphere/internal/session"

	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"golang.org/x/sync/errgroup"
)

func main() {
	log := logger.New("studysphere-notifier")
	logger.SetDefault(log)

	cfg, err := config.LoadNotifierConfig()
	if err != nil {
		log.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	log.Info("Starting notifier",
		"kafka", cfg.KafkaBrokers,
		"topic", cfg.Topic,
		"group", cfg.ConsumerGroup,
		"mail_mode", cfg.Mail.Mode,
	)

	redisClient := session.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	store := notify.NewIdempotencyStore(redisClient, log)
	log.Info("Connected to Redis")

	kafkaCfg := kafka.ConsumerConfig(cfg)

	dlq, err := kafka.NewProducer(kafkaCfg, log)
	if err != nil {
		log.Error("Failed to create DLQ producer", "error", err)
		os.Exit(1)
	}
	defer dlq.Close()

	processor := notify.NewProcessor(notify.NewSender(cfg.Mail, log), store, cfg.MaxRetries, log)

	consumer, err := notify.NewConsumer(kafkaCfg, processor, dlq, log)
	if err != nil {
		log.Error("Failed to create Kafka consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	notify.NewHandler(store, log).RegisterRoutes(r)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HealthPort),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return consumer.Start(ctx)
	})

	g.Go(func() error {
		log.Info("Health server listening", "port", cfg.HealthPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutting down notifier")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Notifier stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("Notifier stopped")
}
