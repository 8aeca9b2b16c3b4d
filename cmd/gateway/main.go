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
	"studysphere/internal/consul"
	"studysphere/internal/gateway"
	"studysphere/internal/logger"
	"studysphere/internal/session"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	log := logger.New("studysphere-gateway")
	logger.SetDefault(log)

	cfg := config.LoadGatewayConfig()

	log.Info("Starting API Gateway",
		"port", cfg.Port,
		"consul_addr", cfg.Consul.Addr,
		"redis_addr", cfg.Redis.Addr,
		"upstream", cfg.UpstreamName,
	)

	if cfg.Secret == "" {
		log.Warn("GATEWAY_SECRET not set, the API will ignore forwarded identity headers")
	}

	var discovery consul.ServiceDiscovery
	if cfg.UpstreamAddr != "" {
		static, err := consul.StaticAddr(cfg.UpstreamName, cfg.UpstreamAddr)
		if err != nil {
			log.Error("Invalid API_SERVICE_ADDR", "error", err)
			os.Exit(1)
		}
		discovery = static
		log.Info("Using static upstream", "addr", cfg.UpstreamAddr)
	} else {
		consulClient, err := consul.NewClient(cfg.Consul)
		if err != nil {
			log.Error("Failed to create Consul client", "error", err)
			os.Exit(1)
		}
		discovery = consulClient
		log.Info("Connected to Consul")
	}

	redisClient := session.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	sessionMgr := session.NewManager(session.NewRedisStore(redisClient))
	log.Info("Connected to Redis")

	router := gateway.SetupRouter(cfg, discovery, sessionMgr, log)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("API Gateway listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down API Gateway")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("API Gateway stopped")
}
