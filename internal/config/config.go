package config

import (
	"fmt"
	"strings"
	"time"
)

// RedisConfig is shared by every service that talks to Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ConsulConfig holds service registry settings.
type ConsulConfig struct {
	Addr  string
	Token string
}

// S3Config configures the S3-compatible resource attachment bucket.
type S3Config struct {
	Endpoint       string
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
}

// Enabled reports whether enough S3 settings are present to build a client.
func (c S3Config) Enabled() bool {
	return c.Endpoint != "" && c.AccessKey != "" && c.SecretKey != "" && c.Bucket != ""
}

// APIConfig is the configuration of the studysphere-api service.
type APIConfig struct {
	Host            string
	Port            int
	DatabaseURL     string
	AllowedOrigins  []string
	SessionMaxAge   time.Duration
	SecureCookies   bool
	KafkaBrokers    string
	XPEventsTopic   string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	Redis           RedisConfig
	Consul          ConsulConfig
	S3              S3Config

	// PublicBaseURL is the externally reachable origin, used to build attachment links.
	PublicBaseURL       string
	TrustGatewayHeaders bool
	GatewaySecret       string
	LeaderboardCacheTTL time.Duration
	UploadURLTTL        time.Duration
}

// Addr returns the listen address.
func (c *APIConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// LoadAPIConfig reads the API configuration from the environment.
func LoadAPIConfig() (*APIConfig, error) {
	cfg := &APIConfig{
		Host:            GetEnvOrDefault("API_SERVICE_HOST", "localhost"),
		Port:            GetEnvInt("API_SERVICE_PORT", 8082),
		DatabaseURL:     GetEnvOrDefault("DATABASE_URL", ""),
		AllowedOrigins:  splitList(GetEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		SessionMaxAge:   GetEnvDuration("SESSION_MAX_AGE", 24*time.Hour),
		SecureCookies:   GetEnvOrDefault("APP_ENV", "development") == "production",
		KafkaBrokers:    GetEnvOrDefault("KAFKA_BROKERS", ""),
		XPEventsTopic:   GetEnvOrDefault("KAFKA_TOPIC_XP_EVENTS", "xp-events"),
		ReadTimeout:     GetEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    GetEnvDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:     GetEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		ShutdownTimeout: GetEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second),
		Redis:           loadRedis(),
		Consul:          loadConsul(),
		S3: S3Config{
			Endpoint:       GetEnvOrDefault("S3_ENDPOINT", ""),
			PublicEndpoint: GetEnvOrDefault("S3_PUBLIC_ENDPOINT", ""),
			AccessKey:      GetEnvOrDefault("S3_ACCESS_KEY", ""),
			SecretKey:      GetEnvOrDefault("S3_SECRET_KEY", ""),
			Bucket:         GetEnvOrDefault("S3_BUCKET_NAME", "studysphere-resources"),
			UseSSL:         GetEnvBool("S3_USE_SSL", false),
		},
		PublicBaseURL:       strings.TrimSuffix(GetEnvOrDefault("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		TrustGatewayHeaders: GetEnvBool("TRUST_GATEWAY_HEADERS", false),
		GatewaySecret:       GetEnvOrDefault("GATEWAY_SECRET", ""),
		LeaderboardCacheTTL: GetEnvDuration("LEADERBOARD_CACHE_TTL", time.Minute),
		UploadURLTTL:        GetEnvDuration("UPLOAD_URL_TTL", 15*time.Minute),
	}

	if err := ValidateDatabaseURL(cfg.DatabaseURL); err != nil {
		return nil, err
	}
	if cfg.TrustGatewayHeaders && cfg.GatewaySecret == "" {
		return nil, ErrGatewaySecretRequired
	}
	return cfg, nil
}

// GatewayConfig is the configuration of the API gateway.
type GatewayConfig struct {
	Port           int
	AllowedOrigins []string
	UpstreamName   string
	// UpstreamAddr pins the API to host:port and bypasses Consul when set.
	UpstreamAddr string
	// Secret is sent to the API as X-Gateway-Secret.
	Secret string
	Redis  RedisConfig
	Consul ConsulConfig
}

// LoadGatewayConfig reads the gateway configuration from the environment.
func LoadGatewayConfig() *GatewayConfig {
	return &GatewayConfig{
		Port:           GetEnvInt("GATEWAY_PORT", 8080),
		AllowedOrigins: splitList(GetEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		UpstreamName:   GetEnvOrDefault("API_SERVICE_NAME", "studysphere-api"),
		UpstreamAddr:   GetEnvOrDefault("API_SERVICE_ADDR", ""),
		Secret:         GetEnvOrDefault("GATEWAY_SECRET", ""),
		Redis:          loadRedis(),
		Consul:         loadConsul(),
	}
}

// NotifierConfig is the configuration of the XP notifier worker.
type NotifierConfig struct {
	KafkaBrokers  string
	Topic         string
	DLQTopic      string
	ConsumerGroup string
	MaxRetries    int
	HealthPort    int
	Redis         RedisConfig
	Mail          MailConfig
}

// MailConfig selects how notification emails leave the notifier.
type MailConfig struct {
	Mode     string // "log" or "smtp"
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
}

// LoadNotifierConfig reads the notifier configuration from the environment.
func LoadNotifierConfig() (*NotifierConfig, error) {
	if err := ValidateEnv([]string{"KAFKA_BROKERS"}); err != nil {
		return nil, err
	}
	return &NotifierConfig{
		KafkaBrokers:  GetEnvOrDefault("KAFKA_BROKERS", ""),
		Topic:         GetEnvOrDefault("KAFKA_TOPIC_XP_EVENTS", "xp-events"),
		DLQTopic:      GetEnvOrDefault("KAFKA_TOPIC_XP_DLQ", "xp-events-dlq"),
		ConsumerGroup: GetEnvOrDefault("KAFKA_CONSUMER_GROUP", "notifier-group"),
		MaxRetries:    GetEnvInt("NOTIFIER_MAX_RETRIES", 3),
		HealthPort:    GetEnvInt("NOTIFIER_HEALTH_PORT", 8085),
		Redis:         loadRedis(),
		Mail: MailConfig{
			Mode:     GetEnvOrDefault("EMAIL_MODE", "log"),
			Host:     GetEnvOrDefault("SMTP_HOST", ""),
			Port:     GetEnvInt("SMTP_PORT", 587),
			User:     GetEnvOrDefault("SMTP_USER", ""),
			Password: GetEnvOrDefault("SMTP_PASSWORD", ""),
			From:     GetEnvOrDefault("SMTP_FROM", "noreply@studysphere.app"),
			FromName: GetEnvOrDefault("SMTP_FROM_NAME", "StudySphere"),
		},
	}, nil
}

func loadRedis() RedisConfig {
	return RedisConfig{
		Addr:     GetEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		Password: GetEnvOrDefault("REDIS_PASSWORD", ""),
		DB:       GetEnvInt("REDIS_DB", 0),
	}
}

func loadConsul() ConsulConfig {
	return ConsulConfig{
		Addr:  GetEnvOrDefault("CONSUL_HTTP_ADDR", "localhost:8500"),
		Token: GetEnvOrDefault("CONSUL_HTTP_TOKEN", ""),
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
