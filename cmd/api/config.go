package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/wms-platform/fulfillment-service/internal/infrastructure/cache"
	"github.com/wms-platform/fulfillment-service/internal/infrastructure/clients"
	"github.com/wms-platform/fulfillment-service/pkg/kafka"
	"github.com/wms-platform/fulfillment-service/pkg/mongodb"
	"github.com/wms-platform/fulfillment-service/pkg/tracing"
)

// Config holds application configuration
type Config struct {
	ServerAddr    string
	SnowflakeNode int64
	LogLevel      string

	MongoDB *mongodb.Config
	Kafka   *kafka.Config
	Redis   *cache.Config
	Clients clients.Config
	Tracing *tracing.Config
}

// loadConfig reads the environment. A .env file in the working directory is
// applied first without overriding variables that are already set.
func loadConfig() *Config {
	_ = godotenv.Load()

	tracingConfig := tracing.DefaultConfig(serviceName)
	tracingConfig.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	tracingConfig.Environment = getEnv("ENVIRONMENT", "development")
	tracingConfig.Enabled = getEnvBool("TRACING_ENABLED", true)

	return &Config{
		ServerAddr:    getEnv("SERVER_ADDR", ":8020"),
		SnowflakeNode: int64(getEnvInt("SNOWFLAKE_NODE", 1)),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		MongoDB: &mongodb.Config{
			URI:            getEnv("MONGODB_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
			Database:       getEnv("MONGODB_DATABASE", "fulfillment_db"),
			ConnectTimeout: 10 * time.Second,
			MaxPoolSize:    100,
			MinPoolSize:    10,
		},
		Kafka: &kafka.Config{
			Brokers:      getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			ClientID:     serviceName,
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: -1,
			WriteTimeout: 10 * time.Second,
		},
		Redis: &cache.Config{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      getEnvDuration("STOCK_CACHE_TTL", 5*time.Minute),
		},
		Clients: clients.Config{
			OrderStoreURL:  getEnv("ORDER_STORE_URL", "http://localhost:8001"),
			ConsumablesURL: getEnv("CONSUMABLES_URL", ""),
			CatalogURL:     getEnv("CATALOG_URL", "http://localhost:8002"),
			Timeout:        getEnvDuration("CLIENT_TIMEOUT", 10*time.Second),
		},
		Tracing: tracingConfig,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping blanks
func getEnvList(key string, defaultValue []string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
