package kafka

import (
	"time"
)

// Config holds Kafka producer configuration
type Config struct {
	Brokers  []string
	ClientID string

	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int // 0: no ack, 1: leader ack, -1: all replicas ack
	WriteTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Brokers:      []string{"localhost:9092"},
		ClientID:     "fulfillment-service",
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: -1,
		WriteTimeout: 10 * time.Second,
	}
}

// Topics contains the topic names this service publishes to
var Topics = struct {
	StockEvents       string
	FulfillmentEvents string
	ShelfEvents       string
}{
	StockEvents:       "wms.stock.events",
	FulfillmentEvents: "wms.fulfillment.events",
	ShelfEvents:       "wms.shelf.events",
}

// TopicConfig holds configuration for a Kafka topic
type TopicConfig struct {
	Name              string
	Partitions        int
	ReplicationFactor int
	RetentionMs       int64
}

// DefaultTopicConfigs returns the topic layout used by cmd/migrate. Stock events are
// kept longer since downstream reconciliation replays them.
func DefaultTopicConfigs() []TopicConfig {
	const day = int64(24 * 60 * 60 * 1000)
	return []TopicConfig{
		{Name: Topics.StockEvents, Partitions: 12, ReplicationFactor: 3, RetentionMs: 30 * day},
		{Name: Topics.FulfillmentEvents, Partitions: 6, ReplicationFactor: 3, RetentionMs: 7 * day},
		{Name: Topics.ShelfEvents, Partitions: 3, ReplicationFactor: 3, RetentionMs: 7 * day},
	}
}
