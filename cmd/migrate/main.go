package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	mongoRepo "github.com/wms-platform/fulfillment-service/internal/infrastructure/mongodb"
	"github.com/wms-platform/fulfillment-service/pkg/idempotency"
	"github.com/wms-platform/fulfillment-service/pkg/kafka"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
	"github.com/wms-platform/fulfillment-service/pkg/mongodb"
	outboxmongo "github.com/wms-platform/fulfillment-service/pkg/outbox/mongodb"
)

// Schema tool: creates the collection indexes and Kafka topics the
// fulfillment service expects. Safe to run repeatedly.

var (
	mongoURI          = flag.String("mongo-uri", envOr("MONGODB_URI", "mongodb://localhost:27017/?replicaSet=rs0"), "MongoDB connection URI")
	dbName            = flag.String("db", envOr("MONGODB_DATABASE", "fulfillment_db"), "Database name")
	brokers           = flag.String("brokers", envOr("KAFKA_BROKERS", "localhost:9092"), "Comma separated Kafka brokers")
	skipTopics        = flag.Bool("skip-topics", false, "Only create indexes")
	replicationFactor = flag.Int("replication-factor", 0, "Override the replication factor of every topic (0 keeps the defaults)")
	dryRun            = flag.Bool("dry-run", false, "Log what would be created without writing")
)

type indexer interface {
	EnsureIndexes(ctx context.Context) error
}

type indexTarget struct {
	name string
	repo indexer
}

type topicCreator interface {
	CreateTopics(topics ...kafkago.TopicConfig) error
}

func main() {
	flag.Parse()

	logger := logging.New(logging.DefaultConfig("fulfillment-migrate"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		logger.WithError(err).Error("Migration failed")
		os.Exit(1)
	}
	logger.Info("Migration completed")
}

func run(ctx context.Context, logger *logging.Logger) error {
	cfg := mongodb.DefaultConfig()
	cfg.URI = *mongoURI
	cfg.Database = *dbName
	cfg.MinPoolSize = 0

	client, err := mongodb.NewClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to mongodb: %w", err)
	}
	defer client.Close(context.Background())
	logger.Info("Connected to MongoDB", "database", cfg.Database)

	db := mongodb.NewInstrumentedClient(client, metrics.New(metrics.DefaultConfig("fulfillment-migrate")), logger)
	targets := []indexTarget{
		{name: "shelves", repo: mongoRepo.NewShelfRepository(db)},
		{name: "stock", repo: mongoRepo.NewStockRepository(db)},
		{name: "routes", repo: mongoRepo.NewRouteRepository(db)},
		{name: "packing_sessions", repo: mongoRepo.NewPackingSessionRepository(db)},
		{name: "outbox", repo: outboxmongo.NewOutboxRepository(db)},
		{name: "idempotency_keys", repo: idempotency.NewMongoKeyRepository(db)},
	}
	if err := ensureIndexes(ctx, logger, targets, *dryRun); err != nil {
		return err
	}

	if *skipTopics {
		return nil
	}

	configs := topicConfigs(kafka.DefaultTopicConfigs(), *replicationFactor)
	if *dryRun {
		for _, tc := range configs {
			logger.Info("Would create topic", "topic", tc.Topic, "partitions", tc.NumPartitions, "replicationFactor", tc.ReplicationFactor)
		}
		return nil
	}

	conn, err := dialController(ctx, splitBrokers(*brokers))
	if err != nil {
		return err
	}
	defer conn.Close()

	return createTopics(conn, configs, logger)
}

// ensureIndexes stops at the first failure so a partial schema is reported
// against the collection that broke it.
func ensureIndexes(ctx context.Context, logger *logging.Logger, targets []indexTarget, dryRun bool) error {
	for _, target := range targets {
		if dryRun {
			logger.Info("Would ensure indexes", "collection", target.name)
			continue
		}
		if err := target.repo.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("ensure %s indexes: %w", target.name, err)
		}
		logger.Info("Indexes ensured", "collection", target.name)
	}
	return nil
}

func topicConfigs(defaults []kafka.TopicConfig, replicationOverride int) []kafkago.TopicConfig {
	out := make([]kafkago.TopicConfig, 0, len(defaults))
	for _, tc := range defaults {
		rf := tc.ReplicationFactor
		if replicationOverride > 0 {
			rf = replicationOverride
		}
		out = append(out, kafkago.TopicConfig{
			Topic:             tc.Name,
			NumPartitions:     tc.Partitions,
			ReplicationFactor: rf,
			ConfigEntries: []kafkago.ConfigEntry{
				{ConfigName: "retention.ms", ConfigValue: strconv.FormatInt(tc.RetentionMs, 10)},
				{ConfigName: "cleanup.policy", ConfigValue: "delete"},
			},
		})
	}
	return out
}

// createTopics creates topics one at a time; existing topics are left as they are.
func createTopics(creator topicCreator, configs []kafkago.TopicConfig, logger *logging.Logger) error {
	for _, tc := range configs {
		err := creator.CreateTopics(tc)
		switch {
		case errors.Is(err, kafkago.TopicAlreadyExists):
			logger.Info("Topic already exists", "topic", tc.Topic)
		case err != nil:
			return fmt.Errorf("create topic %s: %w", tc.Topic, err)
		default:
			logger.Info("Topic created", "topic", tc.Topic, "partitions", tc.NumPartitions)
		}
	}
	return nil
}

// dialController connects to the cluster controller, which is the only
// broker that accepts CreateTopics.
func dialController(ctx context.Context, addrs []string) (*kafkago.Conn, error) {
	var lastErr error
	for _, addr := range addrs {
		conn, err := kafkago.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		controller, err := conn.Controller()
		conn.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return kafkago.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	}
	if lastErr == nil {
		lastErr = errors.New("no brokers configured")
	}
	return nil, fmt.Errorf("dial kafka controller: %w", lastErr)
}

func splitBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
