package testing

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"

	"github.com/wms-platform/fulfillment-service/pkg/logging"
	wmsmongo "github.com/wms-platform/fulfillment-service/pkg/mongodb"
)

// MongoDBContainer wraps a single-node replica set, which transactions require
type MongoDBContainer struct {
	Container *mongodb.MongoDBContainer
	URI       string
}

// NewMongoDBContainer starts mongo:7 as replica set rs0
func NewMongoDBContainer(ctx context.Context) (*MongoDBContainer, error) {
	container, err := mongodb.Run(ctx, "mongo:7", mongodb.WithReplicaSet("rs0"))
	if err != nil {
		return nil, fmt.Errorf("failed to start mongodb container: %w", err)
	}

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	return &MongoDBContainer{Container: container, URI: uri}, nil
}

// Close terminates the MongoDB container
func (m *MongoDBContainer) Close(ctx context.Context) error {
	if m.Container != nil {
		return m.Container.Terminate(ctx)
	}
	return nil
}

// NewClient connects an instrumented client to a fresh database in the container
func (m *MongoDBContainer) NewClient(ctx context.Context) (*wmsmongo.InstrumentedClient, error) {
	config := wmsmongo.DefaultConfig()
	config.URI = m.URI
	config.Database = "test_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	config.Direct = true
	config.MinPoolSize = 0

	client, err := wmsmongo.NewClient(ctx, config)
	if err != nil {
		return nil, err
	}
	return wmsmongo.NewInstrumentedClient(client, nil, logging.NewNop()), nil
}

// StartMongo is the usual integration-test entry point: it skips under -short,
// starts a container and registers cleanup.
func StartMongo(t *testing.T) *wmsmongo.InstrumentedClient {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping MongoDB integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := NewMongoDBContainer(ctx)
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Close(context.Background()) })

	client, err := container.NewClient(ctx)
	if err != nil {
		t.Fatalf("connect to test mongodb: %v", err)
	}
	t.Cleanup(func() { _ = client.Close(context.Background()) })
	return client
}
