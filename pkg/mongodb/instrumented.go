package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
)

// InstrumentedClient hands out collections whose calls are traced, timed
// and logged. The repositories only ever see this type.
type InstrumentedClient struct {
	client  *Client
	metrics *metrics.Metrics
	logger  *logging.Logger
	tracer  trace.Tracer
}

// NewInstrumentedClient wraps client. m and logger may be nil.
func NewInstrumentedClient(client *Client, m *metrics.Metrics, logger *logging.Logger) *InstrumentedClient {
	return &InstrumentedClient{client: client, metrics: m, logger: logger, tracer: otel.Tracer("mongodb")}
}

func (c *InstrumentedClient) Collection(name string) *InstrumentedCollection {
	return &InstrumentedCollection{db: c, collection: c.client.Collection(name), name: name}
}

func (c *InstrumentedClient) Database() *mongo.Database {
	return c.client.Database()
}

func (c *InstrumentedClient) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

func (c *InstrumentedClient) dbAttributes() []attribute.KeyValue {
	return []attribute.KeyValue{semconv.DBSystemMongoDB, semconv.DBNameKey.String(c.client.config.Database)}
}

func (c *InstrumentedClient) traced(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := c.tracer.Start(ctx, name, trace.WithAttributes(c.dbAttributes()...))
	defer span.End()
	err := fn(ctx)
	setStatus(span, err)
	return err
}

// HealthCheck backs the readiness probe
func (c *InstrumentedClient) HealthCheck(ctx context.Context) error {
	return c.traced(ctx, "mongodb.ping", c.client.HealthCheck)
}

func (c *InstrumentedClient) WithTransaction(ctx context.Context, fn func(sessCtx mongo.SessionContext) error) error {
	return c.traced(ctx, "mongodb.transaction", func(ctx context.Context) error {
		return c.client.WithTransaction(ctx, fn)
	})
}

// RunInTransaction is WithTransaction for callers that only know
// context.Context. Collection calls made with the ctx passed to fn join the
// transaction.
func (c *InstrumentedClient) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return c.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		return fn(sessCtx)
	})
}

// InstrumentedCollection exposes the subset of *mongo.Collection the
// repositories use. Each call gets a client span, a duration sample and a
// debug log line with the documents affected.
type InstrumentedCollection struct {
	db         *InstrumentedClient
	collection *mongo.Collection
	name       string
}

func (c *InstrumentedCollection) Name() string {
	return c.name
}

// call runs one driver operation. rows reports how many documents the result
// touched. A lookup that matches nothing is not a failure.
func call[T any](ctx context.Context, c *InstrumentedCollection, op string, do func(ctx context.Context) (T, error), rows func(T) int64) (T, error) {
	start := time.Now()
	ctx, span := c.db.tracer.Start(ctx, "mongodb."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(c.db.dbAttributes()...),
		trace.WithAttributes(semconv.DBOperationKey.String(op), attribute.String("db.collection", c.name)),
	)
	defer span.End()

	result, err := do(ctx)
	ok := err == nil || errors.Is(err, mongo.ErrNoDocuments)
	var affected int64
	if err == nil && rows != nil {
		affected = rows(result)
	}
	elapsed := time.Since(start)

	if c.db.metrics != nil {
		c.db.metrics.RecordMongoDBOperation(c.name, op, ok, elapsed)
	}
	if c.db.logger != nil {
		c.db.logger.DatabaseQuery(ctx, c.name, op, elapsed, ok, affected)
	}
	if ok {
		span.SetAttributes(attribute.Int64("db.rows_affected", affected))
		setStatus(span, nil)
	} else {
		setStatus(span, err)
	}
	return result, err
}

func one[T any](T) int64 { return 1 }

func written(r *mongo.UpdateResult) int64 { return r.ModifiedCount + r.UpsertedCount }

// single runs a driver call whose error travels inside the SingleResult
func (c *InstrumentedCollection) single(ctx context.Context, op string, do func(ctx context.Context) *mongo.SingleResult) *mongo.SingleResult {
	result, _ := call(ctx, c, op, func(ctx context.Context) (*mongo.SingleResult, error) {
		r := do(ctx)
		return r, r.Err()
	}, one[*mongo.SingleResult])
	return result
}

func (c *InstrumentedCollection) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	return call(ctx, c, "insertOne", func(ctx context.Context) (*mongo.InsertOneResult, error) {
		return c.collection.InsertOne(ctx, document, opts...)
	}, one[*mongo.InsertOneResult])
}

func (c *InstrumentedCollection) InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error) {
	return call(ctx, c, "insertMany", func(ctx context.Context) (*mongo.InsertManyResult, error) {
		return c.collection.InsertMany(ctx, documents, opts...)
	}, func(r *mongo.InsertManyResult) int64 { return int64(len(r.InsertedIDs)) })
}

// FindOne leaves the error, including ErrNoDocuments, in the SingleResult
func (c *InstrumentedCollection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult {
	return c.single(ctx, "findOne", func(ctx context.Context) *mongo.SingleResult {
		return c.collection.FindOne(ctx, filter, opts...)
	})
}

func (c *InstrumentedCollection) FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) *mongo.SingleResult {
	return c.single(ctx, "findOneAndUpdate", func(ctx context.Context) *mongo.SingleResult {
		return c.collection.FindOneAndUpdate(ctx, filter, update, opts...)
	})
}

func (c *InstrumentedCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	return call(ctx, c, "find", func(ctx context.Context) (*mongo.Cursor, error) {
		return c.collection.Find(ctx, filter, opts...)
	}, nil)
}

func (c *InstrumentedCollection) Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (*mongo.Cursor, error) {
	return call(ctx, c, "aggregate", func(ctx context.Context) (*mongo.Cursor, error) {
		return c.collection.Aggregate(ctx, pipeline, opts...)
	}, nil)
}

func (c *InstrumentedCollection) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return call(ctx, c, "countDocuments", func(ctx context.Context) (int64, error) {
		return c.collection.CountDocuments(ctx, filter, opts...)
	}, func(n int64) int64 { return n })
}

func (c *InstrumentedCollection) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return call(ctx, c, "updateOne", func(ctx context.Context) (*mongo.UpdateResult, error) {
		return c.collection.UpdateOne(ctx, filter, update, opts...)
	}, written)
}

func (c *InstrumentedCollection) ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error) {
	return call(ctx, c, "replaceOne", func(ctx context.Context) (*mongo.UpdateResult, error) {
		return c.collection.ReplaceOne(ctx, filter, replacement, opts...)
	}, written)
}

func (c *InstrumentedCollection) BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error) {
	return call(ctx, c, "bulkWrite", func(ctx context.Context) (*mongo.BulkWriteResult, error) {
		return c.collection.BulkWrite(ctx, models, opts...)
	}, func(r *mongo.BulkWriteResult) int64 { return r.InsertedCount + r.ModifiedCount + r.UpsertedCount })
}

func (c *InstrumentedCollection) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	return call(ctx, c, "deleteOne", func(ctx context.Context) (*mongo.DeleteResult, error) {
		return c.collection.DeleteOne(ctx, filter, opts...)
	}, func(r *mongo.DeleteResult) int64 { return r.DeletedCount })
}

func (c *InstrumentedCollection) CreateIndexes(ctx context.Context, models []mongo.IndexModel) error {
	_, err := call(ctx, c, "createIndexes", func(ctx context.Context) ([]string, error) {
		return c.collection.Indexes().CreateMany(ctx, models)
	}, func(names []string) int64 { return int64(len(names)) })
	return err
}

func setStatus(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
