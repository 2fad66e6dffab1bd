package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the fulfillment service collectors. Every Record method is safe on a
// nil *Metrics so tests can run without a registry.
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	HTTPErrors           *prometheus.CounterVec

	// Kafka / outbox metrics
	KafkaEventsPublished *prometheus.CounterVec
	KafkaPublishDuration *prometheus.HistogramVec
	OutboxPending        prometheus.Gauge

	// MongoDB metrics
	MongoDBOperations        *prometheus.CounterVec
	MongoDBOperationDuration *prometheus.HistogramVec

	// Warehouse metrics
	StockMovements     *prometheus.CounterVec
	StockUnits         *prometheus.CounterVec
	StockRejections    *prometheus.CounterVec
	PickScans          *prometheus.CounterVec
	PackScans          *prometheus.CounterVec
	Transfers          *prometheus.CounterVec
	RoutesCreated      prometheus.Counter
	RouteOrders        prometheus.Histogram
	Overrides          *prometheus.CounterVec
	StockCacheLookups  *prometheus.CounterVec

	// Idempotency-Key replays
	IdempotencyRequests *prometheus.CounterVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "wms",
	}
}

// New creates and registers every collector on a private registry
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ns := config.Namespace
	constLabels := prometheus.Labels{"service": config.ServiceName}

	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,
	}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   ns,
		Name:        "http_requests_total",
		Help:        "Total number of HTTP requests",
		ConstLabels: constLabels,
	}, []string{"method", "path", "status"})

	m.HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   ns,
		Name:        "http_request_duration_seconds",
		Help:        "HTTP request duration in seconds",
		Buckets:     []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		ConstLabels: constLabels,
	}, []string{"method", "path"})

	m.HTTPRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   ns,
		Name:        "http_requests_in_flight",
		Help:        "Number of HTTP requests currently being processed",
		ConstLabels: constLabels,
	})

	m.HTTPErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   ns,
		Name:        "http_error_responses_total",
		Help:        "Error responses by route and API error code",
		ConstLabels: constLabels,
	}, []string{"path", "code"})

	m.KafkaEventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   ns,
		Name:        "kafka_events_published_total",
		Help:        "Total number of Kafka events published",
		ConstLabels: constLabels,
	}, []string{"topic", "event_type", "status"})

	m.KafkaPublishDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   ns,
		Name:        "kafka_publish_duration_seconds",
		Help:        "Kafka publish duration in seconds",
		Buckets:     []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		ConstLabels: constLabels,
	}, []string{"topic"})

	m.OutboxPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   ns,
		Name:        "outbox_pending_events",
		Help:        "Outbox events waiting for delivery",
		ConstLabels: constLabels,
	})

	m.MongoDBOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   ns,
		Name:        "mongodb_operations_total",
		Help:        "Total number of MongoDB operations",
		ConstLabels: constLabels,
	}, []string{"collection", "operation", "status"})

	m.MongoDBOperationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   ns,
		Name:        "mongodb_operation_duration_seconds",
		Help:        "MongoDB operation duration in seconds",
		Buckets:     []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		ConstLabels: constLabels,
	}, []string{"collection", "operation"})

	m.StockMovements = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   ns,
		Name:        "stock_movements_total",
		Help:        "Ledger movements written, by movement type and direction",
		ConstLabels: constLabels,
	}, []string{"type", "direction"})

	m.StockUnits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   ns,
		Name:        "stock_units_total",
		Help:        "Units moved through the ledger, by movement type and direction",
		ConstLabels: constLabels,
	}, []string{"type", "direction"})

	m.StockRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   ns,
		Name:        "stock_rejections_total",
		Help:        "Ledger operations rejected before anything was written",
		ConstLabels: constLabels,
	}, []string{"reason"})

	m.PickScans = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   ns,
		Name:        "picking_scans_total",
		Help:        "Picking scans by outcome",
		ConstLabels: constLabels,
	}, []string{"result"})

	m.PackScans = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   ns,
		Name:        "packing_scans_total",
		Help:        "Packing scans by outcome",
		ConstLabels: constLabels,
	}, []string{"result"})

	m.Transfers = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   ns,
		Name:        "stock_transfers_total",
		Help:        "Shelf to shelf transfers by outcome",
		ConstLabels: constLabels,
	}, []string{"status"})

	m.RoutesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   ns,
		Name:        "routes_created_total",
		Help:        "Routes created",
		ConstLabels: constLabels,
	})

	m.RouteOrders = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   ns,
		Name:        "route_orders",
		Help:        "Number of orders per created route",
		Buckets:     []float64{1, 2, 5, 10, 20, 50, 100, 200},
		ConstLabels: constLabels,
	})

	m.Overrides = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   ns,
		Name:        "administrative_overrides_total",
		Help:        "Administrative overrides such as manual pick completion and picking reset",
		ConstLabels: constLabels,
	}, []string{"action"})

	m.StockCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   ns,
		Name:        "stock_cache_lookups_total",
		Help:        "Subtree stock cache lookups",
		ConstLabels: constLabels,
	}, []string{"result"})

	m.IdempotencyRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   ns,
		Name:        "idempotency_requests_total",
		Help:        "Requests carrying an Idempotency-Key, by outcome",
		ConstLabels: constLabels,
	}, []string{"result"})

	m.CircuitBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   ns,
		Name:        "circuit_breaker_state",
		Help:        "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		ConstLabels: constLabels,
	}, []string{"name"})

	m.CircuitBreakerTrips = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   ns,
		Name:        "circuit_breaker_trips_total",
		Help:        "Total number of circuit breaker trips",
		ConstLabels: constLabels,
	}, []string{"name"})

	registry.MustRegister(
		m.HTTPRequestsTotal, m.HTTPRequestDuration, m.HTTPRequestsInFlight, m.HTTPErrors,
		m.KafkaEventsPublished, m.KafkaPublishDuration, m.OutboxPending,
		m.MongoDBOperations, m.MongoDBOperationDuration,
		m.StockMovements, m.StockUnits, m.StockRejections,
		m.PickScans, m.PackScans, m.Transfers,
		m.RoutesCreated, m.RouteOrders, m.Overrides, m.StockCacheLookups,
		m.IdempotencyRequests,
		m.CircuitBreakerState, m.CircuitBreakerTrips,
	)

	return m
}

// Handler returns the HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// RecordHTTPRequest records one served HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(code)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordHTTPError counts an error response by its API error code
func (m *Metrics) RecordHTTPError(path, code string) {
	if m == nil {
		return
	}
	m.HTTPErrors.WithLabelValues(path, code).Inc()
}

// IncrementHTTPRequestsInFlight increments the in-flight gauge
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.HTTPRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements the in-flight gauge
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.HTTPRequestsInFlight.Dec()
}

// RecordKafkaPublish records a Kafka publish attempt
func (m *Metrics) RecordKafkaPublish(topic, eventType string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.KafkaEventsPublished.WithLabelValues(topic, eventType, status(success)).Inc()
	m.KafkaPublishDuration.WithLabelValues(topic).Observe(duration.Seconds())
}

// SetOutboxPending sets the number of events waiting in the outbox
func (m *Metrics) SetOutboxPending(n int) {
	if m == nil {
		return
	}
	m.OutboxPending.Set(float64(n))
}

// RecordMongoDBOperation records a MongoDB operation
func (m *Metrics) RecordMongoDBOperation(collection, operation string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.MongoDBOperations.WithLabelValues(collection, operation, status(success)).Inc()
	m.MongoDBOperationDuration.WithLabelValues(collection, operation).Observe(duration.Seconds())
}

// RecordStockMovement records one committed ledger row
func (m *Metrics) RecordStockMovement(movementType, direction string, quantity int64) {
	if m == nil {
		return
	}
	m.StockMovements.WithLabelValues(movementType, direction).Inc()
	m.StockUnits.WithLabelValues(movementType, direction).Add(float64(quantity))
}

// RecordStockRejection records a rejected ledger operation by error code
func (m *Metrics) RecordStockRejection(reason string) {
	if m == nil {
		return
	}
	m.StockRejections.WithLabelValues(reason).Inc()
}

// RecordPickScan records a picking scan outcome ("ok" or an error code)
func (m *Metrics) RecordPickScan(result string) {
	if m == nil {
		return
	}
	m.PickScans.WithLabelValues(result).Inc()
}

// RecordPackScan records a packing scan outcome ("ok" or an error code)
func (m *Metrics) RecordPackScan(result string) {
	if m == nil {
		return
	}
	m.PackScans.WithLabelValues(result).Inc()
}

// RecordTransfer records a transfer outcome
func (m *Metrics) RecordTransfer(success bool) {
	if m == nil {
		return
	}
	m.Transfers.WithLabelValues(status(success)).Inc()
}

// RecordRouteCreated records a new route and its size
func (m *Metrics) RecordRouteCreated(orderCount int) {
	if m == nil {
		return
	}
	m.RoutesCreated.Inc()
	m.RouteOrders.Observe(float64(orderCount))
}

// RecordOverride records an administrative override
func (m *Metrics) RecordOverride(action string) {
	if m == nil {
		return
	}
	m.Overrides.WithLabelValues(action).Inc()
}

// RecordStockCacheLookup records a subtree stock cache hit or miss
func (m *Metrics) RecordStockCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.StockCacheLookups.WithLabelValues(result).Inc()
}

// RecordIdempotency records the outcome of an Idempotency-Key lookup:
// miss, replay, mismatch, concurrent or storage_error.
func (m *Metrics) RecordIdempotency(result string) {
	if m == nil {
		return
	}
	m.IdempotencyRequests.WithLabelValues(result).Inc()
}

// SetCircuitBreakerState sets the circuit breaker state gauge
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *Metrics) RecordCircuitBreakerTrip(name string) {
	if m == nil {
		return
	}
	m.CircuitBreakerTrips.WithLabelValues(name).Inc()
}
