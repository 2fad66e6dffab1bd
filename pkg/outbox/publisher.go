package outbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wms-platform/fulfillment-service/pkg/kafka"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
)

var (
	errAlreadyRunning = errors.New("outbox publisher already running")
	errNotRunning     = errors.New("outbox publisher not running")
)

type PublisherConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

func DefaultPublisherConfig() *PublisherConfig {
	return &PublisherConfig{PollInterval: time.Second, BatchSize: 100}
}

// Publisher is the relay: it polls the outbox and hands pending events to
// Kafka, oldest first.
type Publisher struct {
	repo     Repository
	producer kafka.EventPublisher
	logger   *logging.Logger
	metrics  *metrics.Metrics
	config   PublisherConfig

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	published int
	failed    int
}

func NewPublisher(repo Repository, producer kafka.EventPublisher, logger *logging.Logger, m *metrics.Metrics, config *PublisherConfig) *Publisher {
	if config == nil {
		config = DefaultPublisherConfig()
	}
	return &Publisher{
		repo:     repo,
		producer: producer,
		logger:   logger.WithComponent("outbox-publisher"),
		metrics:  m,
		config:   *config,
	}
}

// Start launches the poll loop. It runs until Stop or until ctx ends.
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return errAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(loopCtx, p.done)

	p.logger.Info("Outbox publisher started", "interval", p.config.PollInterval, "batchSize", p.config.BatchSize)
	return nil
}

// Stop ends the loop after the batch in flight
func (p *Publisher) Stop() error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel == nil {
		return errNotRunning
	}

	cancel()
	<-done

	p.mu.Lock()
	p.cancel, p.done = nil, nil
	stats := p.statsLocked()
	p.mu.Unlock()

	p.logger.Info("Outbox publisher stopped", "published", stats["published"], "failed", stats["failed"])
	return nil
}

func (p *Publisher) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch relays one batch. Events of one aggregate go out in order:
// once an event fails, the aggregate's later events in the batch wait for
// the next poll, so consumers never see a shelf's movements out of order.
func (p *Publisher) ProcessBatch(ctx context.Context) {
	events, err := p.repo.FindUnpublished(ctx, p.config.BatchSize)
	if err != nil {
		p.logger.WithError(err).Error("Outbox poll failed")
		return
	}

	held := make(map[string]bool)
	for _, event := range events {
		if held[event.AggregateID] || !event.ShouldRetry() {
			continue
		}
		if err := p.relay(ctx, event); err != nil {
			held[event.AggregateID] = true
			p.recordFailure(ctx, event, err)
			continue
		}
		p.count(true)
		if err := p.repo.MarkPublished(ctx, event.ID); err != nil {
			// the event goes out again on the next poll; consumers dedupe on ce-id
			p.logger.WithError(err).Error("Failed to mark outbox event published", "eventId", event.ID)
		}
	}

	if pending, err := p.repo.CountPending(ctx); err == nil {
		p.metrics.SetOutboxPending(int(pending))
	}
}

func (p *Publisher) relay(ctx context.Context, event *OutboxEvent) error {
	cloudEvent, err := event.ToCloudEvent()
	if err != nil {
		return err
	}
	return p.producer.PublishEvent(ctx, event.Topic, cloudEvent)
}

func (p *Publisher) recordFailure(ctx context.Context, event *OutboxEvent, cause error) {
	p.count(false)

	attempt := event.RetryCount + 1
	log := p.logger.WithError(cause)
	attrs := []any{
		"eventId", event.ID,
		"eventType", event.EventType,
		"aggregateId", event.AggregateID,
		"attempt", attempt,
	}
	if attempt >= event.MaxRetries {
		log.Error("Outbox event gave up after final attempt", attrs...)
	} else {
		log.Warn("Outbox event publish failed", attrs...)
	}

	if err := p.repo.IncrementRetry(ctx, event.ID, cause.Error()); err != nil {
		p.logger.WithError(err).Error("Failed to record outbox retry", "eventId", event.ID)
	}
}

func (p *Publisher) count(ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ok {
		p.published++
	} else {
		p.failed++
	}
}

func (p *Publisher) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Stats counts events relayed and failed attempts since construction
func (p *Publisher) Stats() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statsLocked()
}

func (p *Publisher) statsLocked() map[string]int {
	return map[string]int{"published": p.published, "failed": p.failed}
}
