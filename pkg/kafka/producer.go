package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/wms-platform/fulfillment-service/pkg/cloudevents"
)

// Producer writes CloudEvents to Kafka. Writers are opened lazily, one per
// topic, and share a transport tagged with the client id.
type Producer struct {
	config    *Config
	transport *kafka.Transport

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

func NewProducer(config *Config) *Producer {
	return &Producer{
		config:    config,
		transport: &kafka.Transport{ClientID: config.ClientID},
		writers:   make(map[string]*kafka.Writer),
	}
}

func (p *Producer) writerFor(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	w, ok := p.writers[topic]
	if !ok {
		w = &kafka.Writer{
			Addr:         kafka.TCP(p.config.Brokers...),
			Topic:        topic,
			Transport:    p.transport,
			Balancer:     &kafka.Hash{},
			BatchSize:    p.config.BatchSize,
			BatchTimeout: p.config.BatchTimeout,
			WriteTimeout: p.config.WriteTimeout,
			RequiredAcks: kafka.RequiredAcks(p.config.RequiredAcks),
		}
		p.writers[topic] = w
	}
	return w
}

// NewMessage encodes event in structured mode and repeats its attributes as
// ce-* headers so consumers can route without decoding the body. Keying by
// subject keeps one shelf's or route's events on one partition.
func NewMessage(event *cloudevents.WMSCloudEvent) (kafka.Message, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode event %s: %w", event.ID, err)
	}

	attrs := []struct{ name, value string }{
		{"specversion", event.SpecVersion},
		{"type", event.Type},
		{"source", event.Source},
		{"id", event.ID},
		{"time", event.Time.Format(time.RFC3339Nano)},
		{"traceparent", event.TraceParent},
	}
	headers := make([]kafka.Header, 0, len(attrs)+5)
	for _, a := range attrs {
		if a.value != "" {
			headers = append(headers, kafka.Header{Key: "ce-" + a.name, Value: []byte(a.value)})
		}
	}
	for name, value := range event.Extensions() {
		headers = append(headers, kafka.Header{Key: "ce-" + name, Value: []byte(value)})
	}
	headers = append(headers, kafka.Header{Key: "content-type", Value: []byte(event.DataContentType)})

	return kafka.Message{Key: []byte(event.Subject), Value: body, Headers: headers, Time: event.Time}, nil
}

func (p *Producer) PublishEvent(ctx context.Context, topic string, event *cloudevents.WMSCloudEvent) error {
	msg, err := NewMessage(event)
	if err != nil {
		return err
	}
	if err := p.writerFor(topic).WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s to %s: %w", event.Type, topic, err)
	}
	return nil
}

// Close flushes and closes every writer opened so far
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close writer for %s: %w", topic, err))
		}
	}
	p.writers = make(map[string]*kafka.Writer)
	return errors.Join(errs...)
}
