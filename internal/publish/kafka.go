// Package publish forwards committed store events to Kafka for the
// notification side of the system.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/ride-negotiation/internal/logging"
	"github.com/example/ride-negotiation/internal/negotiation"
	"github.com/example/ride-negotiation/internal/observability"
)

const writeTimeout = 2 * time.Second

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.Hash{}})
}

// KafkaPublisher buffers events handed to Handle and writes them from Run.
// A full buffer drops the event instead of stalling the store.
type KafkaPublisher struct {
	writer   MessageWriter
	queue    chan negotiation.Event
	attempts int
	backoff  time.Duration
	logger   *slog.Logger

	dropped atomic.Uint64
}

type Option func(*KafkaPublisher)

// WithRetry sets how many writes are tried per event and the first pause
// between them; the pause doubles after every failure.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(p *KafkaPublisher) {
		if attempts > 0 {
			p.attempts = attempts
		}
		if backoff > 0 {
			p.backoff = backoff
		}
	}
}

func WithLogger(l *slog.Logger) Option { return func(p *KafkaPublisher) { p.logger = l } }

func NewKafkaPublisher(w MessageWriter, buffer int, opts ...Option) *KafkaPublisher {
	if buffer <= 0 {
		buffer = 1
	}
	p := &KafkaPublisher{
		writer:   w,
		queue:    make(chan negotiation.Event, buffer),
		attempts: 3,
		backoff:  200 * time.Millisecond,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle is a negotiation.Store subscriber. It never blocks.
func (p *KafkaPublisher) Handle(e negotiation.Event) {
	select {
	case p.queue <- e:
	default:
		p.drop(e, "buffer full")
	}
}

// Dropped reports how many events never reached the broker.
func (p *KafkaPublisher) Dropped() uint64 { return p.dropped.Load() }

// Run writes queued events until ctx is done. Events still buffered at that
// point are discarded.
func (p *KafkaPublisher) Run(ctx context.Context) error {
	p.logger.Info("event publisher started", "buffer", cap(p.queue))
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("event publisher stopped", "pending", len(p.queue))
			return nil
		case e := <-p.queue:
			if err := p.publish(ctx, e); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				p.drop(e, err.Error())
			}
		}
	}
}

func (p *KafkaPublisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func (p *KafkaPublisher) publish(ctx context.Context, e negotiation.Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event %d: %w", e.Seq, err)
	}
	msg := kafka.Message{Key: []byte(eventKey(e)), Value: value, Time: e.At}

	delay := p.backoff
	for attempt := 1; ; attempt++ {
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err = p.writer.WriteMessages(wctx, msg)
		cancel()
		if err == nil {
			observability.EventsPublished.Inc()
			return nil
		}
		if attempt >= p.attempts {
			return fmt.Errorf("write event %d after %d attempts: %w", e.Seq, attempt, err)
		}
		p.logger.Warn("kafka write failed", "seq", e.Seq, "attempt", attempt, "error", err, "backoff", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (p *KafkaPublisher) drop(e negotiation.Event, reason string) {
	p.dropped.Add(1)
	observability.EventsDropped.Inc()
	p.logger.Error("event dropped", "seq", e.Seq, "kind", e.Kind, "reason", reason)
}

// eventKey keeps every event of one ride on one partition.
func eventKey(e negotiation.Event) string {
	if e.RideID != "" {
		return e.RideID
	}
	return e.AccountID
}
