package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// Handler processes one decoded event.
type Handler func(ctx context.Context, event *Event) error

// messageReader is the subset of *kafka.Reader used by the consumer.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers    []string
	GroupID    string
	Topic      string
	MinBytes   int
	MaxBytes   int
	MaxRetries int
	Backoff    time.Duration
}

// DefaultConsumerConfig returns defaults for a consumer group on topic.
func DefaultConsumerConfig(brokers []string, groupID, topic string) ConsumerConfig {
	return ConsumerConfig{
		Brokers:    brokers,
		GroupID:    groupID,
		Topic:      topic,
		MinBytes:   1,
		MaxBytes:   1 << 20,
		MaxRetries: 3,
		Backoff:    200 * time.Millisecond,
	}
}

// Consumer reads events from one topic and hands them to a Handler. A
// message is committed once handled, once it exhausted its retries (and was
// forwarded to the dead-letter queue when one is set), or when it cannot be
// decoded at all.
type Consumer struct {
	reader     messageReader
	handler    Handler
	dlq        *DLQProducer
	logger     *slog.Logger
	topic      string
	group      string
	maxRetries int
	backoff    time.Duration
	closeOnce  sync.Once
}

// NewConsumer creates a consumer for cfg.Topic in cfg.GroupID.
func NewConsumer(cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
	})
	return newConsumer(r, cfg, handler, logger)
}

func newConsumer(r messageReader, cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	return &Consumer{
		reader:     r,
		handler:    handler,
		logger:     logger,
		topic:      cfg.Topic,
		group:      cfg.GroupID,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
	}
}

// WithDLQ forwards messages that exhaust their retries to the dead-letter queue.
func (c *Consumer) WithDLQ(dlq *DLQProducer) *Consumer {
	c.dlq = dlq
	return c
}

// Start consumes messages until ctx is canceled, then closes the reader.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started",
		slog.String("topic", c.topic),
		slog.String("group", c.group),
	)
	defer func() {
		c.logger.Info("consumer stopped", slog.String("topic", c.topic))
		_ = c.Close()
	}()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			c.logger.Error("failed to fetch message", slog.String("error", err.Error()))
			if !sleep(ctx, c.backoff) {
				return nil
			}
			continue
		}

		EventsReceived.WithLabelValues(c.topic, c.group).Inc()
		if !c.process(ctx, msg) {
			return nil
		}
	}
}

// process handles one message and commits it. It reports false when ctx was
// canceled before the message was settled.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	event, err := UnmarshalEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to decode event, skipping",
			slog.String("error", err.Error()),
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
		)
		c.forwardToDLQ(ctx, msg, err)
		c.commit(ctx, msg)
		return true
	}

	msgCtx := otel.GetTextMapPropagator().Extract(ctx, NewHeaderCarrier(&msg))

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		lastErr = c.handler(msgCtx, event)
		if lastErr == nil {
			break
		}
		c.logger.Warn("handler failed",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
			slog.String("error", lastErr.Error()),
			slog.Int64("offset", msg.Offset),
			slog.Int("attempt", attempt),
			slog.Int("max_retries", c.maxRetries),
		)
		if attempt < c.maxRetries && !sleep(ctx, time.Duration(attempt)*c.backoff) {
			return false
		}
	}
	EventHandleDuration.WithLabelValues(c.topic, c.group).Observe(time.Since(start).Seconds())

	if lastErr != nil {
		EventsFailed.WithLabelValues(c.topic, c.group).Inc()
		c.logger.Error("handler failed after all retries, skipping message",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
			slog.String("error", lastErr.Error()),
		)
		c.forwardToDLQ(ctx, msg, lastErr)
	} else {
		EventsHandled.WithLabelValues(c.topic, c.group).Inc()
	}

	c.commit(ctx, msg)
	return true
}

func (c *Consumer) forwardToDLQ(ctx context.Context, msg kafka.Message, cause error) {
	if c.dlq == nil {
		return
	}
	if err := c.dlq.Publish(ctx, msg, cause, c.group); err == nil {
		EventsDeadLettered.WithLabelValues(c.topic, c.group).Inc()
	}
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("failed to commit message",
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
	}
}

// Close closes the consumer. It is safe to call multiple times.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.reader.Close()
	})
	if err != nil {
		return fmt.Errorf("close consumer: %w", err)
	}
	return nil
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
