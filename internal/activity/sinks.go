package activity

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/newsroom-edge/internal/site"
)

// LogSink writes each event as a structured log line.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a zap logger to the Sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []Event) error {
	for _, evt := range batch {
		s.logger.Info("activity",
			zap.String("kind", string(evt.Kind)),
			zap.String("key", evt.Key),
			zap.Int64("value", evt.Value),
			zap.String("signal", evt.Signal),
			zap.Time("ts", evt.TS),
			zap.Duration("dur", evt.Dur),
			zap.String("note", evt.Note),
		)
	}
	return nil
}

// Close implements Sink.
func (s *LogSink) Close(context.Context) error {
	return nil
}

// Batch is the message body published for each flushed batch.
type Batch struct {
	Events []Event `json:"events"`
}

// PublisherSink publishes each batch as a single message on topic.
type PublisherSink struct {
	publisher site.Publisher
	topic     string
}

// NewPublisherSink creates a sink publishing to topic.
func NewPublisherSink(publisher site.Publisher, topic string) *PublisherSink {
	return &PublisherSink{publisher: publisher, topic: topic}
}

// Consume publishes the batch.
func (s *PublisherSink) Consume(ctx context.Context, batch []Event) error {
	if len(batch) == 0 {
		return nil
	}
	if _, err := s.publisher.Publish(ctx, s.topic, Batch{Events: batch}); err != nil {
		return fmt.Errorf("publish activity batch: %w", err)
	}
	return nil
}

// Close implements Sink.
func (s *PublisherSink) Close(context.Context) error {
	return nil
}
