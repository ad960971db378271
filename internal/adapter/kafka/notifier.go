package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/ghg-merge/internal/config"
	"github.com/couchcryptid/ghg-merge/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer used by Notifier.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Notifier publishes run summaries to a Kafka topic.
// It implements pipeline.Notifier.
type Notifier struct {
	writer messageWriter
	logger *slog.Logger
}

// NewNotifier creates a Kafka producer for the configured run topic.
func NewNotifier(cfg *config.Config, logger *slog.Logger) *Notifier {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Notifier{writer: w, logger: logger}
}

// NotifyRunCompleted serializes summary and publishes it keyed by run id, so
// every message for a run lands on the same partition.
func (n *Notifier) NotifyRunCompleted(ctx context.Context, summary domain.RunSummary) error {
	msg, err := serializeToMessage(summary)
	if err != nil {
		return err
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish run %s: %w", summary.RunID, err)
	}
	n.logger.Debug("run summary published", "run_id", summary.RunID, "bytes", len(msg.Value))
	return nil
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}

// serializeToMessage marshals a RunSummary into a Kafka message.
func serializeToMessage(summary domain.RunSummary) (kafkago.Message, error) {
	data, err := json.Marshal(summary)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize run summary: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(summary.RunID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "species", Value: []byte(strings.ToLower(summary.Species))},
			{Key: "created_at", Value: []byte(summary.CreatedAt.Format(time.RFC3339))},
		},
	}, nil
}
