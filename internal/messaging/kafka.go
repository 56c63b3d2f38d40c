package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/temcen/shelfrank/internal/config"
)

// RefreshCompletedEvent is published after a batch refresh commits, so
// downstream consumers (search warmers, notification fan-out) can react to
// fresh recommendation rows.
type RefreshCompletedEvent struct {
	RunID        uuid.UUID     `json:"run_id"`
	UsersUpdated int           `json:"users_updated"`
	UsersFailed  int           `json:"users_failed"`
	BooksUpdated int           `json:"books_updated"`
	BooksFailed  int           `json:"books_failed"`
	Duration     time.Duration `json:"duration_ns"`
	CompletedAt  time.Time     `json:"completed_at"`
}

// MessageBus publishes refresh lifecycle events. The engine only produces;
// it never consumes.
type MessageBus struct {
	writer *kafka.Writer
	logger *logrus.Logger
}

// NewMessageBus returns nil without error when no brokers are configured;
// publishing is then disabled.
func NewMessageBus(cfg *config.Config, logger *logrus.Logger) (*MessageBus, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		logger.Info("Kafka brokers not configured, refresh events disabled")
		return nil, nil
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.Topics.RefreshCompleted,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
	}

	return &MessageBus{
		writer: writer,
		logger: logger,
	}, nil
}

func (mb *MessageBus) PublishRefreshCompleted(ctx context.Context, event RefreshCompletedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal refresh event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(event.RunID.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "run_id", Value: []byte(event.RunID.String())},
			{Key: "completed_at", Value: []byte(event.CompletedAt.Format(time.RFC3339))},
		},
	}

	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := mb.writer.WriteMessages(writeCtx, message); err != nil {
		return fmt.Errorf("failed to publish refresh event: %w", err)
	}

	mb.logger.WithFields(logrus.Fields{
		"run_id":        event.RunID,
		"users_updated": event.UsersUpdated,
		"books_updated": event.BooksUpdated,
	}).Debug("Refresh event published")

	return nil
}

func (mb *MessageBus) Close() error {
	return mb.writer.Close()
}
