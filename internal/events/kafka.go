package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/quizrank/quiz-backend/internal/lib/logger/sl"
)

type KafkaPublisher struct {
	log    *slog.Logger
	writer *kafka.Writer
}

// NewKafkaPublisher returns a publisher writing JSON events to topic.
// Writes are asynchronous: request handlers never wait on the broker and
// delivery failures are only logged.
func NewKafkaPublisher(log *slog.Logger, brokers []string, topic string) *KafkaPublisher {
	const op = "events.kafka.Completion"
	log = log.With(slog.String("topic", topic))

	return &KafkaPublisher{
		log: log,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			Async:        true,
			BatchTimeout: 100 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					log.Error("failed to deliver events",
						slog.String("op", op),
						slog.Int("count", len(messages)),
						sl.Err(err),
					)
				}
			},
		},
	}
}

// Publish queues the event keyed by user id so one player's events stay
// ordered within a partition.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	const op = "events.kafka.Publish"

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(event.UserID, 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Close flushes pending messages.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
