package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/segmentio/kafka-go"
)

const fetchRetryDelay = time.Second

// Handler processes one message value. A non-nil error leaves the offset uncommitted.
type Handler func(ctx context.Context, key, value []byte) error

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes keyed messages to a single topic.
type Producer struct {
	writer messageWriter
	topic  string
}

// NewProducer builds a hash-balanced writer so one key always lands on one partition.
func NewProducer(brokers []string, topic string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		topic: topic,
	}, nil
}

// Publish writes a single message.
func (p *Producer) Publish(ctx context.Context, key, value []byte) error {
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: value}); err != nil {
		return fmt.Errorf("kafka write %s: %w", p.topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// Consumer reads a topic as part of a consumer group.
type Consumer struct {
	reader messageReader
	topic  string
	logg   *logger.Logger
}

// NewConsumer joins groupID on topic.
func NewConsumer(brokers []string, topic, groupID string, logg *logger.Logger) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if topic == "" || groupID == "" {
		return nil, errors.New("kafka topic and group id are required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 1 << 20,
		}),
		topic: topic,
		logg:  logg,
	}, nil
}

// Run fetches, handles and commits until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	ctx = c.logg.WithField(ctx, "topic", c.topic)
	c.logg.Info(ctx, "kafka consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logg.Info(ctx, "kafka consumer stopping")
				return nil
			}
			c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "kafka fetch failed; retrying")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(fetchRetryDelay):
			}
			continue
		}

		msgCtx := c.logg.WithFields(ctx, map[string]any{"partition": msg.Partition, "offset": msg.Offset})
		if err := handle(msgCtx, msg.Key, msg.Value); err != nil {
			c.logg.Error(msgCtx, "kafka message handler failed", err)
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logg.Error(msgCtx, "kafka commit failed", err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
