/*
Package kafka carries transaction change notifications over a Kafka topic.

The Publisher keys messages by account id so changes to one account stay in
one partition. The Consumer decodes each message into a ledger.Notification,
hands it to the reactor and commits the offset afterwards. A message that
fails to decode or to apply is logged and committed: the daily sweep and the
next notification repair any balance it left stale.
*/
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/segmentio/kafka-go"

	"github.com/warp/ledger-sync/ledger"
)

const DefaultTopic = "ledger.transactions.changed"

type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

func (c Config) topic() string {
	if c.Topic == "" {
		return DefaultTopic
	}
	return c.Topic
}

// Handler applies one notification.
type Handler interface {
	Handle(ctx context.Context, n ledger.Notification) error
}

// =============================================================================
// CONSUMER
// =============================================================================

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader  messageReader
	handler Handler
}

func NewConsumer(cfg Config, handler Handler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.topic(),
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: reader, handler: handler}
}

// Run consumes until ctx is cancelled or the reader fails.
func (c *Consumer) Run(ctx context.Context) error {
	log.Printf("[Kafka] Consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Printf("[Kafka] Consumer stopped")
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		c.process(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	n, err := Decode(msg.Value)
	if err != nil {
		log.Printf("[Kafka] Dropping message at offset %d: %v", msg.Offset, err)
		return
	}
	if err := c.handler.Handle(ctx, n); err != nil {
		log.Printf("[Kafka] Error handling %s %s: %v", n.ChangeType, n.TransactionID, err)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// Decode parses and validates a notification payload.
func Decode(data []byte) (ledger.Notification, error) {
	var n ledger.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return n, fmt.Errorf("%w: %v", ledger.ErrInvalidNotification, err)
	}
	if err := n.Validate(); err != nil {
		return n, err
	}
	return n, nil
}

// =============================================================================
// PUBLISHER
// =============================================================================

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer messageWriter
}

func NewPublisher(cfg Config) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Topic:    cfg.topic(),
			Balancer: &kafka.Hash{},
		},
	}
}

// Publish enqueues a notification keyed by its account.
func (p *Publisher) Publish(ctx context.Context, n ledger.Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}

	key := n.AccountID
	if key == "" {
		key = n.PreviousAccountID
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: data})
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
