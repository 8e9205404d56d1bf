// Package events delivers order lifecycle events to external consumers.
package events

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/order"
)

var (
	_ order.Publisher = (*KafkaPublisher)(nil)
	_ order.Publisher = LogPublisher{}
)

// Encode renders e as a JSON object. Amount is written twice: as minor
// units and as a decimal string.
func Encode(e order.Event) []byte {
	var enc jx.Encoder
	enc.ObjStart()
	enc.FieldStart("type")
	enc.Str(e.Type)
	enc.FieldStart("order_id")
	enc.Str(e.OrderID)
	enc.FieldStart("user_id")
	enc.Str(e.UserID)
	if e.RefCode != "" {
		enc.FieldStart("ref_code")
		enc.Str(e.RefCode)
	}
	if e.Amount != 0 {
		enc.FieldStart("amount")
		enc.Int64(e.Amount)
		enc.FieldStart("amount_display")
		enc.Str(decimal.New(e.Amount, -2).StringFixed(2))
	}
	if e.Action != "" {
		enc.FieldStart("action")
		enc.Str(e.Action)
	}
	enc.FieldStart("occurred_at")
	enc.Str(e.OccurredAt.UTC().Format(time.RFC3339Nano))
	enc.ObjEnd()
	return enc.Bytes()
}

// KafkaConfig configures KafkaPublisher.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// KafkaPublisher writes events to a Kafka topic, keyed by order id so every
// event of one order lands on the same partition.
type KafkaPublisher struct {
	w *kafka.Writer
}

// NewKafkaPublisher creates a synchronous publisher.
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("no kafka brokers")
	}
	if cfg.Topic == "" {
		return nil, errors.New("no kafka topic")
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: true,
	}}, nil
}

// Messages converts events to Kafka messages.
func Messages(events ...order.Event) []kafka.Message {
	msgs := make([]kafka.Message, len(events))
	for i, e := range events {
		msgs[i] = kafka.Message{
			Key:   []byte(e.OrderID),
			Value: Encode(e),
			Time:  e.OccurredAt,
			Headers: []kafka.Header{
				{Key: "type", Value: []byte(e.Type)},
			},
		}
	}
	return msgs
}

// Publish blocks until all events are acknowledged by the brokers.
func (p *KafkaPublisher) Publish(ctx context.Context, events ...order.Event) error {
	if len(events) == 0 {
		return nil
	}
	if err := p.w.WriteMessages(ctx, Messages(events...)...); err != nil {
		return errors.Wrap(err, "write messages")
	}
	return nil
}

// Close flushes pending writes and releases connections.
func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

// LogPublisher logs events instead of sending them. It is used when no
// brokers are configured.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, events ...order.Event) error {
	lg := zctx.From(ctx)
	for _, e := range events {
		lg.Info("Order event",
			zap.String("type", e.Type),
			zap.String("order_id", e.OrderID),
			zap.ByteString("payload", Encode(e)),
		)
	}
	return nil
}
