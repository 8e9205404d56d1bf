package events

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xenking/storefront/internal/domain/order"
)

var paid = order.Event{
	Type:       order.EventPaid,
	OrderID:    "o-1",
	UserID:     "u-1",
	RefCode:    "abc123",
	Amount:     1100,
	OccurredAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
}

func decode(t *testing.T, data []byte) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		raw, err := d.Raw()
		if err != nil {
			return err
		}
		out[key] = raw.String()
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestEncode(t *testing.T) {
	got := decode(t, Encode(paid))

	assert.Equal(t, `"order.paid"`, got["type"])
	assert.Equal(t, `"o-1"`, got["order_id"])
	assert.Equal(t, `"abc123"`, got["ref_code"])
	assert.Equal(t, `1100`, got["amount"])
	assert.Equal(t, `"11.00"`, got["amount_display"])
	assert.Equal(t, `"2024-03-01T12:00:00Z"`, got["occurred_at"])
	assert.NotContains(t, got, "action")
}

func TestEncode_OmitsEmpty(t *testing.T) {
	got := decode(t, Encode(order.Event{
		Type:    order.EventRefundDecided,
		OrderID: "o-2",
		Action:  "reject_refund",
	}))

	assert.Equal(t, `"reject_refund"`, got["action"])
	assert.NotContains(t, got, "amount")
	assert.NotContains(t, got, "ref_code")
}

func TestMessages(t *testing.T) {
	msgs := Messages(paid, order.Event{Type: order.EventRefundRequested, OrderID: "o-2"})
	require.Len(t, msgs, 2)

	assert.Equal(t, "o-1", string(msgs[0].Key))
	assert.Equal(t, paid.OccurredAt, msgs[0].Time)
	assert.Equal(t, "type", msgs[0].Headers[0].Key)
	assert.Equal(t, order.EventPaid, string(msgs[0].Headers[0].Value))
	assert.Equal(t, "o-2", string(msgs[1].Key))
}

func TestNewKafkaPublisher_Validates(t *testing.T) {
	_, err := NewKafkaPublisher(KafkaConfig{Topic: "orders"})
	require.Error(t, err)

	_, err = NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}})
	require.Error(t, err)

	p, err := NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "orders"})
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background()))
	require.NoError(t, p.Close())
}

func TestLogPublisher(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := zctx.Base(context.Background(), zap.New(core))

	require.NoError(t, LogPublisher{}.Publish(ctx, paid, paid))

	entries := logs.FilterMessage("Order event").All()
	require.Len(t, entries, 2)
	assert.Equal(t, order.EventPaid, entries[0].ContextMap()["type"])
}
