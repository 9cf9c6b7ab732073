package sink

import (
	"context"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/jersme/enviro/internal/domain"
)

type fakeChannel struct {
	exchange string
	key      string
	msgs     []amqp.Publishing
	closed   bool
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.exchange, f.key = exchange, key
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeChannel) Close() error { f.closed = true; return nil }

func TestAMQPSinkPublishesPersistentJSON(t *testing.T) {
	ch := &fakeChannel{}
	sink := NewAMQPSink(ch, "enviro", "readings.pi")

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r := domain.NewReading(ts, []domain.Field{{Name: "humidity", Value: 40}})
	if err := sink.Append(context.Background(), r); err != nil {
		t.Fatalf("append: %v", err)
	}
	if ch.exchange != "enviro" || ch.key != "readings.pi" {
		t.Fatalf("unexpected route %s/%s", ch.exchange, ch.key)
	}
	msg := ch.msgs[0]
	if msg.ContentType != "application/json" || msg.DeliveryMode != amqp.Persistent {
		t.Fatalf("unexpected publishing %+v", msg)
	}
	if string(msg.Body) != `{"timestamp":"2024-03-01T12:00:00Z","fields":{"humidity":40}}` {
		t.Fatalf("unexpected body %s", msg.Body)
	}

	if err := sink.Close(); err != nil || !ch.closed {
		t.Fatalf("expected channel close, err=%v", err)
	}
}
