package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/jersme/enviro/internal/domain"
	"github.com/jersme/enviro/internal/ports"
)

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type AMQPConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
}

// AMQPSink publishes Readings to a durable topic exchange.
type AMQPSink struct {
	ch         amqpChannel
	conn       *amqp.Connection
	exchange   string
	routingKey string
}

func NewAMQPSink(ch amqpChannel, exchange, routingKey string) *AMQPSink {
	return &AMQPSink{ch: ch, exchange: exchange, routingKey: routingKey}
}

// DialAMQP connects, opens a channel and declares the exchange.
func DialAMQP(cfg AMQPConfig) (*AMQPSink, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		cfg.Exchange,
		"topic",
		true, // durable
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp exchange %s: %w", cfg.Exchange, err)
	}

	s := NewAMQPSink(ch, cfg.Exchange, cfg.RoutingKey)
	s.conn = conn
	return s, nil
}

func (a *AMQPSink) Name() string { return "amqp" }

func (a *AMQPSink) Append(ctx context.Context, r domain.Reading) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal reading: %w", err)
	}
	return a.ch.PublishWithContext(ctx,
		a.exchange,
		a.routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    r.Timestamp,
			Body:         body,
		},
	)
}

func (a *AMQPSink) Close() error {
	err := a.ch.Close()
	if a.conn != nil {
		err = errors.Join(err, a.conn.Close())
	}
	return err
}

var _ ports.Sink = (*AMQPSink)(nil)
