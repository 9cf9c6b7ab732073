package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jersme/enviro/internal/domain"
	"github.com/jersme/enviro/internal/ports"
)

// RedisSink keeps the latest Reading in Redis: <prefix>:latest holds the
// JSON document and <prefix>:fields a name->value hash.
type RedisSink struct {
	client *redis.Client
	prefix string
}

func NewRedisSink(client *redis.Client, prefix string) *RedisSink {
	if prefix == "" {
		prefix = "enviro"
	}
	return &RedisSink{client: client, prefix: prefix}
}

// ConnectRedis creates a client and pings it.
func ConnectRedis(ctx context.Context, addr string, db int, prefix string) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewRedisSink(client, prefix), nil
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) LatestKey() string { return s.prefix + ":latest" }
func (s *RedisSink) FieldsKey() string { return s.prefix + ":fields" }

func (s *RedisSink) Append(ctx context.Context, r domain.Reading) error {
	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal reading: %w", err)
	}
	values := make(map[string]any, len(r.Fields))
	for _, f := range r.Fields {
		values[f.Name] = f.Value
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.LatestKey(), doc, 0)
	if len(values) > 0 {
		pipe.HSet(ctx, s.FieldsKey(), values)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisSink) Close() error { return s.client.Close() }

var _ ports.Sink = (*RedisSink)(nil)
