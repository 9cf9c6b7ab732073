package enviro

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jersme/enviro/internal/adapters/display"
	"github.com/jersme/enviro/internal/adapters/provider"
	"github.com/jersme/enviro/internal/adapters/queue"
	"github.com/jersme/enviro/internal/adapters/sink"
	"github.com/jersme/enviro/internal/adapters/wal"
)

func buildProviders(cfg *Config) ([]Provider, error) {
	var out []Provider
	for i, pc := range cfg.EnabledProviders() {
		p, err := buildProvider(pc)
		if err != nil {
			closeProviders(out)
			return nil, fmt.Errorf("providers[%d] %s: %w", i, pc.Type, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func buildProvider(pc ProviderConfig) (Provider, error) {
	switch pc.Type {
	case "bme280":
		return provider.OpenBME280(pc.BME280)
	case "sysfs":
		return provider.NewSysfs(pc.Sysfs)
	case "opcua":
		return provider.NewOPCUA(pc.OPCUA)
	case "simulated":
		return provider.NewSimulated(pc.Simulated)
	default:
		return nil, fmt.Errorf("unknown provider type %q", pc.Type)
	}
}

type builtSinks struct {
	sinks []Sink
	store *queue.MemStore
	wal   *wal.FileWAL
}

// buildSinks opens the enabled sinks in a fixed order: local stores first,
// then databases, then publishers.
func buildSinks(ctx context.Context, cfg *Config, session string) (builtSinks, error) {
	var b builtSinks
	s := cfg.Sinks

	fail := func(name string, err error) (builtSinks, error) {
		closeSinks(b.sinks)
		return builtSinks{}, fmt.Errorf("sink %s: %w", name, err)
	}

	if s.WAL.Enabled {
		w, err := wal.Open(s.WAL.Dir, s.WAL.SyncEach)
		if err != nil {
			return fail("wal", err)
		}
		b.wal = w
		b.sinks = append(b.sinks, w)
	}
	if s.SQLite.Enabled {
		if err := os.MkdirAll(filepath.Dir(s.SQLite.Path), 0o755); err != nil {
			return fail("sqlite", err)
		}
		db, err := sink.OpenSQLite(s.SQLite.Path, s.SQLite.Table)
		if err != nil {
			return fail("sqlite", err)
		}
		b.sinks = append(b.sinks, db)
	}
	if s.JSONL.Enabled {
		j, err := sink.OpenJSONLines(s.JSONL.Path)
		if err != nil {
			return fail("jsonl", err)
		}
		b.sinks = append(b.sinks, j)
	}
	if s.Timescale.Enabled {
		ts, err := sink.OpenTimescale(ctx, s.Timescale.ConnString, s.Timescale.Table)
		if err != nil {
			return fail("timescale", err)
		}
		b.sinks = append(b.sinks, ts)
	}
	if s.ClickHouse.Enabled {
		ch, err := sink.OpenClickHouse(ctx, sink.ClickHouseConfig{
			Addr:     s.ClickHouse.Addr,
			Database: s.ClickHouse.Database,
			Username: s.ClickHouse.Username,
			Password: s.ClickHouse.Password,
			Table:    s.ClickHouse.Table,
		})
		if err != nil {
			return fail("clickhouse", err)
		}
		b.sinks = append(b.sinks, ch)
	}
	if s.Memory.Enabled {
		b.store = queue.NewMemStore(s.Memory.Capacity, true)
		b.sinks = append(b.sinks, b.store)
	}
	if s.MQTT.Enabled {
		mq, err := sink.ConnectMQTT(sink.MQTTConfig{
			Broker:   s.MQTT.Broker,
			ClientID: s.MQTT.ClientID,
			Username: s.MQTT.Username,
			Password: s.MQTT.Password,
			Topic:    s.MQTT.Topic,
			QoS:      s.MQTT.QoS,
			Retained: s.MQTT.Retained,
		}, session)
		if err != nil {
			return fail("mqtt", err)
		}
		b.sinks = append(b.sinks, mq)
	}
	if s.AMQP.Enabled {
		am, err := sink.DialAMQP(sink.AMQPConfig{
			URL:        s.AMQP.URL,
			Exchange:   s.AMQP.Exchange,
			RoutingKey: s.AMQP.RoutingKey,
		})
		if err != nil {
			return fail("amqp", err)
		}
		b.sinks = append(b.sinks, am)
	}
	if s.Redis.Enabled {
		rd, err := sink.ConnectRedis(ctx, s.Redis.Addr, s.Redis.DB, s.Redis.Prefix)
		if err != nil {
			return fail("redis", err)
		}
		b.sinks = append(b.sinks, rd)
	}
	return b, nil
}

func buildDisplays(cfg *Config) ([]Display, *display.Board) {
	var (
		out   []Display
		board *display.Board
	)
	if cfg.Displays.Console.Enabled {
		out = append(out, display.NewConsole(os.Stdout))
	}
	if cfg.Displays.Board.Enabled {
		board = display.NewBoard()
		out = append(out, board)
	}
	return out, board
}

// closeSinks closes in reverse order, like the controller does on exit.
func closeSinks(sinks []Sink) error {
	var errs []error
	for i := len(sinks) - 1; i >= 0; i-- {
		if err := sinks[i].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", sinks[i].Name(), err))
		}
	}
	return errors.Join(errs...)
}

// closeProviders releases providers that hold a bus or session.
func closeProviders(providers []Provider) error {
	var errs []error
	for _, p := range providers {
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", p.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
