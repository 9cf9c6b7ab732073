package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/jersme/enviro/internal/domain"
	"github.com/jersme/enviro/internal/ports"
)

// clickhouseConn is the subset of driver.Conn the sink uses.
type clickhouseConn interface {
	Exec(ctx context.Context, query string, args ...any) error
	PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error)
	Close() error
}

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Table    string
}

// ClickHouseSink writes one (ts, name, value) row per field in a single batch.
type ClickHouseSink struct {
	conn  clickhouseConn
	table string
}

func NewClickHouseSink(conn clickhouseConn, table string) (*ClickHouseSink, error) {
	if err := checkIdent("table", table); err != nil {
		return nil, err
	}
	return &ClickHouseSink{conn: conn, table: table}, nil
}

// OpenClickHouse dials the server, pings it and creates the table.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseSink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	s, err := NewClickHouseSink(conn, cfg.Table)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return s, nil
}

func (c *ClickHouseSink) Name() string { return "clickhouse" }

func (c *ClickHouseSink) EnsureSchema(ctx context.Context) error {
	return c.conn.Exec(ctx, "CREATE TABLE IF NOT EXISTS "+c.table+
		" (ts DateTime, name String, value Float64) ENGINE = MergeTree ORDER BY (name, ts)")
}

func (c *ClickHouseSink) Append(ctx context.Context, r domain.Reading) error {
	batch, err := c.conn.PrepareBatch(ctx, "INSERT INTO "+c.table+" (ts, name, value)")
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, f := range r.Fields {
		if err := batch.Append(r.Timestamp, f.Name, f.Value); err != nil {
			batch.Abort()
			return fmt.Errorf("append %s: %w", f.Name, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

func (c *ClickHouseSink) Close() error { return c.conn.Close() }

var _ ports.Sink = (*ClickHouseSink)(nil)
