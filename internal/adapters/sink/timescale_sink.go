package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	_ "github.com/lib/pq"

	"github.com/jersme/enviro/internal/domain"
	"github.com/jersme/enviro/internal/ports"
)

var errNoRowInserted = errors.New("timescale: insert affected no rows")

// TimescaleSink stores one row per Reading with the fields as JSONB. seq
// numbers rows within a run so Readings sharing a second keep their order.
type TimescaleSink struct {
	db        *sql.DB
	tableName string
	seq       atomic.Uint64
}

func NewTimescaleSink(db *sql.DB, table string) (*TimescaleSink, error) {
	if err := checkIdent("table", table); err != nil {
		return nil, err
	}
	return &TimescaleSink{db: db, tableName: table}, nil
}

// OpenTimescale connects with lib/pq and creates the table if needed.
func OpenTimescale(ctx context.Context, connString, table string) (*TimescaleSink, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, err
	}
	s, err := NewTimescaleSink(db, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("timescale schema: %w", err)
	}
	return s, nil
}

func (t *TimescaleSink) Name() string { return "timescaledb" }

func (t *TimescaleSink) EnsureSchema(ctx context.Context) error {
	_, err := t.db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS "+t.tableName+
		" (ts TIMESTAMPTZ NOT NULL, seq BIGINT NOT NULL, fields JSONB NOT NULL)")
	return err
}

func (t *TimescaleSink) Append(ctx context.Context, r domain.Reading) error {
	vals, err := json.Marshal(r.Values())
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	seq := t.seq.Add(1)
	res, err := t.db.ExecContext(ctx,
		"INSERT INTO "+t.tableName+" (ts, seq, fields) VALUES ($1,$2,$3)",
		r.Timestamp, int64(seq), vals)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errNoRowInserted
	}
	return nil
}

func (t *TimescaleSink) Close() error { return t.db.Close() }

var _ ports.Sink = (*TimescaleSink)(nil)
