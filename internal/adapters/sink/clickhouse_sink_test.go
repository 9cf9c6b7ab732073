package sink

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/jersme/enviro/internal/domain"
)

type fakeBatch struct {
	driver.Batch
	rows    [][]any
	failOn  int
	sent    bool
	aborted bool
}

func (b *fakeBatch) Append(v ...any) error {
	if b.failOn > 0 && len(b.rows)+1 == b.failOn {
		return errors.New("bad column")
	}
	b.rows = append(b.rows, v)
	return nil
}

func (b *fakeBatch) Send() error  { b.sent = true; return nil }
func (b *fakeBatch) Abort() error { b.aborted = true; return nil }

type fakeClickHouse struct {
	execs   []string
	queries []string
	batch   *fakeBatch
	closed  bool
}

func (f *fakeClickHouse) Exec(ctx context.Context, query string, args ...any) error {
	f.execs = append(f.execs, query)
	return nil
}

func (f *fakeClickHouse) PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error) {
	f.queries = append(f.queries, query)
	return f.batch, nil
}

func (f *fakeClickHouse) Close() error { f.closed = true; return nil }

func TestClickHouseSinkBatchesOneRowPerField(t *testing.T) {
	conn := &fakeClickHouse{batch: &fakeBatch{}}
	sink, err := NewClickHouseSink(conn, "enviro_readings")
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	if err := sink.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("schema: %v", err)
	}
	if len(conn.execs) != 1 || !strings.Contains(conn.execs[0], "MergeTree") {
		t.Fatalf("unexpected ddl %v", conn.execs)
	}

	ts := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	r := domain.NewReading(ts, []domain.Field{{Name: "pm1", Value: 1}, {Name: "pm25", Value: 2.5}})
	if err := sink.Append(context.Background(), r); err != nil {
		t.Fatalf("append: %v", err)
	}
	if conn.queries[0] != "INSERT INTO enviro_readings (ts, name, value)" {
		t.Fatalf("unexpected insert %q", conn.queries[0])
	}
	if !conn.batch.sent || len(conn.batch.rows) != 2 {
		t.Fatalf("expected 2 rows sent, got %+v", conn.batch)
	}
	if conn.batch.rows[1][1] != "pm25" || conn.batch.rows[1][2] != 2.5 {
		t.Fatalf("unexpected row %v", conn.batch.rows[1])
	}

	if err := sink.Close(); err != nil || !conn.closed {
		t.Fatalf("expected close, err=%v", err)
	}
}

func TestClickHouseSinkAbortsOnAppendError(t *testing.T) {
	conn := &fakeClickHouse{batch: &fakeBatch{failOn: 1}}
	sink, _ := NewClickHouseSink(conn, "enviro_readings")

	r := domain.NewReading(time.Now(), []domain.Field{{Name: "lux", Value: 10}})
	if err := sink.Append(context.Background(), r); err == nil {
		t.Fatalf("expected append error")
	}
	if !conn.batch.aborted || conn.batch.sent {
		t.Fatalf("expected abort without send, got %+v", conn.batch)
	}
}
