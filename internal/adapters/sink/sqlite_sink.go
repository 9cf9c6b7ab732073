package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jersme/enviro/internal/domain"
	"github.com/jersme/enviro/internal/ports"
)

// SQLiteTimeLayout is how timestamps are stored in the TEXT column.
const SQLiteTimeLayout = "2006-01-02 15:04:05"

var errColumnsChanged = errors.New("reading fields differ from table columns")

// SQLiteSink appends one row per Reading: a TEXT timestamp followed by one
// REAL column per field. The table is created from the first Reading.
type SQLiteSink struct {
	mu      sync.Mutex
	db      *sql.DB
	table   string
	columns []string
	insert  string
}

func NewSQLiteSink(db *sql.DB, table string) (*SQLiteSink, error) {
	if err := checkIdent("table", table); err != nil {
		return nil, err
	}
	return &SQLiteSink{db: db, table: table}, nil
}

// OpenSQLite opens (or creates) the database file with the pure-Go driver.
func OpenSQLite(path, table string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one writer; avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)
	s, err := NewSQLiteSink(db, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSink) Name() string { return "sqlite" }

func (s *SQLiteSink) Append(ctx context.Context, r domain.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.columns == nil {
		if err := s.prepare(ctx, r.Names()); err != nil {
			return err
		}
	}
	if len(r.Fields) != len(s.columns) {
		return fmt.Errorf("%w: got %v want %v", errColumnsChanged, r.Names(), s.columns)
	}

	args := make([]any, 0, len(r.Fields)+1)
	args = append(args, r.Timestamp.UTC().Format(SQLiteTimeLayout))
	for i, f := range r.Fields {
		if f.Name != s.columns[i] {
			return fmt.Errorf("%w: got %v want %v", errColumnsChanged, r.Names(), s.columns)
		}
		args = append(args, f.Value)
	}

	_, err := s.db.ExecContext(ctx, s.insert, args...)
	return err
}

func (s *SQLiteSink) prepare(ctx context.Context, columns []string) error {
	var ddl, ins, ph strings.Builder
	ddl.WriteString("CREATE TABLE IF NOT EXISTS ")
	ddl.WriteString(s.table)
	ddl.WriteString(" (timestamp TEXT")
	ins.WriteString("INSERT INTO ")
	ins.WriteString(s.table)
	ins.WriteString(" (timestamp")
	ph.WriteString("?")

	for _, c := range columns {
		if err := checkIdent("column", c); err != nil {
			return err
		}
		ddl.WriteString(", ")
		ddl.WriteString(c)
		ddl.WriteString(" REAL")
		ins.WriteString(", ")
		ins.WriteString(c)
		ph.WriteString(",?")
	}
	ddl.WriteString(")")
	ins.WriteString(") VALUES (")
	ins.WriteString(ph.String())
	ins.WriteString(")")

	if _, err := s.db.ExecContext(ctx, ddl.String()); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	s.columns = append([]string(nil), columns...)
	s.insert = ins.String()
	return nil
}

// Readings reads every stored row back in insertion order.
func (s *SQLiteSink) Readings(ctx context.Context) ([]domain.Reading, error) {
	s.mu.Lock()
	cols := s.columns
	s.mu.Unlock()
	if cols == nil {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, "SELECT timestamp, "+strings.Join(cols, ", ")+" FROM "+s.table+" ORDER BY rowid")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Reading
	for rows.Next() {
		var ts string
		vals := make([]float64, len(cols))
		dest := make([]any, 0, len(cols)+1)
		dest = append(dest, &ts)
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		when, err := time.ParseInLocation(SQLiteTimeLayout, ts, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
		fields := make([]domain.Field, len(cols))
		for i, c := range cols {
			fields[i] = domain.Field{Name: c, Value: vals[i]}
		}
		out = append(out, domain.Reading{Timestamp: when, Fields: fields})
	}
	return out, rows.Err()
}

func (s *SQLiteSink) Close() error { return s.db.Close() }

var _ ports.Sink = (*SQLiteSink)(nil)
