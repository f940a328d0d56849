package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/loykin/watchdog/internal/history"
)

// Sink sends events to ClickHouse using the official ClickHouse Go client.
// The target table must already exist; see CreateTable.
type Sink struct {
	conn  driver.Conn
	table string
}

// New connects to addr (host:port of the native protocol) and pings it.
func New(addr, database, table string) (*Sink, error) {
	if database == "" {
		database = "default"
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: "default",
			Password: "",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	return &Sink{conn: conn, table: table}, nil
}

// CreateTable creates the event table if it does not exist.
func (s *Sink) CreateTable(ctx context.Context) error {
	return s.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+s.table+` (
			occurred_at DateTime64(6),
			event String,
			slot Int32,
			name String,
			path String,
			pid Int64,
			exit_code Nullable(Int32),
			restarts Int32,
			error Nullable(String)
		) ENGINE = MergeTree()
		ORDER BY (occurred_at, name)
	`)
}

func (s *Sink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	query := fmt.Sprintf(`INSERT INTO %s (occurred_at, event, slot, name, path, pid, exit_code, restarts, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)

	var exitCode *int32
	if e.Record.ExitCode != nil {
		c := int32(*e.Record.ExitCode)
		exitCode = &c
	}
	var errText *string
	if e.Record.Error != "" {
		errText = &e.Record.Error
	}
	err := s.conn.Exec(ctx, query,
		e.OccurredAt.UTC(),
		string(e.Type),
		int32(e.Record.Slot),
		e.Record.Name,
		e.Record.Path,
		int64(e.Record.PID),
		exitCode,
		int32(e.Record.Restarts),
		errText,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event into ClickHouse: %w", err)
	}
	return nil
}
