package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/clickhouse"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/loykin/watchdog/internal/history"
)

// setupClickHouse starts a container and returns a sink with its table created.
func setupClickHouse(ctx context.Context, t *testing.T, table string) *Sink {
	t.Helper()

	container, err := clickhouse.Run(ctx,
		"clickhouse/clickhouse-server:24.3.2.23",
		clickhouse.WithUsername("default"),
		clickhouse.WithPassword(""),
		clickhouse.WithDatabase("default"),
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/ping").
				WithPort("8123/tcp").
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start ClickHouse container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Errorf("Failed to terminate ClickHouse container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "9000")
	if err != nil {
		t.Fatalf("Failed to get mapped port: %v", err)
	}

	sink, err := New(host+":"+port.Port(), "default", table)
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	t.Cleanup(func() { _ = sink.Close() })
	if err := sink.CreateTable(ctx); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}
	return sink
}

func TestClickHouseSink_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	sink := setupClickHouse(ctx, t, "watchdog_history")

	rec := history.Record{Slot: 1, Name: "test-process", Path: "/bin/test-process", PID: 12345}
	if err := sink.Send(ctx, history.Event{Type: history.EventStart, OccurredAt: time.Now().UTC(), Record: rec}); err != nil {
		t.Fatalf("Failed to send start event: %v", err)
	}
	code := 1
	rec.ExitCode = &code
	if err := sink.Send(ctx, history.Event{Type: history.EventExit, OccurredAt: time.Now().UTC(), Record: rec}); err != nil {
		t.Fatalf("Failed to send exit event: %v", err)
	}
	failed := history.Record{Slot: 2, Name: "missing", Path: "/nope", Error: "target not found"}
	if err := sink.Send(ctx, history.Event{Type: history.EventStartFailed, OccurredAt: time.Now().UTC(), Record: failed}); err != nil {
		t.Fatalf("Failed to send start_failed event: %v", err)
	}

	var count uint64
	if err := sink.conn.QueryRow(ctx, "SELECT COUNT(*) FROM watchdog_history WHERE name = ?", rec.Name).Scan(&count); err != nil {
		t.Fatalf("Failed to query count: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 events, got %d", count)
	}
}

func TestClickHouseSink_ConnectionError(t *testing.T) {
	if _, err := New("127.0.0.1:1", "", "t"); err == nil {
		t.Error("Expected error with invalid connection, got nil")
	}
}
