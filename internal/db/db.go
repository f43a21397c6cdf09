// internal/db/db.go
package db

import (
    "context"
    "database/sql"
    _ "embed"
    "fmt"
    "log/slog"
    "time"

    _ "github.com/lib/pq"
)

//go:embed schema.sql
var Schema string

// Open connects to Postgres, sizes the pool and pings with a deadline.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*sql.DB, error) {
    conn, err := sql.Open("postgres", dsn)
    if err != nil {
        return nil, fmt.Errorf("open database: %w", err)
    }

    conn.SetMaxOpenConns(25)
    conn.SetMaxIdleConns(5)
    conn.SetConnMaxLifetime(5 * time.Minute)

    pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
    defer cancel()
    if err := conn.PingContext(pingCtx); err != nil {
        conn.Close()
        return nil, fmt.Errorf("ping database: %w", err)
    }

    logger.Info("connected to database")
    return conn, nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, conn *sql.DB) error {
    if _, err := conn.ExecContext(ctx, Schema); err != nil {
        return fmt.Errorf("apply schema: %w", err)
    }
    return nil
}
