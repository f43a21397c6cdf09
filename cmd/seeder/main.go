//cmd/seeder/main.go
package main

import (
    "context"
    "log/slog"
    "os"
    "time"

    "github.com/unclebandit/campaign-portal/internal/catalog"
    "github.com/unclebandit/campaign-portal/internal/config"
    "github.com/unclebandit/campaign-portal/internal/db"
    "github.com/unclebandit/campaign-portal/internal/repository"
)

func main() {
    logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
    cfg := config.Load(logger)

    ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
    defer cancel()

    conn, err := db.Open(ctx, cfg.DatabaseURL, logger)
    if err != nil {
        logger.Error("database unavailable", slog.String("error", err.Error()))
        os.Exit(1)
    }
    defer conn.Close()

    if err := db.Migrate(ctx, conn); err != nil {
        logger.Error("migration failed", slog.String("error", err.Error()))
        os.Exit(1)
    }

    plays, err := catalog.New(&repository.TemplateRepository{DB: conn})
    if err != nil {
        logger.Error("play catalog invalid", slog.String("error", err.Error()))
        os.Exit(1)
    }

    created, err := plays.Seed(ctx)
    if err != nil {
        logger.Error("seeding failed", slog.String("error", err.Error()))
        os.Exit(1)
    }
    logger.Info("database seeding completed", slog.Int("templates_created", created))
}
