package db

import (
	"context"
	"time"

	"arcade_arena/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect creates the pool. A failed ping is logged but not fatal: the pool
// reconnects lazily and every storage caller degrades on error.
func Connect(dsn string) *pgxpool.Pool {
	db, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		logger.Fatal("failed to create database pool", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.Ping(ctx); err != nil {
		logger.Warn("database ping failed, continuing in degraded mode", "error", err)
		return db
	}

	logger.Info("database connected")
	return db
}
