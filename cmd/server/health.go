package main

import (
	"context"
	"database/sql"
)

// sqlPinger adapts *sql.DB to handlers.Pinger.
type sqlPinger struct {
	db *sql.DB
}

func (p sqlPinger) HealthCheck(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
