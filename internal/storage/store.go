package storage

import (
	"context"

	"pulseboard/internal/models"
)

// Session is one transaction-scoped, append-only load. Every record added
// becomes visible only on Commit; Rollback discards the whole batch.
type Session interface {
	Add(rec models.Record) error
	Commit() error
	Rollback() error
}

// Store hands out load sessions and serves the reporting read path.
type Store interface {
	Begin(ctx context.Context) (Session, error)

	KeyedMetrics(ctx context.Context, category string) ([]models.KeyedMetric, error)
	NamedMetrics(ctx context.Context, metricType string) ([]models.NamedMetric, error)
	SeriesMetrics(ctx context.Context, metricType string) ([]models.TimestampedMetric, error)
}
