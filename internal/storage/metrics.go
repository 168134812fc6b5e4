package storage

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/aarondfrancis/eventable/internal/telemetry"
)

// RegisterMetrics exposes connection gauges for the store. Observations are
// taken from database/sql stats, plus pgxpool stats for PostgreSQL.
func (db *DB) RegisterMetrics() error {
	meter := telemetry.Meter("eventable/storage")

	if _, err := meter.Int64ObservableGauge("eventable.store.connections.open",
		metric.WithDescription("Open connections held by the event store"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(db.sql.Stats().OpenConnections))
			return nil
		}),
	); err != nil {
		return fmt.Errorf("storage: register connection gauge: %w", err)
	}

	if db.pool == nil {
		return nil
	}
	if _, err := meter.Int64ObservableGauge("eventable.store.pool.acquired",
		metric.WithDescription("PostgreSQL pool connections currently acquired"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(db.pool.Stat().AcquiredConns()))
			return nil
		}),
	); err != nil {
		return fmt.Errorf("storage: register pool gauge: %w", err)
	}
	return nil
}
