// Package alerts records operator-facing notifications. The rows are
// consumed by an external notification collaborator; this package only
// writes and lists them.
package alerts

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/merchantiq/catalog-service/internal/database"
	"github.com/merchantiq/catalog-service/internal/metrics"
)

// Alert severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Raise persists a structured alert record
func Raise(ctx context.Context, db *pgxpool.Pool, severity, title, message string, action *string) error {
	_, err := db.Exec(ctx, `
		INSERT INTO alerts (severity, title, message, action, created_at)
		VALUES ($1, $2, $3, $4, now())
	`, severity, title, message, action)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	metrics.AlertsRaised.WithLabelValues(severity).Inc()

	log.Warn().
		Str("severity", severity).
		Str("title", title).
		Msg(message)

	return nil
}

// List returns the most recent alerts, newest first
func List(ctx context.Context, db *pgxpool.Pool, limit, offset int) ([]database.Alert, error) {
	rows, err := db.Query(ctx, `
		SELECT id, severity, title, message, action, created_at
		FROM alerts
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]database.Alert, 0)
	for rows.Next() {
		var a database.Alert
		if err := rows.Scan(&a.ID, &a.Severity, &a.Title, &a.Message, &a.Action, &a.CreatedAt); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}

	return alerts, rows.Err()
}
