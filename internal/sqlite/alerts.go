package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mr-karan/vigil/pkg/models"
)

const alertColumns = `alert_id, rule_id, sensor_id, triggered_at, sensor_value, severity_level, status, acknowledged_at, resolved_at, notes`

const (
	sqlGetAlert = `
SELECT ` + alertColumns + `
FROM alert_history
WHERE alert_id = ?`

	sqlCreateAlert = `
INSERT INTO alert_history (rule_id, sensor_id, triggered_at, sensor_value, severity_level, status, notes)
VALUES (?, ?, ?, ?, ?, 'ACTIVE', ?)
RETURNING ` + alertColumns

	// sqlTouchActiveAlert refreshes the open alert for a rule instead of
	// opening a second one. Only the value and notes move; triggered_at
	// keeps the first-violation time. Matching zero rows means no alert
	// is open.
	sqlTouchActiveAlert = `
UPDATE alert_history
SET sensor_value = ?, notes = ?
WHERE rule_id = ? AND status = 'ACTIVE'
RETURNING ` + alertColumns

	sqlResolveActiveAlertByRule = `
UPDATE alert_history
SET status = 'RESOLVED', resolved_at = ?
WHERE rule_id = ? AND status = 'ACTIVE'
RETURNING ` + alertColumns

	sqlAcknowledgeAlert = `
UPDATE alert_history
SET status = 'ACKNOWLEDGED', acknowledged_at = ?
WHERE alert_id = ? AND status = 'ACTIVE'
RETURNING ` + alertColumns

	sqlResolveAlert = `
UPDATE alert_history
SET status = 'RESOLVED', resolved_at = ?
WHERE alert_id = ? AND status IN ('ACTIVE', 'ACKNOWLEDGED')
RETURNING ` + alertColumns

	sqlListActiveAlerts = `
SELECT ` + alertColumns + `
FROM alert_history
WHERE status = 'ACTIVE'
ORDER BY triggered_at DESC, alert_id DESC`

	sqlListAlertsBySensor = `
SELECT ` + alertColumns + `
FROM alert_history
WHERE sensor_id = ?
ORDER BY triggered_at DESC, alert_id DESC
LIMIT ?`

	sqlAlertStatistics = `
SELECT severity_level, COUNT(*)
FROM alert_history
WHERE status = 'ACTIVE'
GROUP BY severity_level`
)

// scanAlert scans an alert row in the column order of alertColumns.
func scanAlert(row interface{ Scan(...any) error }) (*models.AlertRecord, error) {
	var (
		a              models.AlertRecord
		severity       int
		acknowledgedAt sql.NullTime
		resolvedAt     sql.NullTime
	)
	err := row.Scan(
		&a.ID,
		&a.RuleID,
		&a.SensorID,
		&a.TriggeredAt,
		&a.SensorValue,
		&severity,
		&a.Status,
		&acknowledgedAt,
		&resolvedAt,
		&a.Notes,
	)
	if err != nil {
		return nil, err
	}

	sev, err := models.ParseSeverity(severity)
	if err != nil {
		return nil, err
	}
	a.SeverityLevel = sev
	if acknowledgedAt.Valid {
		a.AcknowledgedAt = &acknowledgedAt.Time
	}
	if resolvedAt.Valid {
		a.ResolvedAt = &resolvedAt.Time
	}
	return &a, nil
}

// GetAlert retrieves an alert record by ID.
func (db *DB) GetAlert(ctx context.Context, id models.AlertID) (*models.AlertRecord, error) {
	a, err := scanAlert(db.readDB.QueryRowContext(ctx, sqlGetAlert, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error getting alert: %w", err)
	}
	return a, nil
}

// CreateAlert opens a new ACTIVE alert record. The partial unique index
// on (rule_id) WHERE status = 'ACTIVE' rejects a second open alert for
// the same rule.
func (db *DB) CreateAlert(ctx context.Context, a *models.AlertRecord) (*models.AlertRecord, error) {
	created, err := scanAlert(db.writeDB.QueryRowContext(ctx, sqlCreateAlert,
		a.RuleID, a.SensorID, a.TriggeredAt, a.SensorValue, int(a.SeverityLevel), a.Notes))
	if err != nil {
		return nil, fmt.Errorf("error creating alert: %w", err)
	}
	return created, nil
}

// TouchActiveAlert updates the open alert for a rule with a fresh
// observation. Returns ErrNotFound when the rule has no ACTIVE alert.
func (db *DB) TouchActiveAlert(ctx context.Context, ruleID models.RuleID, value float64, notes string) (*models.AlertRecord, error) {
	a, err := scanAlert(db.writeDB.QueryRowContext(ctx, sqlTouchActiveAlert, value, notes, ruleID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error updating active alert: %w", err)
	}
	return a, nil
}

// ResolveActiveAlertByRule resolves the open alert for a rule, if any.
// Returns ErrNotFound when the rule has no ACTIVE alert.
func (db *DB) ResolveActiveAlertByRule(ctx context.Context, ruleID models.RuleID, resolvedAt time.Time) (*models.AlertRecord, error) {
	a, err := scanAlert(db.writeDB.QueryRowContext(ctx, sqlResolveActiveAlertByRule, resolvedAt, ruleID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error resolving active alert: %w", err)
	}
	return a, nil
}

// AcknowledgeAlert marks an ACTIVE alert as ACKNOWLEDGED. Returns
// ErrNotFound when the alert does not exist or is not ACTIVE.
func (db *DB) AcknowledgeAlert(ctx context.Context, id models.AlertID, acknowledgedAt time.Time) (*models.AlertRecord, error) {
	a, err := scanAlert(db.writeDB.QueryRowContext(ctx, sqlAcknowledgeAlert, acknowledgedAt, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error acknowledging alert: %w", err)
	}
	return a, nil
}

// ResolveAlert marks an ACTIVE or ACKNOWLEDGED alert as RESOLVED.
// Returns ErrNotFound when the alert does not exist or is already
// RESOLVED.
func (db *DB) ResolveAlert(ctx context.Context, id models.AlertID, resolvedAt time.Time) (*models.AlertRecord, error) {
	a, err := scanAlert(db.writeDB.QueryRowContext(ctx, sqlResolveAlert, resolvedAt, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error resolving alert: %w", err)
	}
	return a, nil
}

// ListActiveAlerts returns all ACTIVE alerts, most recent first.
func (db *DB) ListActiveAlerts(ctx context.Context) ([]*models.AlertRecord, error) {
	rows, err := db.readDB.QueryContext(ctx, sqlListActiveAlerts)
	if err != nil {
		return nil, fmt.Errorf("error listing active alerts: %w", err)
	}
	defer rows.Close()
	return collectAlerts(rows)
}

// ListAlertsBySensor returns a sensor's alert history across all
// statuses, most recent first, bounded by limit.
func (db *DB) ListAlertsBySensor(ctx context.Context, sensorID models.SensorID, limit int) ([]*models.AlertRecord, error) {
	if limit <= 0 {
		limit = models.DefaultSensorHistoryLimit
	}
	rows, err := db.readDB.QueryContext(ctx, sqlListAlertsBySensor, sensorID, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing sensor alerts: %w", err)
	}
	defer rows.Close()
	return collectAlerts(rows)
}

func collectAlerts(rows *sql.Rows) ([]*models.AlertRecord, error) {
	var alerts []*models.AlertRecord
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// GetAlertStatistics aggregates ACTIVE alerts by severity.
func (db *DB) GetAlertStatistics(ctx context.Context) (*models.AlertStatistics, error) {
	rows, err := db.readDB.QueryContext(ctx, sqlAlertStatistics)
	if err != nil {
		return nil, fmt.Errorf("error querying alert statistics: %w", err)
	}
	defer rows.Close()

	var stats models.AlertStatistics
	for rows.Next() {
		var level, count int
		if err := rows.Scan(&level, &count); err != nil {
			return nil, fmt.Errorf("error scanning alert statistics: %w", err)
		}
		stats.TotalActive += count
		switch models.Severity(level) {
		case models.SeverityCritical:
			stats.Critical = count
		case models.SeverityDanger:
			stats.Danger = count
		case models.SeverityWarning:
			stats.Warning = count
		}
	}
	return &stats, rows.Err()
}
