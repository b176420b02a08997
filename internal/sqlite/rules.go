package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mr-karan/vigil/pkg/models"
)

const (
	sqlGetRule = `
SELECT rule_id, sensor_id, condition_type, severity_level, threshold_value, anomaly_threshold, enabled, created_at
FROM rules
WHERE rule_id = ?`

	sqlListEnabledRulesForSensor = `
SELECT rule_id, sensor_id, condition_type, severity_level, threshold_value, anomaly_threshold, enabled, created_at
FROM rules
WHERE sensor_id = ? AND enabled = 1
ORDER BY rule_id`

	sqlCreateRule = `
INSERT INTO rules (sensor_id, condition_type, severity_level, threshold_value, anomaly_threshold, enabled)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING rule_id, sensor_id, condition_type, severity_level, threshold_value, anomaly_threshold, enabled, created_at`
)

// scanRule scans a rule row in the column order of sqlGetRule.
func scanRule(row interface{ Scan(...any) error }) (*models.Rule, error) {
	var (
		r                models.Rule
		severity         int
		threshold        sql.NullFloat64
		anomalyThreshold sql.NullFloat64
	)
	err := row.Scan(
		&r.ID,
		&r.SensorID,
		&r.ConditionType,
		&severity,
		&threshold,
		&anomalyThreshold,
		&r.Enabled,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	sev, err := models.ParseSeverity(severity)
	if err != nil {
		return nil, err
	}
	r.SeverityLevel = sev
	if threshold.Valid {
		r.ThresholdValue = &threshold.Float64
	}
	if anomalyThreshold.Valid {
		r.AnomalyThreshold = &anomalyThreshold.Float64
	}
	return &r, nil
}

// GetRule retrieves a rule by ID.
func (db *DB) GetRule(ctx context.Context, id models.RuleID) (*models.Rule, error) {
	r, err := scanRule(db.readDB.QueryRowContext(ctx, sqlGetRule, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error getting rule: %w", err)
	}
	return r, nil
}

// ListEnabledRulesForSensor returns the enabled rules attached to a
// sensor. Disabled rules never reach the evaluator.
func (db *DB) ListEnabledRulesForSensor(ctx context.Context, sensorID models.SensorID) ([]*models.Rule, error) {
	rows, err := db.readDB.QueryContext(ctx, sqlListEnabledRulesForSensor, sensorID)
	if err != nil {
		return nil, fmt.Errorf("error listing rules: %w", err)
	}
	defer rows.Close()

	var rules []*models.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// CreateRule inserts an alerting rule. Rules are normally authored by
// external tooling; this exists for provisioning and tests.
func (db *DB) CreateRule(ctx context.Context, r *models.Rule) (*models.Rule, error) {
	var threshold, anomalyThreshold any
	if r.ThresholdValue != nil {
		threshold = *r.ThresholdValue
	}
	if r.AnomalyThreshold != nil {
		anomalyThreshold = *r.AnomalyThreshold
	}

	created, err := scanRule(db.writeDB.QueryRowContext(ctx, sqlCreateRule,
		r.SensorID, r.ConditionType, int(r.SeverityLevel), threshold, anomalyThreshold, r.Enabled))
	if err != nil {
		return nil, fmt.Errorf("error creating rule: %w", err)
	}
	return created, nil
}
