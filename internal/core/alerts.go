// Package core provides the application-level operations behind the
// HTTP handlers, tying the store and the alert state machine together.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mr-karan/vigil/internal/alerts"
	"github.com/mr-karan/vigil/internal/metrics"
	"github.com/mr-karan/vigil/internal/sqlite"
	"github.com/mr-karan/vigil/pkg/models"
)

var (
	// ErrAlertNotFound is returned when an alert cannot be located.
	ErrAlertNotFound = errors.New("alert not found")
	// ErrSensorNotFound is returned when a sensor is not registered.
	ErrSensorNotFound = errors.New("sensor not found")
	// ErrInvalidReading indicates the reading payload failed validation.
	ErrInvalidReading = errors.New("invalid reading")
)

// IngestReading evaluates one reading against the sensor's enabled rules
// and applies the resulting alert transitions. Per-rule persistence
// failures are logged and skipped; the successful transitions are
// returned.
func IngestReading(ctx context.Context, db *sqlite.DB, engine *alerts.Engine, log *slog.Logger, req *models.IngestReadingRequest) ([]alerts.Transition, error) {
	if req.SensorID <= 0 {
		return nil, fmt.Errorf("%w: sensor_id is required", ErrInvalidReading)
	}
	if req.AnomalyScore != nil && (*req.AnomalyScore < 0 || *req.AnomalyScore > 1) {
		return nil, fmt.Errorf("%w: anomaly_score must be within [0, 1]", ErrInvalidReading)
	}

	if _, err := db.GetSensor(ctx, req.SensorID); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return nil, ErrSensorNotFound
		}
		return nil, fmt.Errorf("error loading sensor: %w", err)
	}

	rules, err := db.ListEnabledRulesForSensor(ctx, req.SensorID)
	if err != nil {
		return nil, fmt.Errorf("error loading rules: %w", err)
	}

	reading := models.Reading{
		SensorID:      req.SensorID,
		Value:         req.Value,
		Timestamp:     req.Timestamp,
		AnomalyScore:  req.AnomalyScore,
		ForecastValue: req.ForecastValue,
	}
	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now()
	}

	metrics.ReadingsIngested.Inc()

	transitions := engine.EvaluateAndTrigger(ctx, reading, rules)
	applied := make([]alerts.Transition, 0, len(transitions))
	for _, t := range transitions {
		switch t.Outcome {
		case alerts.OutcomeError:
			log.Error("skipping failed transition", "sensor_id", req.SensorID, "error", t.Err)
			continue
		case alerts.OutcomeCreated:
			metrics.AlertsTriggered.Inc()
		case alerts.OutcomeAutoResolved:
			metrics.AlertsResolved.Inc()
		}
		applied = append(applied, t)
	}
	return applied, nil
}

// GetActiveAlerts returns all ACTIVE alerts, most recent first.
func GetActiveAlerts(ctx context.Context, db *sqlite.DB) ([]*models.AlertRecord, error) {
	return db.ListActiveAlerts(ctx)
}

// GetAlertStatistics returns counts of active alerts by severity.
func GetAlertStatistics(ctx context.Context, db *sqlite.DB) (*models.AlertStatistics, error) {
	return db.GetAlertStatistics(ctx)
}

// GetAlertsBySensor returns recent alert history for one sensor.
func GetAlertsBySensor(ctx context.Context, db *sqlite.DB, sensorID models.SensorID, limit int) ([]*models.AlertRecord, error) {
	if _, err := db.GetSensor(ctx, sensorID); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return nil, ErrSensorNotFound
		}
		return nil, fmt.Errorf("error loading sensor: %w", err)
	}
	return db.ListAlertsBySensor(ctx, sensorID, limit)
}

// GetAlert returns one alert record by ID.
func GetAlert(ctx context.Context, db *sqlite.DB, id models.AlertID) (*models.AlertRecord, error) {
	a, err := db.GetAlert(ctx, id)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("error getting alert: %w", err)
	}
	return a, nil
}

// AcknowledgeAlert marks an ACTIVE alert acknowledged. Acknowledging an
// alert past ACTIVE returns the record unchanged.
func AcknowledgeAlert(ctx context.Context, engine *alerts.Engine, id models.AlertID) (*models.AlertRecord, error) {
	t := engine.Acknowledge(ctx, id)
	switch t.Outcome {
	case alerts.OutcomeNotFound:
		return nil, ErrAlertNotFound
	case alerts.OutcomeError:
		return nil, fmt.Errorf("error acknowledging alert: %w", t.Err)
	default:
		return t.Record, nil
	}
}

// ResolveAlert marks an alert resolved. Resolving an already RESOLVED
// alert is idempotent.
func ResolveAlert(ctx context.Context, engine *alerts.Engine, id models.AlertID) (*models.AlertRecord, error) {
	t := engine.Resolve(ctx, id)
	switch t.Outcome {
	case alerts.OutcomeNotFound:
		return nil, ErrAlertNotFound
	case alerts.OutcomeResolved:
		metrics.AlertsResolved.Inc()
		return t.Record, nil
	case alerts.OutcomeError:
		return nil, fmt.Errorf("error resolving alert: %w", t.Err)
	default:
		return t.Record, nil
	}
}

// ListSensors returns the sensor registry.
func ListSensors(ctx context.Context, db *sqlite.DB) ([]*models.Sensor, error) {
	return db.ListSensors(ctx)
}

// ListNotifications returns the notification log for one alert.
func ListNotifications(ctx context.Context, db *sqlite.DB, alertID models.AlertID) ([]*models.NotificationAttempt, error) {
	if _, err := db.GetAlert(ctx, alertID); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("error getting alert: %w", err)
	}
	return db.ListAttemptsByAlert(ctx, alertID)
}
