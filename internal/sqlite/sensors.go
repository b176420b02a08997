package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mr-karan/vigil/pkg/models"
)

const (
	sqlGetSensor = `
SELECT sensor_id, internal_name, display_name, sensor_type, platform, unit, enabled, created_at
FROM sensors
WHERE sensor_id = ?`

	sqlListSensors = `
SELECT sensor_id, internal_name, display_name, sensor_type, platform, unit, enabled, created_at
FROM sensors
ORDER BY sensor_id`

	sqlCreateSensor = `
INSERT INTO sensors (internal_name, display_name, sensor_type, platform, unit, enabled)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING sensor_id, internal_name, display_name, sensor_type, platform, unit, enabled, created_at`
)

// scanSensor scans a sensor row in the column order of sqlGetSensor.
func scanSensor(row interface{ Scan(...any) error }) (*models.Sensor, error) {
	var s models.Sensor
	err := row.Scan(
		&s.ID,
		&s.InternalName,
		&s.DisplayName,
		&s.SensorType,
		&s.Platform,
		&s.Unit,
		&s.Enabled,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSensor retrieves a sensor from the registry by ID.
func (db *DB) GetSensor(ctx context.Context, id models.SensorID) (*models.Sensor, error) {
	s, err := scanSensor(db.readDB.QueryRowContext(ctx, sqlGetSensor, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error getting sensor: %w", err)
	}
	return s, nil
}

// ListSensors returns all registered sensors.
func (db *DB) ListSensors(ctx context.Context) ([]*models.Sensor, error) {
	rows, err := db.readDB.QueryContext(ctx, sqlListSensors)
	if err != nil {
		return nil, fmt.Errorf("error listing sensors: %w", err)
	}
	defer rows.Close()

	var sensors []*models.Sensor
	for rows.Next() {
		s, err := scanSensor(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning sensor: %w", err)
		}
		sensors = append(sensors, s)
	}
	return sensors, rows.Err()
}

// CreateSensor registers a sensor. The registry is normally populated by
// external tooling; this exists for provisioning and tests.
func (db *DB) CreateSensor(ctx context.Context, s *models.Sensor) (*models.Sensor, error) {
	created, err := scanSensor(db.writeDB.QueryRowContext(ctx, sqlCreateSensor,
		s.InternalName, s.DisplayName, s.SensorType, s.Platform, s.Unit, s.Enabled))
	if err != nil {
		return nil, fmt.Errorf("error creating sensor: %w", err)
	}
	return created, nil
}
