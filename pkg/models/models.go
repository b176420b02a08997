package models

import "time"

// SensorID identifies a sensor in the external registry.
type SensorID int64

// RuleID identifies an alerting rule.
type RuleID int64

// AlertID identifies one alert lifecycle record.
type AlertID int64

// ConditionType represents the strategy used to evaluate a rule
// against a reading.
type ConditionType string

const (
	// ConditionThreshold triggers when the reading exceeds a fixed threshold.
	ConditionThreshold ConditionType = "THRESHOLD"
	// ConditionAnomaly triggers when an externally computed anomaly score
	// exceeds the rule's anomaly threshold.
	ConditionAnomaly ConditionType = "ANOMALY"
	// ConditionForecast triggers when an externally computed forecast value
	// exceeds the rule's threshold.
	ConditionForecast ConditionType = "FORECAST"
)

// DefaultAnomalyThreshold applies when a rule does not set its own.
const DefaultAnomalyThreshold = 0.7

// AlertStatus captures the lifecycle state of an alert record.
type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "ACTIVE"
	AlertStatusAcknowledged AlertStatus = "ACKNOWLEDGED"
	AlertStatusResolved     AlertStatus = "RESOLVED"
)

// NotificationStatus captures the terminal outcome of a delivery sequence.
type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "PENDING"
	NotificationStatusSent    NotificationStatus = "SENT"
	NotificationStatusFailed  NotificationStatus = "FAILED"
)

// Sensor is a row in the external-owned sensor registry. The core only
// reads it to enrich notifications and API responses.
type Sensor struct {
	ID           SensorID  `json:"sensor_id"`
	InternalName string    `json:"internal_name"`
	DisplayName  string    `json:"display_name"`
	SensorType   string    `json:"sensor_type"`
	Platform     string    `json:"platform"`
	Unit         string    `json:"unit"`
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`
}

// Rule is an alerting rule tied to a sensor. Rules are authored by
// external tooling; the core only consumes enabled ones.
type Rule struct {
	ID               RuleID        `json:"rule_id"`
	SensorID         SensorID      `json:"sensor_id"`
	ConditionType    ConditionType `json:"condition_type"`
	SeverityLevel    Severity      `json:"severity_level"`
	ThresholdValue   *float64      `json:"threshold_value,omitempty"`
	AnomalyThreshold *float64      `json:"anomaly_threshold,omitempty"`
	Enabled          bool          `json:"enabled"`
	CreatedAt        time.Time     `json:"created_at"`
}

// AlertRecord is one instance of a rule violation's lifecycle. Records
// are never deleted; once RESOLVED they form an append-only audit trail.
type AlertRecord struct {
	ID             AlertID     `json:"alert_id"`
	RuleID         RuleID      `json:"rule_id"`
	SensorID       SensorID    `json:"sensor_id"`
	TriggeredAt    time.Time   `json:"triggered_at"`
	SensorValue    float64     `json:"sensor_value"`
	SeverityLevel  Severity    `json:"severity_level"`
	Status         AlertStatus `json:"status"`
	AcknowledgedAt *time.Time  `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time  `json:"resolved_at,omitempty"`
	Notes          string      `json:"notes,omitempty"`
}

// NotificationAttempt is the durable record of one delivery outcome
// (success or final failure) for an alert.
type NotificationAttempt struct {
	ID           int64              `json:"notification_id"`
	AlertID      AlertID            `json:"alert_id"`
	Channel      string             `json:"channel"`
	Message      string             `json:"message,omitempty"`
	Status       NotificationStatus `json:"status"`
	SentAt       *time.Time         `json:"sent_at,omitempty"`
	ResponseCode *int               `json:"response_code,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

// Reading is a single sensor observation pushed in by the acquisition
// layer, optionally enriched with externally computed model outputs.
type Reading struct {
	SensorID      SensorID  `json:"sensor_id"`
	Value         float64   `json:"value"`
	Timestamp     time.Time `json:"timestamp"`
	AnomalyScore  *float64  `json:"anomaly_score,omitempty"`
	ForecastValue *float64  `json:"forecast_value,omitempty"`
}

// AlertStatistics summarizes currently active alerts by severity.
type AlertStatistics struct {
	TotalActive int `json:"total_active"`
	Critical    int `json:"critical"`
	Danger      int `json:"danger"`
	Warning     int `json:"warning"`
}

// IngestReadingRequest is the payload accepted by the readings endpoint.
type IngestReadingRequest struct {
	SensorID      SensorID  `json:"sensor_id"`
	Value         float64   `json:"value"`
	Timestamp     time.Time `json:"timestamp"`
	AnomalyScore  *float64  `json:"anomaly_score"`
	ForecastValue *float64  `json:"forecast_value"`
}

// DefaultSensorHistoryLimit bounds per-sensor alert history queries when
// the caller does not specify a limit.
const DefaultSensorHistoryLimit = 100
