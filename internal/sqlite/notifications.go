package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mr-karan/vigil/pkg/models"
)

const notificationColumns = `notification_id, alert_id, channel, message, status, sent_at, response_code, error_message, created_at`

const (
	sqlHasSentAttempt = `
SELECT EXISTS (
    SELECT 1 FROM notification_log
    WHERE alert_id = ? AND status = 'SENT'
)`

	sqlInsertAttempt = `
INSERT INTO notification_log (alert_id, channel, message, status, sent_at, response_code, error_message)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING ` + notificationColumns

	sqlListAttemptsByAlert = `
SELECT ` + notificationColumns + `
FROM notification_log
WHERE alert_id = ?
ORDER BY notification_id`

	// Alerts still open at or above a severity with no delivery attempt
	// on record. A FAILED sequence is terminal for the batch scan; only
	// untouched alerts are picked up.
	sqlListAlertsNeedingNotification = `
SELECT ` + alertColumns + `
FROM alert_history
WHERE status = 'ACTIVE'
  AND severity_level >= ?
  AND NOT EXISTS (
      SELECT 1 FROM notification_log
      WHERE notification_log.alert_id = alert_history.alert_id
  )
ORDER BY triggered_at DESC, alert_id DESC`
)

// scanNotification scans a notification row in the column order of
// notificationColumns.
func scanNotification(row interface{ Scan(...any) error }) (*models.NotificationAttempt, error) {
	var (
		n            models.NotificationAttempt
		sentAt       sql.NullTime
		responseCode sql.NullInt64
	)
	err := row.Scan(
		&n.ID,
		&n.AlertID,
		&n.Channel,
		&n.Message,
		&n.Status,
		&sentAt,
		&responseCode,
		&n.ErrorMessage,
		&n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if sentAt.Valid {
		n.SentAt = &sentAt.Time
	}
	if responseCode.Valid {
		code := int(responseCode.Int64)
		n.ResponseCode = &code
	}
	return &n, nil
}

// HasSentAttempt reports whether the alert already has a successful
// delivery on record.
func (db *DB) HasSentAttempt(ctx context.Context, alertID models.AlertID) (bool, error) {
	var exists bool
	if err := db.readDB.QueryRowContext(ctx, sqlHasSentAttempt, alertID).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking sent attempts: %w", err)
	}
	return exists, nil
}

// InsertAttempt records the terminal outcome of a delivery sequence.
// The log is append only.
func (db *DB) InsertAttempt(ctx context.Context, n *models.NotificationAttempt) (*models.NotificationAttempt, error) {
	var (
		sentAt       any
		responseCode any
	)
	if n.SentAt != nil {
		sentAt = *n.SentAt
	}
	if n.ResponseCode != nil {
		responseCode = *n.ResponseCode
	}

	created, err := scanNotification(db.writeDB.QueryRowContext(ctx, sqlInsertAttempt,
		n.AlertID, n.Channel, n.Message, n.Status, sentAt, responseCode, n.ErrorMessage))
	if err != nil {
		return nil, fmt.Errorf("error inserting notification attempt: %w", err)
	}
	return created, nil
}

// ListAttemptsByAlert returns the notification log for an alert in
// insertion order.
func (db *DB) ListAttemptsByAlert(ctx context.Context, alertID models.AlertID) ([]*models.NotificationAttempt, error) {
	rows, err := db.readDB.QueryContext(ctx, sqlListAttemptsByAlert, alertID)
	if err != nil {
		return nil, fmt.Errorf("error listing notification attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*models.NotificationAttempt
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning notification attempt: %w", err)
		}
		attempts = append(attempts, n)
	}
	return attempts, rows.Err()
}

// ListAlertsNeedingNotification returns ACTIVE alerts at or above the
// given severity with no delivery attempt recorded yet.
func (db *DB) ListAlertsNeedingNotification(ctx context.Context, minSeverity models.Severity) ([]*models.AlertRecord, error) {
	rows, err := db.readDB.QueryContext(ctx, sqlListAlertsNeedingNotification, int(minSeverity))
	if err != nil {
		return nil, fmt.Errorf("error listing alerts needing notification: %w", err)
	}
	defer rows.Close()
	return collectAlerts(rows)
}
