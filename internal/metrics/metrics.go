// Package metrics exposes internal counters in Prometheus text format.
package metrics

import (
	"io"

	"github.com/VictoriaMetrics/metrics"
)

var (
	// ReadingsIngested counts readings accepted for evaluation.
	ReadingsIngested = metrics.NewCounter("vigil_readings_ingested_total")

	// AlertsTriggered counts new ACTIVE alerts opened.
	AlertsTriggered = metrics.NewCounter("vigil_alerts_triggered_total")

	// AlertsResolved counts alerts closed, by operator or auto resolve.
	AlertsResolved = metrics.NewCounter("vigil_alerts_resolved_total")

	// NotificationsSent counts successful webhook deliveries.
	NotificationsSent = metrics.NewCounter("vigil_notifications_sent_total")

	// NotificationsFailed counts delivery sequences that exhausted retries.
	NotificationsFailed = metrics.NewCounter("vigil_notifications_failed_total")

	// NotificationRetries counts individual failed delivery attempts.
	NotificationRetries = metrics.NewCounter("vigil_notification_retries_total")
)

// WritePrometheus writes all registered metrics to w.
func WritePrometheus(w io.Writer) {
	metrics.WritePrometheus(w, true)
}
