package alerts

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mr-karan/vigil/internal/config"
	"github.com/mr-karan/vigil/internal/metrics"
	"github.com/mr-karan/vigil/internal/sqlite"
	"github.com/mr-karan/vigil/pkg/models"
)

// NotificationStore is the persistence surface dispatch depends on.
type NotificationStore interface {
	GetSensor(ctx context.Context, id models.SensorID) (*models.Sensor, error)
	HasSentAttempt(ctx context.Context, alertID models.AlertID) (bool, error)
	InsertAttempt(ctx context.Context, n *models.NotificationAttempt) (*models.NotificationAttempt, error)
	ListAlertsNeedingNotification(ctx context.Context, minSeverity models.Severity) ([]*models.AlertRecord, error)
}

// Dispatcher delivers alert notifications to the configured webhook
// with bounded retries, and runs the periodic scan for unnotified
// high-severity alerts.
type Dispatcher struct {
	store  NotificationStore
	cfg    config.AlertsConfig
	client *http.Client
	log    *slog.Logger

	// sleep is swappable in tests to observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error

	warnMissingURL sync.Once

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher over the given store.
func NewDispatcher(store NotificationStore, cfg config.AlertsConfig, log *slog.Logger) *Dispatcher {
	transport := http.DefaultTransport
	if cfg.TLSInsecureSkipVerify {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return &Dispatcher{
		store: store,
		cfg:   cfg,
		client: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: transport,
		},
		log:   log.With("component", "alerts.dispatcher"),
		sleep: sleepContext,
	}
}

// Start launches the periodic scan loop. The loop stops when ctx is
// cancelled or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(d.cfg.DispatchInterval)
		defer ticker.Stop()

		d.log.Info("notification dispatcher started", "interval", d.cfg.DispatchInterval)
		for {
			select {
			case <-ctx.Done():
				d.log.Info("notification dispatcher stopped")
				return
			case <-ticker.C:
				sent := d.NotifyCriticalAlerts(ctx)
				if sent > 0 {
					d.log.Info("dispatch cycle complete", "sent", sent)
				}
			}
		}
	}()
}

// Stop cancels the scan loop and waits for in-flight deliveries.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
}

// NotifyCriticalAlerts scans ACTIVE alerts at or above the configured
// severity floor that have no delivery attempt yet and notifies each on
// its own goroutine, bounded by the concurrency limit. Returns the
// number of successful deliveries.
func (d *Dispatcher) NotifyCriticalAlerts(ctx context.Context) int {
	minSeverity := models.Severity(d.cfg.MinNotifySeverity)
	alerts, err := d.store.ListAlertsNeedingNotification(ctx, minSeverity)
	if err != nil {
		d.log.Error("failed to scan alerts for notification", "error", err)
		return 0
	}
	if len(alerts) == 0 {
		return 0
	}

	concurrency := d.cfg.DispatchConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		sent int
	)
	for _, alert := range alerts {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return sent
		}

		wg.Add(1)
		go func(alert *models.AlertRecord) {
			defer wg.Done()
			defer func() { <-sem }()
			if d.Notify(ctx, alert) {
				mu.Lock()
				sent++
				mu.Unlock()
			}
		}(alert)
	}
	wg.Wait()
	return sent
}

// Notify delivers one alert to the webhook. It is idempotent: a SENT
// attempt already on record short-circuits to true. On success it
// records a SENT attempt; after exhausting retries it records a single
// FAILED attempt and returns false. It never panics and never returns
// an error.
func (d *Dispatcher) Notify(ctx context.Context, alert *models.AlertRecord) bool {
	if d.cfg.WebhookURL == "" {
		d.warnMissingURL.Do(func() {
			d.log.Error("webhook URL not configured, notifications disabled")
		})
		return false
	}

	sent, err := d.store.HasSentAttempt(ctx, alert.ID)
	if err != nil {
		d.log.Error("failed to check prior attempts", "alert_id", alert.ID, "error", err)
		return false
	}
	if sent {
		return true
	}

	// Sensor lookup is best effort; the card degrades to the numeric ID.
	sensor, err := d.store.GetSensor(ctx, alert.SensorID)
	if err != nil && !errors.Is(err, sqlite.ErrNotFound) {
		d.log.Warn("failed to load sensor for notification", "sensor_id", alert.SensorID, "error", err)
	}

	card := buildCard(alert, sensor, d.cfg.DashboardURL)
	body, err := json.Marshal(card)
	if err != nil {
		d.log.Error("failed to marshal notification payload", "alert_id", alert.ID, "error", err)
		return false
	}

	maxRetries := d.cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	var lastCode *int
	for attempt := 0; attempt < maxRetries; attempt++ {
		code, err := d.deliver(ctx, body)
		if err == nil {
			d.recordAttempt(ctx, alert, string(body), models.NotificationStatusSent, &code, "")
			metrics.NotificationsSent.Inc()
			d.log.Info("notification sent", "alert_id", alert.ID, "attempt", attempt+1)
			return true
		}
		lastErr = err
		if code != 0 {
			lastCode = &code
		}
		metrics.NotificationRetries.Inc()
		d.log.Warn("notification attempt failed",
			"alert_id", alert.ID,
			"attempt", attempt+1,
			"max_retries", maxRetries,
			"error", err)

		if attempt == maxRetries-1 {
			break
		}
		// Shutdown mid-backoff abandons the sequence without a terminal
		// record, so a later cycle can pick the alert up again.
		if err := d.sleep(ctx, backoffDelay(d.cfg.BaseBackoff, attempt)); err != nil {
			d.log.Warn("delivery cancelled mid-backoff", "alert_id", alert.ID)
			return false
		}
	}

	d.recordAttempt(ctx, alert, string(body), models.NotificationStatusFailed, lastCode, lastErr.Error())
	metrics.NotificationsFailed.Inc()
	d.log.Error("notification failed after retries", "alert_id", alert.ID, "error", lastErr)
	return false
}

// deliver performs one webhook POST. Any non-2xx status is an error.
func (d *Dispatcher) deliver(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("error building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("error sending request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// recordAttempt persists the terminal outcome of a delivery sequence.
func (d *Dispatcher) recordAttempt(ctx context.Context, alert *models.AlertRecord, message string, status models.NotificationStatus, code *int, errMsg string) {
	attempt := &models.NotificationAttempt{
		AlertID:      alert.ID,
		Channel:      d.cfg.Channel,
		Message:      message,
		Status:       status,
		ResponseCode: code,
		ErrorMessage: errMsg,
	}
	if status == models.NotificationStatusSent {
		now := time.Now()
		attempt.SentAt = &now
	}
	if _, err := d.store.InsertAttempt(ctx, attempt); err != nil {
		d.log.Error("failed to record notification attempt", "alert_id", alert.ID, "error", err)
	}
}

// backoffDelay returns base * 2^attempt.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	return base << uint(attempt)
}

// sleepContext waits for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
