package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mr-karan/vigil/internal/alerts"
	"github.com/mr-karan/vigil/internal/config"
	"github.com/mr-karan/vigil/internal/sqlite"
	"github.com/mr-karan/vigil/pkg/models"
)

func ptrFloat64(v float64) *float64 { return &v }

func newTestServer(t *testing.T) (*Server, *sqlite.DB) {
	t.Helper()

	log := slog.New(slog.DiscardHandler)
	cfg := config.Default()
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "vigil.db")

	db, err := sqlite.New(sqlite.Options{Logger: log, Config: cfg.SQLite})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	srv := New(Options{
		Config:  cfg,
		SQLite:  db,
		Engine:  alerts.NewEngine(db, log),
		Logger:  log,
		Version: "test",
	})
	return srv, db
}

func seedSensorAndRule(t *testing.T, db *sqlite.DB) (*models.Sensor, *models.Rule) {
	t.Helper()

	sensor, err := db.CreateSensor(t.Context(), &models.Sensor{
		InternalName: "cpu_temp",
		DisplayName:  "CPU Temperature",
		SensorType:   "temperature",
		Platform:     "linux",
		Unit:         "C",
		Enabled:      true,
	})
	if err != nil {
		t.Fatalf("failed to create sensor: %v", err)
	}

	rule, err := db.CreateRule(t.Context(), &models.Rule{
		SensorID:       sensor.ID,
		ConditionType:  models.ConditionThreshold,
		SeverityLevel:  models.SeverityCritical,
		ThresholdValue: ptrFloat64(100),
		Enabled:        true,
	})
	if err != nil {
		t.Fatalf("failed to create rule: %v", err)
	}
	return sensor, rule
}

func doRequest(t *testing.T, srv *Server, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := srv.app.Test(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	var envelope map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode response for %s %s: %v", method, path, err)
	}
	return resp, envelope
}

func TestReadingToActiveAlertFlow(t *testing.T) {
	t.Parallel()

	srv, db := newTestServer(t)
	seedSensorAndRule(t, db)

	// A reading under the threshold opens nothing.
	resp, _ := doRequest(t, srv, http.MethodPost, "/api/v1/readings", `{"sensor_id": 1, "value": 50}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	_, envelope := doRequest(t, srv, http.MethodGet, "/api/v1/alerts", "")
	if envelope["data"] != nil {
		t.Fatalf("expected no active alerts, got %v", envelope["data"])
	}

	// A violation opens one ACTIVE alert.
	resp, envelope = doRequest(t, srv, http.MethodPost, "/api/v1/readings", `{"sensor_id": 1, "value": 120}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	transitions := envelope["data"].(map[string]any)["transitions"].([]any)
	if len(transitions) != 1 {
		t.Fatalf("expected one transition, got %v", transitions)
	}
	if outcome := transitions[0].(map[string]any)["outcome"]; outcome != "created" {
		t.Fatalf("expected created outcome, got %v", outcome)
	}

	resp, envelope = doRequest(t, srv, http.MethodGet, "/api/v1/alerts/stats", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	data := envelope["data"].(map[string]any)
	if data["available"] != true || data["total_active"] != float64(1) || data["critical"] != float64(1) {
		t.Fatalf("unexpected statistics %v", data)
	}

	// Unknown sensors are rejected.
	resp, _ = doRequest(t, srv, http.MethodPost, "/api/v1/readings", `{"sensor_id": 999, "value": 120}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown sensor, got %d", resp.StatusCode)
	}
}

func TestStatisticsDegradeWhenStoreFails(t *testing.T) {
	t.Parallel()

	srv, db := newTestServer(t)

	resp, envelope := doRequest(t, srv, http.MethodGet, "/api/v1/alerts/stats", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if envelope["data"].(map[string]any)["available"] != true {
		t.Fatalf("expected statistics available, got %v", envelope)
	}

	// With the store gone the endpoint stays 200 and marks itself
	// unavailable instead of failing the dashboard.
	if err := db.Close(); err != nil {
		t.Fatalf("failed to close database: %v", err)
	}
	resp, envelope = doRequest(t, srv, http.MethodGet, "/api/v1/alerts/stats", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after store failure, got %d", resp.StatusCode)
	}
	data := envelope["data"].(map[string]any)
	if data["available"] != false {
		t.Fatalf("expected available=false, got %v", data)
	}
	if envelope["status"] != "success" {
		t.Fatalf("expected success envelope, got %v", envelope["status"])
	}
}

func TestAcknowledgeAndResolveErrors(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	resp, envelope := doRequest(t, srv, http.MethodPost, "/api/v1/alerts/999/acknowledge", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if envelope["status"] != "error" {
		t.Fatalf("expected error envelope, got %v", envelope)
	}

	resp, _ = doRequest(t, srv, http.MethodPost, "/api/v1/alerts/999/resolve", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	resp, _ = doRequest(t, srv, http.MethodPost, "/api/v1/alerts/abc/acknowledge", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed ID, got %d", resp.StatusCode)
	}
}

func TestAcknowledgeAndResolveLifecycle(t *testing.T) {
	t.Parallel()

	srv, db := newTestServer(t)
	seedSensorAndRule(t, db)
	doRequest(t, srv, http.MethodPost, "/api/v1/readings", `{"sensor_id": 1, "value": 120}`)

	resp, envelope := doRequest(t, srv, http.MethodPost, "/api/v1/alerts/1/acknowledge", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if status := envelope["data"].(map[string]any)["status"]; status != "ACKNOWLEDGED" {
		t.Fatalf("expected ACKNOWLEDGED, got %v", status)
	}

	resp, envelope = doRequest(t, srv, http.MethodPost, "/api/v1/alerts/1/resolve", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if status := envelope["data"].(map[string]any)["status"]; status != "RESOLVED" {
		t.Fatalf("expected RESOLVED, got %v", status)
	}

	// Resolving again is idempotent and still 200.
	resp, envelope = doRequest(t, srv, http.MethodPost, "/api/v1/alerts/1/resolve", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on repeat resolve, got %d", resp.StatusCode)
	}
	if status := envelope["data"].(map[string]any)["status"]; status != "RESOLVED" {
		t.Fatalf("expected RESOLVED, got %v", status)
	}
}
