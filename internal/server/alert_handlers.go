package server

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/mr-karan/vigil/internal/core"
	"github.com/mr-karan/vigil/pkg/models"
)

// handleIngestReading accepts one sensor reading and applies the
// resulting alert transitions.
// URL: POST /api/v1/readings
func (s *Server) handleIngestReading(c *fiber.Ctx) error {
	var req models.IngestReadingRequest
	if err := c.BodyParser(&req); err != nil {
		return SendError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	transitions, err := core.IngestReading(c.Context(), s.sqlite, s.engine, s.log, &req)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidReading):
			return SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, core.ErrSensorNotFound):
			return SendError(c, fiber.StatusNotFound, "Sensor not found")
		}
		s.log.Error("failed to ingest reading", "sensor_id", req.SensorID, "error", err)
		return SendError(c, fiber.StatusInternalServerError, "Failed to ingest reading")
	}

	results := make([]fiber.Map, 0, len(transitions))
	for _, t := range transitions {
		results = append(results, fiber.Map{
			"outcome": t.Outcome,
			"alert":   t.Record,
		})
	}
	return SendSuccess(c, fiber.StatusOK, fiber.Map{"transitions": results})
}

// handleListActiveAlerts returns all ACTIVE alerts, most recent first.
// URL: GET /api/v1/alerts
func (s *Server) handleListActiveAlerts(c *fiber.Ctx) error {
	alerts, err := core.GetActiveAlerts(c.Context(), s.sqlite)
	if err != nil {
		s.log.Error("failed to list active alerts", "error", err)
		return SendError(c, fiber.StatusInternalServerError, "Failed to list alerts")
	}
	return SendSuccess(c, fiber.StatusOK, alerts)
}

// handleAlertStatistics returns active alert counts by severity. On a
// store failure it degrades to an unavailable marker instead of erroring
// so dashboards keep rendering.
// URL: GET /api/v1/alerts/stats
func (s *Server) handleAlertStatistics(c *fiber.Ctx) error {
	stats, err := core.GetAlertStatistics(c.Context(), s.sqlite)
	if err != nil {
		s.log.Error("failed to compute alert statistics", "error", err)
		return SendSuccess(c, fiber.StatusOK, fiber.Map{"available": false})
	}
	return SendSuccess(c, fiber.StatusOK, fiber.Map{
		"available":    true,
		"total_active": stats.TotalActive,
		"critical":     stats.Critical,
		"danger":       stats.Danger,
		"warning":      stats.Warning,
	})
}

// handleGetAlert returns one alert record.
// URL: GET /api/v1/alerts/:alertID
func (s *Server) handleGetAlert(c *fiber.Ctx) error {
	alertID, err := s.parseAlertID(c)
	if err != nil {
		return err
	}

	alert, err := core.GetAlert(c.Context(), s.sqlite, alertID)
	if err != nil {
		if errors.Is(err, core.ErrAlertNotFound) {
			return SendError(c, fiber.StatusNotFound, "Alert not found")
		}
		s.log.Error("failed to get alert", "alert_id", alertID, "error", err)
		return SendError(c, fiber.StatusInternalServerError, "Failed to retrieve alert")
	}
	return SendSuccess(c, fiber.StatusOK, alert)
}

// handleAcknowledgeAlert acknowledges an ACTIVE alert.
// URL: POST /api/v1/alerts/:alertID/acknowledge
func (s *Server) handleAcknowledgeAlert(c *fiber.Ctx) error {
	alertID, err := s.parseAlertID(c)
	if err != nil {
		return err
	}

	alert, err := core.AcknowledgeAlert(c.Context(), s.engine, alertID)
	if err != nil {
		if errors.Is(err, core.ErrAlertNotFound) {
			return SendError(c, fiber.StatusNotFound, "Alert not found")
		}
		s.log.Error("failed to acknowledge alert", "alert_id", alertID, "error", err)
		return SendError(c, fiber.StatusInternalServerError, "Failed to acknowledge alert")
	}
	return SendSuccess(c, fiber.StatusOK, alert)
}

// handleResolveAlert resolves an ACTIVE or ACKNOWLEDGED alert.
// URL: POST /api/v1/alerts/:alertID/resolve
func (s *Server) handleResolveAlert(c *fiber.Ctx) error {
	alertID, err := s.parseAlertID(c)
	if err != nil {
		return err
	}

	alert, err := core.ResolveAlert(c.Context(), s.engine, alertID)
	if err != nil {
		if errors.Is(err, core.ErrAlertNotFound) {
			return SendError(c, fiber.StatusNotFound, "Alert not found")
		}
		s.log.Error("failed to resolve alert", "alert_id", alertID, "error", err)
		return SendError(c, fiber.StatusInternalServerError, "Failed to resolve alert")
	}
	return SendSuccess(c, fiber.StatusOK, alert)
}

// handleListNotifications returns the notification log for an alert.
// URL: GET /api/v1/alerts/:alertID/notifications
func (s *Server) handleListNotifications(c *fiber.Ctx) error {
	alertID, err := s.parseAlertID(c)
	if err != nil {
		return err
	}

	attempts, err := core.ListNotifications(c.Context(), s.sqlite, alertID)
	if err != nil {
		if errors.Is(err, core.ErrAlertNotFound) {
			return SendError(c, fiber.StatusNotFound, "Alert not found")
		}
		s.log.Error("failed to list notifications", "alert_id", alertID, "error", err)
		return SendError(c, fiber.StatusInternalServerError, "Failed to list notifications")
	}
	return SendSuccess(c, fiber.StatusOK, attempts)
}

// handleListSensors returns the sensor registry.
// URL: GET /api/v1/sensors
func (s *Server) handleListSensors(c *fiber.Ctx) error {
	sensors, err := core.ListSensors(c.Context(), s.sqlite)
	if err != nil {
		s.log.Error("failed to list sensors", "error", err)
		return SendError(c, fiber.StatusInternalServerError, "Failed to list sensors")
	}
	return SendSuccess(c, fiber.StatusOK, sensors)
}

// handleSensorAlerts returns recent alert history for one sensor.
// URL: GET /api/v1/sensors/:sensorID/alerts?limit=N
func (s *Server) handleSensorAlerts(c *fiber.Ctx) error {
	sensorID, err := strconv.ParseInt(c.Params("sensorID"), 10, 64)
	if err != nil || sensorID <= 0 {
		return SendError(c, fiber.StatusBadRequest, "Invalid sensor ID")
	}
	limit := c.QueryInt("limit", models.DefaultSensorHistoryLimit)

	alerts, err := core.GetAlertsBySensor(c.Context(), s.sqlite, models.SensorID(sensorID), limit)
	if err != nil {
		if errors.Is(err, core.ErrSensorNotFound) {
			return SendError(c, fiber.StatusNotFound, "Sensor not found")
		}
		s.log.Error("failed to list sensor alerts", "sensor_id", sensorID, "error", err)
		return SendError(c, fiber.StatusInternalServerError, "Failed to list sensor alerts")
	}
	return SendSuccess(c, fiber.StatusOK, alerts)
}

// handleSensorRules returns the enabled rules attached to one sensor.
// URL: GET /api/v1/sensors/:sensorID/rules
func (s *Server) handleSensorRules(c *fiber.Ctx) error {
	sensorID, err := strconv.ParseInt(c.Params("sensorID"), 10, 64)
	if err != nil || sensorID <= 0 {
		return SendError(c, fiber.StatusBadRequest, "Invalid sensor ID")
	}

	rules, err := s.sqlite.ListEnabledRulesForSensor(c.Context(), models.SensorID(sensorID))
	if err != nil {
		s.log.Error("failed to list sensor rules", "sensor_id", sensorID, "error", err)
		return SendError(c, fiber.StatusInternalServerError, "Failed to list rules")
	}
	return SendSuccess(c, fiber.StatusOK, rules)
}

// parseAlertID extracts and validates the alertID path parameter. On
// failure the error response has already been written.
func (s *Server) parseAlertID(c *fiber.Ctx) (models.AlertID, error) {
	id, err := strconv.ParseInt(c.Params("alertID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, SendError(c, fiber.StatusBadRequest, "Invalid alert ID")
	}
	return models.AlertID(id), nil
}
