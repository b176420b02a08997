package alerts

import (
	"fmt"
	"time"

	"github.com/mr-karan/vigil/pkg/models"
)

// MessageCard is the webhook payload. The schema follows the legacy
// Office 365 connector card, which generic webhook receivers accept.
type MessageCard struct {
	Type            string            `json:"@type"`
	Context         string            `json:"@context"`
	ThemeColor      string            `json:"themeColor"`
	Summary         string            `json:"summary"`
	Sections        []CardSection     `json:"sections"`
	PotentialAction []CardOpenURI     `json:"potentialAction,omitempty"`
}

// CardSection is one block of the card body.
type CardSection struct {
	ActivityTitle    string     `json:"activityTitle"`
	ActivitySubtitle string     `json:"activitySubtitle,omitempty"`
	Facts            []CardFact `json:"facts"`
	Markdown         bool       `json:"markdown"`
}

// CardFact is a name/value pair rendered in the fact list.
type CardFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CardOpenURI is a link action on the card.
type CardOpenURI struct {
	Type    string          `json:"@type"`
	Name    string          `json:"name"`
	Targets []CardURITarget `json:"targets"`
}

// CardURITarget is one OS target of an OpenUri action.
type CardURITarget struct {
	OS  string `json:"os"`
	URI string `json:"uri"`
}

// buildCard assembles the notification card for an alert. The sensor is
// optional; when the registry row is missing the card falls back to the
// numeric sensor ID.
func buildCard(alert *models.AlertRecord, sensor *models.Sensor, dashboardURL string) *MessageCard {
	severity := alert.SeverityLevel

	sensorName := fmt.Sprintf("sensor %d", alert.SensorID)
	platform := "unknown"
	sensorType := "unknown"
	unit := ""
	if sensor != nil {
		sensorName = sensor.DisplayName
		platform = sensor.Platform
		sensorType = sensor.SensorType
		unit = sensor.Unit
	}

	value := formatValue(alert.SensorValue)
	if unit != "" {
		value = value + " " + unit
	}

	card := &MessageCard{
		Type:       "MessageCard",
		Context:    "http://schema.org/extensions",
		ThemeColor: severity.Color(),
		Summary:    fmt.Sprintf("[%s] %s", severity.Label(), sensorName),
		Sections: []CardSection{{
			ActivityTitle:    fmt.Sprintf("%s alert: %s", severity.Label(), sensorName),
			ActivitySubtitle: "vigil sensor monitoring",
			Facts: []CardFact{
				{Name: "Platform", Value: platform},
				{Name: "Sensor Type", Value: sensorType},
				{Name: "Value", Value: value},
				{Name: "Severity", Value: severity.Label()},
				{Name: "Triggered At", Value: alert.TriggeredAt.Format(time.RFC3339)},
				{Name: "Notes", Value: alert.Notes},
			},
			Markdown: true,
		}},
	}

	if dashboardURL != "" {
		card.PotentialAction = []CardOpenURI{{
			Type: "OpenUri",
			Name: "View Dashboard",
			Targets: []CardURITarget{{
				OS:  "default",
				URI: dashboardURL,
			}},
		}}
	}
	return card
}
