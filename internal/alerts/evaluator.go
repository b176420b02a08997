// Package alerts implements condition evaluation, the alert lifecycle
// state machine, and webhook notification dispatch.
package alerts

import (
	"fmt"
	"strconv"

	"github.com/mr-karan/vigil/pkg/models"
)

// Evaluation is the outcome of checking one rule against a reading.
type Evaluation struct {
	Rule      *models.Rule
	Triggered bool
	Reason    string
}

// Evaluate checks every rule against a reading. It is pure and total:
// no I/O, no panics, one Evaluation per enabled evaluable rule.
// Disabled rules are skipped. ANOMALY and FORECAST rules are skipped
// entirely when their external input is absent. A rule with a nulled
// threshold evaluates to not triggered, so an alert it opened earlier
// can still clear.
func Evaluate(reading models.Reading, rules []*models.Rule) []Evaluation {
	evals := make([]Evaluation, 0, len(rules))
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}

		switch rule.ConditionType {
		case models.ConditionThreshold:
			evals = append(evals, evaluateThreshold(reading.Value, rule))

		case models.ConditionAnomaly:
			if reading.AnomalyScore == nil {
				continue
			}
			evals = append(evals, evaluateAnomaly(*reading.AnomalyScore, rule))

		case models.ConditionForecast:
			if reading.ForecastValue == nil {
				continue
			}
			evals = append(evals, evaluateForecast(*reading.ForecastValue, reading.Value, rule))
		}
	}
	return evals
}

func evaluateThreshold(value float64, rule *models.Rule) Evaluation {
	if rule.ThresholdValue == nil {
		return Evaluation{Rule: rule}
	}
	threshold := *rule.ThresholdValue
	if value > threshold {
		return Evaluation{
			Rule:      rule,
			Triggered: true,
			Reason:    fmt.Sprintf("value %s exceeds threshold %s", formatValue(value), formatValue(threshold)),
		}
	}
	return Evaluation{Rule: rule}
}

func evaluateAnomaly(score float64, rule *models.Rule) Evaluation {
	threshold := models.DefaultAnomalyThreshold
	if rule.AnomalyThreshold != nil {
		threshold = *rule.AnomalyThreshold
	}
	if score > threshold {
		return Evaluation{
			Rule:      rule,
			Triggered: true,
			Reason:    fmt.Sprintf("anomaly detected (score=%.2f, threshold=%.2f)", score, threshold),
		}
	}
	return Evaluation{Rule: rule}
}

func evaluateForecast(forecast, current float64, rule *models.Rule) Evaluation {
	if rule.ThresholdValue == nil || forecast <= *rule.ThresholdValue {
		return Evaluation{Rule: rule}
	}

	// Percent change is undefined for a zero current value; the alert
	// still fires, only the reason omits it.
	reason := fmt.Sprintf("forecast %s exceeds threshold %s", formatValue(forecast), formatValue(*rule.ThresholdValue))
	if current != 0 {
		change := (forecast - current) / current * 100
		reason = fmt.Sprintf("%s (%+.1f%% from current %s)", reason, change, formatValue(current))
	}
	return Evaluation{Rule: rule, Triggered: true, Reason: reason}
}

// formatValue renders a sensor value without a forced decimal point, so
// whole numbers read naturally in notes and notifications.
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
