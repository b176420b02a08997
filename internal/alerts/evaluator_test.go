package alerts

import (
	"strings"
	"testing"

	"github.com/mr-karan/vigil/pkg/models"
)

func ptrFloat64(v float64) *float64 { return &v }

func thresholdRule(id models.RuleID, threshold *float64, severity models.Severity, enabled bool) *models.Rule {
	return &models.Rule{
		ID:             id,
		SensorID:       1,
		ConditionType:  models.ConditionThreshold,
		SeverityLevel:  severity,
		ThresholdValue: threshold,
		Enabled:        enabled,
	}
}

func TestEvaluateThreshold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		value          float64
		rule           *models.Rule
		wantEvals      int
		wantTriggered  bool
		reasonContains []string
	}{
		{
			name:      "below threshold",
			value:     50,
			rule:      thresholdRule(1, ptrFloat64(100), models.SeverityCritical, true),
			wantEvals: 1,
		},
		{
			name:           "above threshold",
			value:          120,
			rule:           thresholdRule(1, ptrFloat64(100), models.SeverityCritical, true),
			wantEvals:      1,
			wantTriggered:  true,
			reasonContains: []string{"120", "100"},
		},
		{
			name:      "equal is not a violation",
			value:     100,
			rule:      thresholdRule(1, ptrFloat64(100), models.SeverityCritical, true),
			wantEvals: 1,
		},
		{
			name:      "disabled rule skipped",
			value:     120,
			rule:      thresholdRule(1, ptrFloat64(100), models.SeverityCritical, false),
			wantEvals: 0,
		},
		{
			name:      "nulled threshold never triggers",
			value:     120,
			rule:      thresholdRule(1, nil, models.SeverityCritical, true),
			wantEvals: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reading := models.Reading{SensorID: 1, Value: tt.value}
			evals := Evaluate(reading, []*models.Rule{tt.rule})
			if len(evals) != tt.wantEvals {
				t.Fatalf("expected %d evaluations, got %d", tt.wantEvals, len(evals))
			}
			if tt.wantEvals == 0 {
				return
			}
			if evals[0].Triggered != tt.wantTriggered {
				t.Fatalf("expected triggered=%v, got %v", tt.wantTriggered, evals[0].Triggered)
			}
			for _, sub := range tt.reasonContains {
				if !strings.Contains(evals[0].Reason, sub) {
					t.Fatalf("expected reason %q to contain %q", evals[0].Reason, sub)
				}
			}
		})
	}
}

func TestEvaluateAnomaly(t *testing.T) {
	t.Parallel()

	rule := &models.Rule{
		ID:            2,
		SensorID:      1,
		ConditionType: models.ConditionAnomaly,
		SeverityLevel: models.SeverityDanger,
		Enabled:       true,
	}

	// No anomaly score supplied: the rule is skipped, not an error.
	evals := Evaluate(models.Reading{SensorID: 1, Value: 10}, []*models.Rule{rule})
	if len(evals) != 0 {
		t.Fatalf("expected anomaly rule without score to be skipped, got %d evaluations", len(evals))
	}

	// Score above the default threshold triggers.
	evals = Evaluate(models.Reading{SensorID: 1, Value: 10, AnomalyScore: ptrFloat64(0.85)}, []*models.Rule{rule})
	if len(evals) != 1 || !evals[0].Triggered {
		t.Fatalf("expected trigger at score 0.85 with default threshold, got %+v", evals)
	}
	if !strings.Contains(evals[0].Reason, "0.85") || !strings.Contains(evals[0].Reason, "0.70") {
		t.Fatalf("expected reason to carry both numbers, got %q", evals[0].Reason)
	}

	// Score below the default threshold does not trigger.
	evals = Evaluate(models.Reading{SensorID: 1, Value: 10, AnomalyScore: ptrFloat64(0.5)}, []*models.Rule{rule})
	if len(evals) != 1 || evals[0].Triggered {
		t.Fatalf("expected no trigger at score 0.5, got %+v", evals)
	}

	// Per-rule threshold overrides the default.
	custom := *rule
	custom.AnomalyThreshold = ptrFloat64(0.4)
	evals = Evaluate(models.Reading{SensorID: 1, Value: 10, AnomalyScore: ptrFloat64(0.5)}, []*models.Rule{&custom})
	if len(evals) != 1 || !evals[0].Triggered {
		t.Fatalf("expected trigger at score 0.5 with threshold 0.4, got %+v", evals)
	}
}

func TestEvaluateForecast(t *testing.T) {
	t.Parallel()

	rule := &models.Rule{
		ID:             3,
		SensorID:       1,
		ConditionType:  models.ConditionForecast,
		SeverityLevel:  models.SeverityWarning,
		ThresholdValue: ptrFloat64(100),
		Enabled:        true,
	}

	// No forecast supplied: skipped.
	evals := Evaluate(models.Reading{SensorID: 1, Value: 80}, []*models.Rule{rule})
	if len(evals) != 0 {
		t.Fatalf("expected forecast rule without forecast to be skipped, got %d evaluations", len(evals))
	}

	// Forecast above threshold triggers with percent change in the reason.
	evals = Evaluate(models.Reading{SensorID: 1, Value: 80, ForecastValue: ptrFloat64(120)}, []*models.Rule{rule})
	if len(evals) != 1 || !evals[0].Triggered {
		t.Fatalf("expected trigger for forecast 120 over threshold 100, got %+v", evals)
	}
	if !strings.Contains(evals[0].Reason, "%") {
		t.Fatalf("expected percent change in reason, got %q", evals[0].Reason)
	}

	// Zero current value still triggers but omits the percent change.
	evals = Evaluate(models.Reading{SensorID: 1, Value: 0, ForecastValue: ptrFloat64(120)}, []*models.Rule{rule})
	if len(evals) != 1 || !evals[0].Triggered {
		t.Fatalf("expected trigger with zero current value, got %+v", evals)
	}
	if strings.Contains(evals[0].Reason, "%") {
		t.Fatalf("expected no percent change for zero current value, got %q", evals[0].Reason)
	}

	// Forecast at or below threshold does not trigger.
	evals = Evaluate(models.Reading{SensorID: 1, Value: 80, ForecastValue: ptrFloat64(90)}, []*models.Rule{rule})
	if len(evals) != 1 || evals[0].Triggered {
		t.Fatalf("expected no trigger for forecast 90, got %+v", evals)
	}

	// A nulled threshold evaluates to not triggered rather than being
	// skipped, so a previously opened alert can clear.
	unconfigured := *rule
	unconfigured.ThresholdValue = nil
	evals = Evaluate(models.Reading{SensorID: 1, Value: 80, ForecastValue: ptrFloat64(120)}, []*models.Rule{&unconfigured})
	if len(evals) != 1 || evals[0].Triggered {
		t.Fatalf("expected non-triggered evaluation for nulled threshold, got %+v", evals)
	}
}

func TestEvaluateMixedRules(t *testing.T) {
	t.Parallel()

	rules := []*models.Rule{
		thresholdRule(1, ptrFloat64(100), models.SeverityCritical, true),
		{ID: 2, SensorID: 1, ConditionType: models.ConditionAnomaly, SeverityLevel: models.SeverityDanger, Enabled: true},
		{ID: 3, SensorID: 1, ConditionType: models.ConditionForecast, SeverityLevel: models.SeverityWarning, ThresholdValue: ptrFloat64(100), Enabled: true},
	}

	// Only the threshold rule is evaluable without optional inputs.
	evals := Evaluate(models.Reading{SensorID: 1, Value: 120}, rules)
	if len(evals) != 1 {
		t.Fatalf("expected 1 evaluation, got %d", len(evals))
	}
	if evals[0].Rule.ID != 1 || !evals[0].Triggered {
		t.Fatalf("expected threshold rule trigger, got %+v", evals[0])
	}

	// All three evaluable with full inputs.
	reading := models.Reading{
		SensorID:      1,
		Value:         120,
		AnomalyScore:  ptrFloat64(0.9),
		ForecastValue: ptrFloat64(150),
	}
	evals = Evaluate(reading, rules)
	if len(evals) != 3 {
		t.Fatalf("expected 3 evaluations, got %d", len(evals))
	}
	for _, ev := range evals {
		if !ev.Triggered {
			t.Fatalf("expected rule %d to trigger, got %+v", ev.Rule.ID, ev)
		}
	}
}
