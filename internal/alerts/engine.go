package alerts

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mr-karan/vigil/internal/sqlite"
	"github.com/mr-karan/vigil/pkg/models"
)

// AlertStore is the persistence surface the state machine depends on.
// *sqlite.DB satisfies it; tests supply fakes.
type AlertStore interface {
	GetAlert(ctx context.Context, id models.AlertID) (*models.AlertRecord, error)
	CreateAlert(ctx context.Context, a *models.AlertRecord) (*models.AlertRecord, error)
	TouchActiveAlert(ctx context.Context, ruleID models.RuleID, value float64, notes string) (*models.AlertRecord, error)
	ResolveActiveAlertByRule(ctx context.Context, ruleID models.RuleID, resolvedAt time.Time) (*models.AlertRecord, error)
	AcknowledgeAlert(ctx context.Context, id models.AlertID, acknowledgedAt time.Time) (*models.AlertRecord, error)
	ResolveAlert(ctx context.Context, id models.AlertID, resolvedAt time.Time) (*models.AlertRecord, error)
}

// Outcome tags what a state machine operation did.
type Outcome string

const (
	// OutcomeCreated means a new ACTIVE alert was opened.
	OutcomeCreated Outcome = "created"
	// OutcomeUpdated means an existing ACTIVE alert absorbed a repeat
	// trigger (value and notes refreshed, no new record).
	OutcomeUpdated Outcome = "updated"
	// OutcomeAutoResolved means a cleared condition closed its alert.
	OutcomeAutoResolved Outcome = "auto_resolved"
	// OutcomeAcknowledged means an operator acknowledged the alert.
	OutcomeAcknowledged Outcome = "acknowledged"
	// OutcomeResolved means an operator resolved the alert.
	OutcomeResolved Outcome = "resolved"
	// OutcomeNoOp means the operation was valid but changed nothing,
	// such as resolving an already resolved alert.
	OutcomeNoOp Outcome = "noop"
	// OutcomeNotFound means the alert does not exist.
	OutcomeNotFound Outcome = "not_found"
	// OutcomeError means persistence failed; Err carries the cause.
	OutcomeError Outcome = "error"
)

// Transition is the tagged result of one state machine operation.
// Callers branch on Outcome instead of sentinel errors.
type Transition struct {
	Outcome Outcome
	Record  *models.AlertRecord
	Err     error
}

// Engine is the alert lifecycle state machine. Per-process evaluation
// is serialized by mu; the partial unique index on ACTIVE alerts is the
// cross-process backstop for the one-active-per-rule invariant.
type Engine struct {
	store AlertStore
	log   *slog.Logger
	now   func() time.Time

	mu sync.Mutex
}

// NewEngine creates the state machine over the given store.
func NewEngine(store AlertStore, log *slog.Logger) *Engine {
	return &Engine{
		store: store,
		log:   log.With("component", "alerts.engine"),
		now:   time.Now,
	}
}

// EvaluateAndTrigger evaluates the reading against the rules and applies
// the resulting transitions. A persistence failure on one rule is
// carried on its Transition and does not abort the rest of the batch.
// Rules that neither trigger nor have an open alert produce no
// Transition.
func (e *Engine) EvaluateAndTrigger(ctx context.Context, reading models.Reading, rules []*models.Rule) []Transition {
	e.mu.Lock()
	defer e.mu.Unlock()

	var transitions []Transition
	for _, eval := range Evaluate(reading, rules) {
		var t Transition
		if eval.Triggered {
			t = e.trigger(ctx, reading, eval)
		} else {
			t = e.autoResolve(ctx, eval.Rule)
			if t.Outcome == OutcomeNoOp {
				continue
			}
		}
		transitions = append(transitions, t)

		switch t.Outcome {
		case OutcomeCreated:
			e.log.Info("alert triggered",
				"rule_id", eval.Rule.ID,
				"sensor_id", reading.SensorID,
				"severity", t.Record.SeverityLevel.Label(),
				"reason", eval.Reason)
		case OutcomeAutoResolved:
			e.log.Info("alert auto resolved", "rule_id", eval.Rule.ID, "alert_id", t.Record.ID)
		case OutcomeError:
			e.log.Error("alert transition failed", "rule_id", eval.Rule.ID, "error", t.Err)
		}
	}
	return transitions
}

// trigger refreshes the open alert for the rule or opens a new one.
// Repeat triggers move only the value and notes; the record keeps the
// first-violation triggered_at.
func (e *Engine) trigger(ctx context.Context, reading models.Reading, eval Evaluation) Transition {
	updated, err := e.store.TouchActiveAlert(ctx, eval.Rule.ID, reading.Value, eval.Reason)
	if err == nil {
		return Transition{Outcome: OutcomeUpdated, Record: updated}
	}
	if !errors.Is(err, sqlite.ErrNotFound) {
		return Transition{Outcome: OutcomeError, Err: err}
	}

	created, err := e.store.CreateAlert(ctx, &models.AlertRecord{
		RuleID:        eval.Rule.ID,
		SensorID:      reading.SensorID,
		TriggeredAt:   e.now(),
		SensorValue:   reading.Value,
		SeverityLevel: eval.Rule.SeverityLevel,
		Status:        models.AlertStatusActive,
		Notes:         eval.Reason,
	})
	if err != nil {
		return Transition{Outcome: OutcomeError, Err: err}
	}
	return Transition{Outcome: OutcomeCreated, Record: created}
}

// autoResolve closes the open alert for a rule whose condition cleared.
func (e *Engine) autoResolve(ctx context.Context, rule *models.Rule) Transition {
	resolved, err := e.store.ResolveActiveAlertByRule(ctx, rule.ID, e.now())
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return Transition{Outcome: OutcomeNoOp}
		}
		return Transition{Outcome: OutcomeError, Err: err}
	}
	return Transition{Outcome: OutcomeAutoResolved, Record: resolved}
}

// Acknowledge moves an ACTIVE alert to ACKNOWLEDGED. On an alert past
// ACTIVE it is a no-op returning the record unchanged.
func (e *Engine) Acknowledge(ctx context.Context, id models.AlertID) Transition {
	acked, err := e.store.AcknowledgeAlert(ctx, id, e.now())
	if err == nil {
		e.log.Info("alert acknowledged", "alert_id", id)
		return Transition{Outcome: OutcomeAcknowledged, Record: acked}
	}
	if !errors.Is(err, sqlite.ErrNotFound) {
		return Transition{Outcome: OutcomeError, Err: err}
	}
	return e.unchanged(ctx, id)
}

// Resolve moves an ACTIVE or ACKNOWLEDGED alert to RESOLVED. Resolving
// an already RESOLVED alert is idempotent and keeps the original
// resolved_at.
func (e *Engine) Resolve(ctx context.Context, id models.AlertID) Transition {
	resolved, err := e.store.ResolveAlert(ctx, id, e.now())
	if err == nil {
		e.log.Info("alert resolved", "alert_id", id)
		return Transition{Outcome: OutcomeResolved, Record: resolved}
	}
	if !errors.Is(err, sqlite.ErrNotFound) {
		return Transition{Outcome: OutcomeError, Err: err}
	}
	return e.unchanged(ctx, id)
}

// unchanged distinguishes a missing alert from one that is simply past
// the transition's valid source states.
func (e *Engine) unchanged(ctx context.Context, id models.AlertID) Transition {
	record, err := e.store.GetAlert(ctx, id)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return Transition{Outcome: OutcomeNotFound}
		}
		return Transition{Outcome: OutcomeError, Err: err}
	}
	return Transition{Outcome: OutcomeNoOp, Record: record}
}
