// Package pipeline pkg/pipeline/context.go
package pipeline

import (
	"github.com/fleetward/fleetward/pkg/models"
	"github.com/fleetward/fleetward/pkg/scheduler"
)

// Outcome is the terminal disposition of one pipeline run.
type Outcome string

const (
	// OutcomeCompleted means every applicable stage ran to completion.
	OutcomeCompleted Outcome = "COMPLETED"

	// OutcomeNoAnomaly means the detector found nothing; only fan-out ran.
	OutcomeNoAnomaly Outcome = "NO_ANOMALY"

	// OutcomeDuplicateAlert means an open alert already covers this
	// (vehicle, category); no second alert was created.
	OutcomeDuplicateAlert Outcome = "DUPLICATE_ALERT"

	// OutcomeInfoOnly means the diagnosis urgency did not warrant service;
	// the event was logged without a booking.
	OutcomeInfoOnly Outcome = "INFO_ONLY"

	// OutcomeConflict means no capacity was available; alternatives were
	// recorded on the context.
	OutcomeConflict Outcome = "CAPACITY_CONFLICT"

	// OutcomeAbandoned means the per-event deadline expired mid-run.
	OutcomeAbandoned Outcome = "ABANDONED"

	// OutcomeError means a stage failed; the context records the error.
	OutcomeError Outcome = "ERROR"
)

// EventContext is the per-event record threaded through the stages. Stages
// receive it by value and return a new one; nothing mutates shared state.
type EventContext struct {
	TraceID   string                           `json:"trace_id"`
	VehicleID string                           `json:"vehicle_id"`
	Sample    models.TelemetrySample           `json:"telemetry"`
	Anomaly   *models.AnomalyResult            `json:"anomaly,omitempty"`
	Alert     *models.Alert                    `json:"alert,omitempty"`
	Diagnosis *models.Diagnosis                `json:"diagnosis,omitempty"`
	Booking   *models.Booking                  `json:"booking,omitempty"`
	Conflict  *scheduler.CapacityConflictError `json:"conflict,omitempty"`
	Level     models.EscalationLevel           `json:"escalation_level,omitempty"`
	Outcome   Outcome                          `json:"outcome,omitempty"`
	Err       string                           `json:"error,omitempty"`
}

// MapSeverity converts the detector's fine-grained scale to the coarse one
// the dispatcher routes on. The orchestrator applies this exactly once.
func MapSeverity(s models.Severity) models.EscalationLevel {
	switch s {
	case models.SeverityCritical:
		return models.EscalationHigh
	case models.SeverityWarning:
		return models.EscalationMedium
	default:
		return models.EscalationLow
	}
}
