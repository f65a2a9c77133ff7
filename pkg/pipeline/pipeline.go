// Package pipeline sequences detection, diagnosis, scheduling, and
// escalation into one per-event workflow.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/fleetward/fleetward/pkg/db"
	"github.com/fleetward/fleetward/pkg/detector"
	"github.com/fleetward/fleetward/pkg/diagnosis"
	"github.com/fleetward/fleetward/pkg/models"
	"github.com/fleetward/fleetward/pkg/notify"
	"github.com/fleetward/fleetward/pkg/scheduler"
)

// Stage is one step of the workflow. Guard decides whether the stage
// applies to the current branch; a skipped stage passes the context through
// unchanged. Run returns the next context and whether the run terminates.
type Stage struct {
	Name  string
	Guard func(ec *EventContext) bool
	Run   func(ctx context.Context, ec EventContext) (EventContext, bool, error)
}

// Orchestrator owns the stage list and the collaborators injected at
// construction. No ambient globals; everything arrives through New.
type Orchestrator struct {
	store      db.Service
	det        *detector.Detector
	diag       *diagnosis.Generator
	alloc      *scheduler.Allocator
	dispatcher *notify.Dispatcher
	now        func() time.Time
	stages     []Stage
}

// NewOrchestrator wires the stage list. now is injectable for tests.
func NewOrchestrator(store db.Service, det *detector.Detector, diag *diagnosis.Generator,
	alloc *scheduler.Allocator, dispatcher *notify.Dispatcher, now func() time.Time) *Orchestrator {
	if now == nil {
		now = time.Now
	}

	o := &Orchestrator{
		store:      store,
		det:        det,
		diag:       diag,
		alloc:      alloc,
		dispatcher: dispatcher,
		now:        now,
	}

	anomalyDetected := func(ec *EventContext) bool {
		return ec.Anomaly != nil && ec.Anomaly.Detected
	}

	o.stages = []Stage{
		{Name: "detect", Run: o.detectStage},
		{Name: "alert", Guard: anomalyDetected, Run: o.alertStage},
		{Name: "diagnose", Guard: anomalyDetected, Run: o.diagnoseStage},
		{
			Name: "schedule",
			Guard: func(ec *EventContext) bool {
				return anomalyDetected(ec) && ec.Diagnosis != nil &&
					ec.Diagnosis.Urgency != models.SeverityInfo
			},
			Run: o.scheduleStage,
		},
		{Name: "dispatch", Guard: anomalyDetected, Run: o.dispatchStage},
	}

	return o
}

// NewEventContext builds the per-event record for a validated sample.
func NewEventContext(sample *models.TelemetrySample) EventContext {
	return EventContext{
		TraceID:   uuid.New().String(),
		VehicleID: sample.VehicleID,
		Sample:    *sample,
	}
}

// ProcessEvent drives one event through the stage list. Typed collaborator
// errors become a terminal-but-recorded outcome on the returned context;
// the stream processor itself never crashes on them.
func (o *Orchestrator) ProcessEvent(ctx context.Context, ec EventContext) EventContext {
	for _, stage := range o.stages {
		if err := ctx.Err(); err != nil {
			ec.Outcome = OutcomeAbandoned
			ec.Err = fmt.Sprintf("abandoned before stage %s: %v", stage.Name, err)

			log.Printf("pipeline run %s abandoned: %v", ec.TraceID, err)

			return ec
		}

		if stage.Guard != nil && !stage.Guard(&ec) {
			continue
		}

		next, terminate, err := stage.Run(ctx, ec)
		if err != nil {
			next.Outcome = OutcomeError
			next.Err = fmt.Sprintf("stage %s: %v", stage.Name, err)

			log.Printf("pipeline run %s failed at %s: %v", ec.TraceID, stage.Name, err)

			return next
		}

		ec = next

		if terminate {
			break
		}
	}

	if ec.Outcome == "" {
		if ec.Diagnosis != nil && ec.Diagnosis.Urgency == models.SeverityInfo {
			ec.Outcome = OutcomeInfoOnly
		} else {
			ec.Outcome = OutcomeCompleted
		}
	}

	return ec
}

func (o *Orchestrator) detectStage(_ context.Context, ec EventContext) (EventContext, bool, error) {
	result := o.det.Detect(&ec.Sample)
	ec.Anomaly = &result

	if !result.Detected {
		ec.Outcome = OutcomeNoAnomaly
		return ec, true, nil
	}

	// Map the fine-grained scale to the escalation scale exactly once.
	ec.Level = MapSeverity(result.Severity)

	return ec, false, nil
}

// alertStage creates the alert, holding the one-open-alert-per
// (vehicle, category) invariant: a re-detection while unresolved reuses the
// existing alert and ends the run.
func (o *Orchestrator) alertStage(_ context.Context, ec EventContext) (EventContext, bool, error) {
	existing, err := o.store.GetOpenAlert(ec.VehicleID, ec.Anomaly.Category)
	if err == nil {
		ec.Alert = existing
		ec.Outcome = OutcomeDuplicateAlert

		return ec, true, nil
	}

	if !errors.Is(err, db.ErrNotFound) {
		return ec, false, err
	}

	alert := &models.Alert{
		ID:        uuid.New().String(),
		VehicleID: ec.VehicleID,
		Category:  ec.Anomaly.Category,
		Value:     ec.Anomaly.Value,
		Severity:  ec.Anomaly.Severity,
		CreatedAt: o.now(),
	}

	err = o.store.CreateAlert(alert)
	if errors.Is(err, db.ErrOpenAlertExists) {
		// Lost a race with a concurrent run for the same vehicle.
		ec.Outcome = OutcomeDuplicateAlert
		return ec, true, nil
	}

	if err != nil {
		return ec, false, err
	}

	ec.Alert = alert

	return ec, false, nil
}

func (o *Orchestrator) diagnoseStage(_ context.Context, ec EventContext) (EventContext, bool, error) {
	d := o.diag.Diagnose(ec.Anomaly.Category)
	d.ID = uuid.New().String()
	d.AlertID = ec.Alert.ID
	d.CreatedAt = o.now()

	if err := o.store.CreateDiagnosis(&d); err != nil {
		return ec, false, err
	}

	ec.Diagnosis = &d

	return ec, false, nil
}

// scheduleStage reserves a slot and creates the booking. A capacity
// conflict is a recorded outcome, not a stage failure: the run proceeds to
// dispatch so a human still hears about the alert.
func (o *Orchestrator) scheduleStage(_ context.Context, ec EventContext) (EventContext, bool, error) {
	booking, err := o.alloc.Allocate(&scheduler.Request{
		VehicleID: ec.VehicleID,
		AlertID:   ec.Alert.ID,
		Urgency:   ec.Diagnosis.Urgency,
	})

	var conflict *scheduler.CapacityConflictError
	if errors.As(err, &conflict) {
		ec.Conflict = conflict
		ec.Outcome = OutcomeConflict
		ec.Err = conflict.Error()

		return ec, false, nil
	}

	if err != nil {
		return ec, false, err
	}

	ec.Booking = booking

	return ec, false, nil
}

// dispatchStage escalates to a human. Dispatch failures are logged by the
// dispatcher and never fail the run.
func (o *Orchestrator) dispatchStage(ctx context.Context, ec EventContext) (EventContext, bool, error) {
	message := fmt.Sprintf("Alert: %s detected for vehicle %s (value %.1f, severity %s)",
		ec.Alert.Category, ec.VehicleID, ec.Alert.Value, ec.Alert.Severity)

	if ec.Diagnosis != nil {
		message = fmt.Sprintf("%s. Probable cause: %s. Recommended: %s",
			message, ec.Diagnosis.ProbableCause, ec.Diagnosis.RecommendedAction)
	}

	o.dispatcher.Dispatch(ctx, &notify.Request{
		AlertID:       ec.Alert.ID,
		RecipientKind: models.RecipientUser,
		Recipient:     ec.VehicleID,
		Level:         ec.Level,
		Category:      string(ec.Alert.Category),
		Message:       message,
	})

	if ec.Booking != nil {
		o.dispatcher.Dispatch(ctx, &notify.Request{
			AlertID:       ec.Alert.ID,
			BookingID:     ec.Booking.ID,
			RecipientKind: models.RecipientCentre,
			Recipient:     ec.Booking.CentreID,
			Level:         ec.Level,
			Category:      string(ec.Alert.Category),
			Message: fmt.Sprintf("New booking %s for vehicle %s at %s",
				ec.Booking.ID, ec.VehicleID, ec.Booking.SlotStart.Format(time.RFC3339)),
		})
	}

	return ec, false, nil
}
