package models

import "time"

// AnomalyCategory identifies the kind of anomalous condition detected.
type AnomalyCategory string

const (
	CategoryEngineOverheat AnomalyCategory = "ENGINE_OVERHEAT"
	CategoryBrakeWear      AnomalyCategory = "BRAKE_WEAR"
	CategoryLowBattery     AnomalyCategory = "LOW_BATTERY"
)

// Severity grades a detected anomaly. The same scale is reused as the
// diagnosis urgency.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityWarning  Severity = "WARNING"
	SeverityInfo     Severity = "INFO"
)

// Valid reports whether s is a known severity value.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityWarning, SeverityInfo:
		return true
	default:
		return false
	}
}

// EscalationLevel is the coarse scale the notification dispatcher routes on.
// The orchestrator maps Severity to EscalationLevel exactly once, at the
// detector/diagnosis boundary.
type EscalationLevel string

const (
	EscalationHigh   EscalationLevel = "HIGH"
	EscalationMedium EscalationLevel = "MEDIUM"
	EscalationLow    EscalationLevel = "LOW"
)

// AnomalyResult is the detector's verdict for one sample. Produced once,
// never mutated.
type AnomalyResult struct {
	Detected bool            `json:"detected"`
	Category AnomalyCategory `json:"category,omitempty"`
	Severity Severity        `json:"severity,omitempty"`
	Score    float64         `json:"score,omitempty"`
	Value    float64         `json:"value,omitempty"` // reading that triggered the rule
}

// Alert records an anomalous condition for a vehicle, open until resolved.
// At most one open alert exists per (vehicle, category).
type Alert struct {
	ID        string          `json:"id"`
	VehicleID string          `json:"vehicle_id"`
	Category  AnomalyCategory `json:"category"`
	Value     float64         `json:"value"`
	Severity  Severity        `json:"severity"`
	Resolved  bool            `json:"resolved"`
	CreatedAt time.Time       `json:"created_at"`
}

// Diagnosis is the interpreted cause/action/urgency for an alert.
// One-to-one with the alert that produced it; immutable after creation.
type Diagnosis struct {
	ID                string    `json:"id"`
	AlertID           string    `json:"alert_id"`
	ProbableCause     string    `json:"probable_cause"`
	RecommendedAction string    `json:"recommended_action"`
	Urgency           Severity  `json:"urgency"`
	Confidence        float64   `json:"confidence"`
	CreatedAt         time.Time `json:"created_at"`
}
