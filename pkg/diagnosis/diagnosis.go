// Package diagnosis maps anomaly categories to probable causes and actions.
package diagnosis

import (
	"github.com/fleetward/fleetward/pkg/models"
)

type entry struct {
	cause   string
	action  string
	urgency models.Severity
}

// Fixed lookup per known category. The fallback below covers everything else.
var catalogue = map[models.AnomalyCategory]entry{
	models.CategoryEngineOverheat: {
		cause:   "Coolant pump failure or coolant leak",
		action:  "Stop vehicle and service immediately",
		urgency: models.SeverityCritical,
	},
	models.CategoryBrakeWear: {
		cause:   "Brake pads worn due to usage",
		action:  "Schedule brake pad replacement",
		urgency: models.SeverityWarning,
	},
	models.CategoryLowBattery: {
		cause:   "Battery degradation",
		action:  "Inspect battery health",
		urgency: models.SeverityInfo,
	},
}

// Generator produces diagnoses for anomaly categories.
type Generator struct{}

// New creates a Generator.
func New() *Generator {
	return &Generator{}
}

// Diagnose returns the diagnosis for a category. Unrecognized categories
// get the generic fallback; this never fails.
func (*Generator) Diagnose(category models.AnomalyCategory) models.Diagnosis {
	e, ok := catalogue[category]
	if !ok {
		e = entry{
			cause:   "Unknown issue",
			action:  "General inspection recommended",
			urgency: models.SeverityInfo,
		}
	}

	return models.Diagnosis{
		ProbableCause:     e.cause,
		RecommendedAction: e.action,
		Urgency:           e.urgency,
		Confidence:        ConfidenceFor(e.urgency),
	}
}

// ConfidenceFor derives the confidence score from urgency. Confidence is
// never a free input.
func ConfidenceFor(urgency models.Severity) float64 {
	switch urgency {
	case models.SeverityCritical:
		return 0.9
	case models.SeverityWarning:
		return 0.7
	default:
		return 0.5
	}
}
