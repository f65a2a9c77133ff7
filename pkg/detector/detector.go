// Package detector scores telemetry samples for anomalous conditions.
package detector

import (
	"github.com/fleetward/fleetward/pkg/models"
)

// Rule is one threshold check. Rules are evaluated in a fixed priority
// order and only the first match fires for a sample.
type Rule struct {
	Category models.AnomalyCategory
	Match    func(s *models.TelemetrySample) bool
	Severity func(s *models.TelemetrySample) models.Severity
	Value    func(s *models.TelemetrySample) float64
}

// DefaultRules is the fixed rule set, highest priority first.
var DefaultRules = []Rule{
	{
		Category: models.CategoryEngineOverheat,
		Match: func(s *models.TelemetrySample) bool {
			return s.EngineTempC > 110
		},
		Severity: func(s *models.TelemetrySample) models.Severity {
			if s.EngineTempC > 120 {
				return models.SeverityCritical
			}
			return models.SeverityWarning
		},
		Value: func(s *models.TelemetrySample) float64 { return s.EngineTempC },
	},
	{
		Category: models.CategoryBrakeWear,
		Match: func(s *models.TelemetrySample) bool {
			return s.BrakeWearPct > 80
		},
		Severity: func(*models.TelemetrySample) models.Severity {
			return models.SeverityWarning
		},
		Value: func(s *models.TelemetrySample) float64 { return s.BrakeWearPct },
	},
	{
		Category: models.CategoryLowBattery,
		Match: func(s *models.TelemetrySample) bool {
			return s.BatteryVoltageV < 11.8
		},
		Severity: func(*models.TelemetrySample) models.Severity {
			return models.SeverityInfo
		},
		Value: func(s *models.TelemetrySample) float64 { return s.BatteryVoltageV },
	},
}

// Detector scores one sample at a time. Detect is a pure function of the
// sample and the detector's configuration; it has no side effects.
type Detector struct {
	rules  []Rule
	scorer Scorer
}

// Option configures a Detector.
type Option func(*Detector)

// WithRules overrides the default rule set.
func WithRules(rules []Rule) Option {
	return func(d *Detector) {
		d.rules = rules
	}
}

// WithScorer attaches a learned scorer consulted when no rule fires.
func WithScorer(s Scorer) Option {
	return func(d *Detector) {
		d.scorer = s
	}
}

// New creates a Detector with the default threshold rules.
func New(opts ...Option) *Detector {
	d := &Detector{
		rules: DefaultRules,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Detect evaluates the sample against the rules in priority order; the
// first matching rule decides category and severity. When no rule fires and
// a scorer is configured, the score is mapped to a severity through the
// fixed cut points.
func (d *Detector) Detect(s *models.TelemetrySample) models.AnomalyResult {
	for _, rule := range d.rules {
		if !rule.Match(s) {
			continue
		}

		return models.AnomalyResult{
			Detected: true,
			Category: rule.Category,
			Severity: rule.Severity(s),
			Value:    rule.Value(s),
		}
	}

	if d.scorer != nil {
		if flagged, score := d.scorer.Score(s); flagged {
			return models.AnomalyResult{
				Detected: true,
				Category: d.scorer.Category(),
				Severity: SeverityFromScore(score),
				Score:    score,
			}
		}
	}

	return models.AnomalyResult{Detected: false}
}

// Score-to-severity cut points. Fixed; not tunable per call.
const (
	criticalScoreCutoff = -0.2
	warningScoreCutoff  = -0.1
)

// SeverityFromScore maps a continuous outlier score to a severity. Lower
// scores are more anomalous.
func SeverityFromScore(score float64) models.Severity {
	switch {
	case score < criticalScoreCutoff:
		return models.SeverityCritical
	case score < warningScoreCutoff:
		return models.SeverityWarning
	default:
		return models.SeverityInfo
	}
}
