package detector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fleetward/fleetward/pkg/models"
)

func sample(engine, brake, battery float64) *models.TelemetrySample {
	return &models.TelemetrySample{
		VehicleID:       "VH-1001",
		Timestamp:       time.Now(),
		EngineTempC:     engine,
		BrakeWearPct:    brake,
		BatteryVoltageV: battery,
	}
}

func TestDetectThresholds(t *testing.T) {
	d := New()

	tests := []struct {
		name             string
		sample           *models.TelemetrySample
		expectDetected   bool
		expectedCategory models.AnomalyCategory
		expectedSeverity models.Severity
		expectedValue    float64
	}{
		{
			name:           "healthy sample",
			sample:         sample(90, 40, 12.6),
			expectDetected: false,
		},
		{
			name:           "engine temp exactly at threshold does not fire",
			sample:         sample(110, 40, 12.6),
			expectDetected: false,
		},
		{
			name:             "engine temp above threshold is a warning",
			sample:           sample(110.1, 40, 12.6),
			expectDetected:   true,
			expectedCategory: models.CategoryEngineOverheat,
			expectedSeverity: models.SeverityWarning,
			expectedValue:    110.1,
		},
		{
			name:             "engine temp at 120 is still a warning",
			sample:           sample(120, 40, 12.6),
			expectDetected:   true,
			expectedCategory: models.CategoryEngineOverheat,
			expectedSeverity: models.SeverityWarning,
			expectedValue:    120,
		},
		{
			name:             "engine temp above 120 is critical",
			sample:           sample(125, 40, 12.6),
			expectDetected:   true,
			expectedCategory: models.CategoryEngineOverheat,
			expectedSeverity: models.SeverityCritical,
			expectedValue:    125,
		},
		{
			name:           "brake wear exactly at threshold does not fire",
			sample:         sample(90, 80, 12.6),
			expectDetected: false,
		},
		{
			name:             "brake wear above threshold is a warning",
			sample:           sample(90, 81, 12.6),
			expectDetected:   true,
			expectedCategory: models.CategoryBrakeWear,
			expectedSeverity: models.SeverityWarning,
			expectedValue:    81,
		},
		{
			name:           "battery exactly at threshold does not fire",
			sample:         sample(90, 40, 11.8),
			expectDetected: false,
		},
		{
			name:             "battery below threshold is info",
			sample:           sample(90, 40, 11.5),
			expectDetected:   true,
			expectedCategory: models.CategoryLowBattery,
			expectedSeverity: models.SeverityInfo,
			expectedValue:    11.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := d.Detect(tt.sample)

			assert.Equal(t, tt.expectDetected, result.Detected)

			if tt.expectDetected {
				assert.Equal(t, tt.expectedCategory, result.Category)
				assert.Equal(t, tt.expectedSeverity, result.Severity)
				assert.Equal(t, tt.expectedValue, result.Value)
			}
		})
	}
}

func TestDetectFirstRuleWins(t *testing.T) {
	d := New()

	// Every threshold breached at once. Engine overheat has the highest
	// priority, so it is the only category reported.
	result := d.Detect(sample(130, 95, 11.0))

	assert.True(t, result.Detected)
	assert.Equal(t, models.CategoryEngineOverheat, result.Category)
	assert.Equal(t, models.SeverityCritical, result.Severity)
}

func TestDetectIdempotent(t *testing.T) {
	d := New()
	s := sample(115, 40, 12.6)

	first := d.Detect(s)
	second := d.Detect(s)

	assert.Equal(t, first, second)
}

type fixedScorer struct {
	flagged bool
	score   float64
}

func (f *fixedScorer) Score(*models.TelemetrySample) (bool, float64) {
	return f.flagged, f.score
}

func (*fixedScorer) Category() models.AnomalyCategory {
	return models.CategoryEngineOverheat
}

func TestDetectScorerFallback(t *testing.T) {
	tests := []struct {
		name             string
		scorer           *fixedScorer
		expectDetected   bool
		expectedSeverity models.Severity
	}{
		{
			name:           "scorer not flagged",
			scorer:         &fixedScorer{flagged: false, score: -0.5},
			expectDetected: false,
		},
		{
			name:             "score below critical cutoff",
			scorer:           &fixedScorer{flagged: true, score: -0.25},
			expectDetected:   true,
			expectedSeverity: models.SeverityCritical,
		},
		{
			name:             "score between cutoffs",
			scorer:           &fixedScorer{flagged: true, score: -0.15},
			expectDetected:   true,
			expectedSeverity: models.SeverityWarning,
		},
		{
			name:             "score above warning cutoff",
			scorer:           &fixedScorer{flagged: true, score: -0.05},
			expectDetected:   true,
			expectedSeverity: models.SeverityInfo,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(WithScorer(tt.scorer))

			// Healthy readings so no rule shadows the scorer.
			result := d.Detect(sample(90, 40, 12.6))

			assert.Equal(t, tt.expectDetected, result.Detected)

			if tt.expectDetected {
				assert.Equal(t, tt.expectedSeverity, result.Severity)
				assert.Equal(t, tt.scorer.score, result.Score)
			}
		})
	}
}

func TestRulesShadowScorer(t *testing.T) {
	d := New(WithScorer(&fixedScorer{flagged: true, score: -0.9}))

	result := d.Detect(sample(90, 85, 12.6))

	assert.True(t, result.Detected)
	assert.Equal(t, models.CategoryBrakeWear, result.Category)
	assert.Zero(t, result.Score)
}

func TestSeverityFromScoreBoundaries(t *testing.T) {
	assert.Equal(t, models.SeverityWarning, SeverityFromScore(-0.2))
	assert.Equal(t, models.SeverityInfo, SeverityFromScore(-0.1))
	assert.Equal(t, models.SeverityCritical, SeverityFromScore(-0.20001))
	assert.Equal(t, models.SeverityWarning, SeverityFromScore(-0.10001))
	assert.Equal(t, models.SeverityInfo, SeverityFromScore(0))
}
