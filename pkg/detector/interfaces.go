// Package detector pkg/detector/interfaces.go
package detector

import "github.com/fleetward/fleetward/pkg/models"

//go:generate mockgen -destination=mock_detector.go -package=detector github.com/fleetward/fleetward/pkg/detector Scorer

// Scorer is a pluggable learned outlier model. Score returns whether the
// sample is anomalous and a continuous score; the severity mapping from
// that score is owned by the detector, not the scorer.
type Scorer interface {
	Score(s *models.TelemetrySample) (flagged bool, score float64)
	Category() models.AnomalyCategory
}
