// Package models pkg/models/telemetry.go
package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidSample is returned when a telemetry sample fails validation.
	ErrInvalidSample = errors.New("invalid telemetry sample")
)

// TelemetrySample is one reading from a vehicle. Immutable once produced;
// the pipeline and the fan-out consume it independently.
type TelemetrySample struct {
	VehicleID string    `json:"vehicle_id"`
	Timestamp time.Time `json:"timestamp"`

	SpeedKmph       float64 `json:"speed_kmph"`
	RPM             float64 `json:"rpm"`
	EngineTempC     float64 `json:"engine_temp_c"`
	CoolantTempC    float64 `json:"coolant_temp_c"`
	BrakeWearPct    float64 `json:"brake_wear_percent"`
	BatteryVoltageV float64 `json:"battery_voltage_v"`
	FuelLevelPct    float64 `json:"fuel_level_percent"`
	ThrottlePct     float64 `json:"throttle_position_percent"`
	AccelerationMps float64 `json:"acceleration_mps2"`

	Gear       int     `json:"gear"`
	OdometerKm float64 `json:"odometer_km"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
}

// Validate rejects samples that must not enter the pipeline.
func (s *TelemetrySample) Validate() error {
	if s.VehicleID == "" {
		return fmt.Errorf("%w: missing vehicle_id", ErrInvalidSample)
	}

	if s.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidSample)
	}

	return nil
}
