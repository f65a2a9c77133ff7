// Package db pkg/db/interfaces.go
package db

import (
	"time"

	"github.com/fleetward/fleetward/pkg/models"
)

//go:generate mockgen -destination=mock_db.go -package=db github.com/fleetward/fleetward/pkg/db Service

// Service represents all database operations.
type Service interface {
	// Core database operations.

	Close() error

	// Service centre operations.

	CreateServiceCentre(c *models.ServiceCentre) error
	GetServiceCentre(centreID string) (*models.ServiceCentre, error)
	ListServiceCentres() ([]models.ServiceCentre, error)

	// Slot operations.

	InsertSlot(s *models.ServiceSlot) error
	GetSlot(slotID string) (*models.ServiceSlot, error)
	ListAvailableSlots(centreID string, from, to time.Time) ([]models.ServiceSlot, error)
	ReserveSlotForBooking(slotID string, b *models.Booking) error
	ReleaseSlot(slotID string) error
	CountSlots(centreID string, from, to time.Time) (int, error)
	CountCommittedBookings(centreID string, slotStart time.Time) (int, error)

	// Booking operations.

	GetBooking(bookingID string) (*models.Booking, error)
	ListBookingsForVehicle(vehicleID string) ([]models.Booking, error)
	TransitionBooking(bookingID string, from, to models.BookingStatus, notes string, at time.Time) error
	CancelBooking(bookingID string, from models.BookingStatus, reason string, at time.Time) error

	// Alert and diagnosis operations.

	CreateAlert(a *models.Alert) error
	GetAlert(alertID string) (*models.Alert, error)
	GetOpenAlert(vehicleID string, category models.AnomalyCategory) (*models.Alert, error)
	ListOpenAlerts() ([]models.Alert, error)
	ResolveAlert(alertID string) error
	CreateDiagnosis(d *models.Diagnosis) error
	GetDiagnosisForAlert(alertID string) (*models.Diagnosis, error)

	// Notification log operations.

	InsertNotification(n *models.Notification) error
	ListNotificationsForAlert(alertID string) ([]models.Notification, error)

	// Maintenance operations.

	CleanOldData(retentionPeriod time.Duration) error
}
