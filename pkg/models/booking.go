package models

import "time"

// BookingStatus is the closed set of booking lifecycle states.
type BookingStatus string

const (
	BookingPending    BookingStatus = "PENDING"
	BookingConfirmed  BookingStatus = "CONFIRMED"
	BookingInProgress BookingStatus = "IN_PROGRESS"
	BookingCompleted  BookingStatus = "COMPLETED"
	BookingCancelled  BookingStatus = "CANCELLED"
)

// Valid reports whether s is a known booking status.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingInProgress, BookingCompleted, BookingCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transitions are allowed from s.
func (s BookingStatus) Terminal() bool {
	return s == BookingCompleted || s == BookingCancelled
}

// WorkingHours is a centre's daily service window, "HH:MM" local time.
type WorkingHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ServiceCentre is a capacity-bounded service location. MaxCapacity is the
// number of concurrent bookings a single slot window can hold.
type ServiceCentre struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Location     string       `json:"location"`
	Contact      string       `json:"contact"`
	MaxCapacity  int          `json:"max_capacity"`
	WorkingHours WorkingHours `json:"working_hours"`
	WorkingDays  []string     `json:"working_days"`
	SlotMinutes  int          `json:"slot_duration_minutes"`
}

// ServiceSlot is a bookable (centre, time-window) unit with binary
// availability. It transitions available -> reserved exactly once per
// successful booking and is returned to available only on cancellation.
type ServiceSlot struct {
	ID          string    `json:"id"`
	CentreID    string    `json:"centre_id"`
	SlotStart   time.Time `json:"slot_start"`
	SlotEnd     time.Time `json:"slot_end"`
	IsAvailable bool      `json:"is_available"`
}

// TimelineEntry is one append-only audit record of a booking transition.
type TimelineEntry struct {
	Status    BookingStatus `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Notes     string        `json:"notes,omitempty"`
}

// Booking is a customer's claim on service work. Never deleted, only
// terminally statused; mutated only through the lifecycle manager.
type Booking struct {
	ID           string          `json:"id"`
	VehicleID    string          `json:"vehicle_id"`
	UserID       string          `json:"user_id"`
	CentreID     string          `json:"centre_id"`
	SlotID       string          `json:"slot_id,omitempty"`
	SlotStart    time.Time       `json:"slot_start"`
	SlotEnd      time.Time       `json:"slot_end"`
	Status       BookingStatus   `json:"status"`
	AlertID      string          `json:"alert_id,omitempty"`
	CancelReason string          `json:"cancellation_reason,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Timeline     []TimelineEntry `json:"status_timeline,omitempty"`
}
