// Package scheduler finds and reserves service slots under per-centre
// capacity bounds.
package scheduler

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/fleetward/fleetward/pkg/db"
	"github.com/fleetward/fleetward/pkg/models"
)

// Request asks for a (centre, slot) reservation.
type Request struct {
	VehicleID string
	UserID    string
	AlertID   string

	// CentreID restricts the search to one centre; empty means any.
	CentreID string

	// SlotStart restricts the search to one exact window; zero means the
	// earliest available window of the day.
	SlotStart time.Time

	// Date selects the service day; zero means today.
	Date time.Time

	Urgency models.Severity
}

// Allocator reserves slots and creates the paired booking.
type Allocator struct {
	store db.Service
	now   func() time.Time
}

// New creates an Allocator. now is injectable for deterministic tests.
func New(store db.Service, now func() time.Time) *Allocator {
	if now == nil {
		now = time.Now
	}

	return &Allocator{store: store, now: now}
}

// Allocate walks the candidate centres in order, skips those without
// capacity, and reserves the earliest available slot. Reservation and
// booking creation are one transaction guarded by the slot's availability
// flag, so concurrent requests cannot both take the same unit. When nothing
// is free it returns a CapacityConflictError carrying each alternative
// centre's open slots for the date.
func (a *Allocator) Allocate(req *Request) (*models.Booking, error) {
	day := req.Date
	if day.IsZero() {
		day = a.now()
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	centres, err := a.candidateCentres(req.CentreID)
	if err != nil {
		return nil, err
	}

	for i := range centres {
		booking, err := a.tryCentre(&centres[i], req, dayStart, dayEnd)
		if err != nil {
			return nil, err
		}

		if booking != nil {
			return booking, nil
		}
	}

	conflict := &CapacityConflictError{
		CentreID: req.CentreID,
		Date:     dayStart,
	}

	conflict.Alternatives, err = a.alternatives(req.CentreID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	return nil, conflict
}

func (a *Allocator) candidateCentres(centreID string) ([]models.ServiceCentre, error) {
	if centreID != "" {
		centre, err := a.store.GetServiceCentre(centreID)
		if err != nil {
			return nil, err
		}

		return []models.ServiceCentre{*centre}, nil
	}

	centres, err := a.store.ListServiceCentres()
	if err != nil {
		return nil, err
	}

	if len(centres) == 0 {
		return nil, ErrNoCentres
	}

	return centres, nil
}

// tryCentre attempts to reserve within one centre. A nil, nil return means
// the centre had no usable capacity and the caller should move on.
func (a *Allocator) tryCentre(centre *models.ServiceCentre, req *Request, dayStart, dayEnd time.Time) (*models.Booking, error) {
	slots, err := a.store.ListAvailableSlots(centre.ID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	for i := range slots {
		slot := &slots[i]

		if !req.SlotStart.IsZero() && !slot.SlotStart.Equal(req.SlotStart) {
			continue
		}

		// Cancelled bookings released their unit, so committed bookings for
		// the window can never exceed the unit count; this check keeps the
		// capacity bound authoritative even if slots were over-seeded.
		committed, err := a.store.CountCommittedBookings(centre.ID, slot.SlotStart)
		if err != nil {
			return nil, err
		}

		if committed >= centre.MaxCapacity {
			continue
		}

		booking := a.newBooking(req, centre.ID, slot)

		err = a.store.ReserveSlotForBooking(slot.ID, booking)
		if errors.Is(err, db.ErrSlotUnavailable) {
			// Lost the race for this unit; try the next one.
			log.Printf("slot %s taken concurrently, trying next", slot.ID)
			continue
		}

		if err != nil {
			return nil, err
		}

		return booking, nil
	}

	return nil, nil
}

func (a *Allocator) newBooking(req *Request, centreID string, slot *models.ServiceSlot) *models.Booking {
	now := a.now()

	// CRITICAL urgency auto-confirms; everything else awaits confirmation.
	status := models.BookingPending
	notes := "Booking created, awaiting confirmation"

	if req.Urgency == models.SeverityCritical {
		status = models.BookingConfirmed
		notes = "Booking auto-confirmed for critical urgency"
	}

	return &models.Booking{
		ID:        uuid.New().String(),
		VehicleID: req.VehicleID,
		UserID:    req.UserID,
		CentreID:  centreID,
		SlotID:    slot.ID,
		SlotStart: slot.SlotStart,
		SlotEnd:   slot.SlotEnd,
		Status:    status,
		AlertID:   req.AlertID,
		CreatedAt: now,
		UpdatedAt: now,
		Timeline: []models.TimelineEntry{
			{Status: status, Timestamp: now, Notes: notes},
		},
	}
}

// alternatives collects every other centre's open slots for the date.
func (a *Allocator) alternatives(excludeCentreID string, dayStart, dayEnd time.Time) ([]CentreAvailability, error) {
	centres, err := a.store.ListServiceCentres()
	if err != nil {
		return nil, err
	}

	alternatives := make([]CentreAvailability, 0, len(centres))

	for i := range centres {
		if centres[i].ID == excludeCentreID {
			continue
		}

		slots, err := a.store.ListAvailableSlots(centres[i].ID, dayStart, dayEnd)
		if err != nil {
			return nil, err
		}

		if len(slots) == 0 {
			continue
		}

		alternatives = append(alternatives, CentreAvailability{
			Centre: centres[i],
			Slots:  slots,
		})
	}

	return alternatives, nil
}

// SeedSlots generates the bookable slot units for a centre on a date from
// its working hours, slot duration, and capacity. A non-working day yields
// no slots. Returns the number of units created.
func (a *Allocator) SeedSlots(centre *models.ServiceCentre, date time.Time) (int, error) {
	if !workingDay(centre, date) {
		return 0, nil
	}

	startH, startM, err := parseClock(centre.WorkingHours.Start)
	if err != nil {
		return 0, fmt.Errorf("centre %s work_start: %w", centre.ID, err)
	}

	endH, endM, err := parseClock(centre.WorkingHours.End)
	if err != nil {
		return 0, fmt.Errorf("centre %s work_end: %w", centre.ID, err)
	}

	windowStart := time.Date(date.Year(), date.Month(), date.Day(), startH, startM, 0, 0, date.Location())
	dayEnd := time.Date(date.Year(), date.Month(), date.Day(), endH, endM, 0, 0, date.Location())
	duration := time.Duration(centre.SlotMinutes) * time.Minute

	created := 0

	for windowStart.Add(duration).Before(dayEnd) || windowStart.Add(duration).Equal(dayEnd) {
		for unit := 0; unit < centre.MaxCapacity; unit++ {
			slot := &models.ServiceSlot{
				ID:          uuid.New().String(),
				CentreID:    centre.ID,
				SlotStart:   windowStart,
				SlotEnd:     windowStart.Add(duration),
				IsAvailable: true,
			}

			if err := a.store.InsertSlot(slot); err != nil {
				return created, err
			}

			created++
		}

		windowStart = windowStart.Add(duration)
	}

	return created, nil
}

func workingDay(centre *models.ServiceCentre, date time.Time) bool {
	day := date.Weekday().String()

	for _, d := range centre.WorkingDays {
		if d == day {
			return true
		}
	}

	return false
}

func parseClock(v string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock value %q: %w", v, err)
	}

	return t.Hour(), t.Minute(), nil
}
