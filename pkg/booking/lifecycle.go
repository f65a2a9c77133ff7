// Package booking owns the booking lifecycle state machine.
package booking

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fleetward/fleetward/pkg/db"
	"github.com/fleetward/fleetward/pkg/models"
)

// forwardTransitions is the only legal forward path. CANCELLED is reachable
// solely through Cancel, never through Transition.
var forwardTransitions = map[models.BookingStatus]models.BookingStatus{
	models.BookingPending:    models.BookingConfirmed,
	models.BookingConfirmed:  models.BookingInProgress,
	models.BookingInProgress: models.BookingCompleted,
}

// Manager validates booking transitions and cascades their side effects.
type Manager struct {
	store   db.Service
	billing BillingHook
	now     func() time.Time
}

// New creates a Manager. billing may be nil; now is injectable for tests.
func New(store db.Service, billing BillingHook, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}

	return &Manager{store: store, billing: billing, now: now}
}

// Get returns a booking with its timeline.
func (m *Manager) Get(bookingID string) (*models.Booking, error) {
	return m.store.GetBooking(bookingID)
}

// Transition moves a booking to target along the forward table. The
// read-validate-write is atomic per booking id: the store update is guarded
// by the observed status, so of two competing transitions only one commits.
// Reaching COMPLETED resolves the linked alert and signals billing; the
// slot stays consumed.
func (m *Manager) Transition(bookingID string, target models.BookingStatus, notes string) (*models.Booking, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, target)
	}

	b, err := m.store.GetBooking(bookingID)
	if err != nil {
		return nil, err
	}

	if forwardTransitions[b.Status] != target {
		return nil, &InvalidTransitionError{
			BookingID: bookingID,
			Current:   b.Status,
			Requested: target,
		}
	}

	err = m.store.TransitionBooking(bookingID, b.Status, target, notes, m.now())
	if errors.Is(err, db.ErrStatusChanged) {
		// A competing transition won; report against the fresh status.
		fresh, getErr := m.store.GetBooking(bookingID)
		if getErr != nil {
			return nil, getErr
		}

		return nil, &InvalidTransitionError{
			BookingID: bookingID,
			Current:   fresh.Status,
			Requested: target,
		}
	}

	if err != nil {
		return nil, err
	}

	if target == models.BookingCompleted {
		m.onCompleted(b)
	}

	return m.store.GetBooking(bookingID)
}

// Cancel terminally cancels a booking from any non-terminal state, records
// the reason, and releases the reserved slot back to available.
func (m *Manager) Cancel(bookingID, reason string) (*models.Booking, error) {
	b, err := m.store.GetBooking(bookingID)
	if err != nil {
		return nil, err
	}

	if b.Status.Terminal() {
		return nil, &InvalidTransitionError{
			BookingID: bookingID,
			Current:   b.Status,
			Requested: models.BookingCancelled,
		}
	}

	err = m.store.CancelBooking(bookingID, b.Status, reason, m.now())
	if errors.Is(err, db.ErrStatusChanged) {
		fresh, getErr := m.store.GetBooking(bookingID)
		if getErr != nil {
			return nil, getErr
		}

		return nil, &InvalidTransitionError{
			BookingID: bookingID,
			Current:   fresh.Status,
			Requested: models.BookingCancelled,
		}
	}

	if err != nil {
		return nil, err
	}

	if b.SlotID != "" {
		if err := m.store.ReleaseSlot(b.SlotID); err != nil {
			// The cancellation itself committed; a failed release is
			// recoverable by maintenance, not a caller error.
			log.Printf("failed to release slot %s for cancelled booking %s: %v",
				b.SlotID, bookingID, err)
		}
	}

	return m.store.GetBooking(bookingID)
}

func (m *Manager) onCompleted(b *models.Booking) {
	if b.AlertID != "" {
		err := m.store.ResolveAlert(b.AlertID)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			log.Printf("failed to resolve alert %s for completed booking %s: %v",
				b.AlertID, b.ID, err)
		}
	}

	if m.billing != nil {
		m.billing.BookingCompleted(b)
	}
}
