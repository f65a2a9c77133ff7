// Package db pkg/db/bookings.go
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fleetward/fleetward/pkg/models"
)

// GetBooking retrieves a booking with its status timeline.
func (db *DB) GetBooking(bookingID string) (*models.Booking, error) {
	const query = `
        SELECT booking_id, vehicle_id, user_id, centre_id, slot_id, slot_start, slot_end,
               status, alert_id, cancel_reason, created_at, updated_at
        FROM bookings
        WHERE booking_id = ?
    `

	var (
		b            models.Booking
		status       string
		slotID       sql.NullString
		alertID      sql.NullString
		cancelReason sql.NullString
	)

	err := db.QueryRow(query, bookingID).Scan(
		&b.ID, &b.VehicleID, &b.UserID, &b.CentreID, &slotID, &b.SlotStart, &b.SlotEnd,
		&status, &alertID, &cancelReason, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("%w booking: %w", errFailedToQuery, err)
	}

	b.Status = models.BookingStatus(status)
	b.SlotID = slotID.String
	b.AlertID = alertID.String
	b.CancelReason = cancelReason.String

	timeline, err := db.getTimeline(bookingID)
	if err != nil {
		return nil, err
	}

	b.Timeline = timeline

	return &b, nil
}

func (db *DB) getTimeline(bookingID string) ([]models.TimelineEntry, error) {
	const query = `
        SELECT status, timestamp, notes
        FROM booking_timeline
        WHERE booking_id = ?
        ORDER BY id
    `

	rows, err := db.Query(query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("%w timeline: %w", errFailedToQuery, err)
	}
	defer closeRows(rows)

	var entries []models.TimelineEntry

	for rows.Next() {
		var (
			e      models.TimelineEntry
			status string
			notes  sql.NullString
		)

		if err := rows.Scan(&status, &e.Timestamp, &notes); err != nil {
			return nil, fmt.Errorf("%w timeline row: %w", errFailedToScan, err)
		}

		e.Status = models.BookingStatus(status)
		e.Notes = notes.String

		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// TransitionBooking moves a booking from one status to another and appends
// the timeline entry in a single transaction. The update is guarded by the
// expected current status; a competing transition that commits first makes
// this one fail with ErrStatusChanged.
func (db *DB) TransitionBooking(bookingID string, from, to models.BookingStatus, notes string, at time.Time) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %w", errFailedToBeginTx, err)
	}
	defer func() { rollbackOnError(tx, err) }()

	result, err := tx.Exec(`
        UPDATE bookings
        SET status = ?, updated_at = ?
        WHERE booking_id = ? AND status = ?
    `, string(to), at, bookingID, string(from))
	if err != nil {
		return fmt.Errorf("%w booking status: %w", errFailedToUpdate, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		err = ErrStatusChanged
		return err
	}

	if _, err = tx.Exec(`
        INSERT INTO booking_timeline (booking_id, status, timestamp, notes)
        VALUES (?, ?, ?, ?)
    `, bookingID, string(to), at, notes); err != nil {
		return fmt.Errorf("%w timeline entry: %w", errFailedToInsert, err)
	}

	return tx.Commit()
}

// CancelBooking terminally cancels a booking, records the reason, and
// appends the timeline entry. Guarded by the expected current status.
func (db *DB) CancelBooking(bookingID string, from models.BookingStatus, reason string, at time.Time) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %w", errFailedToBeginTx, err)
	}
	defer func() { rollbackOnError(tx, err) }()

	result, err := tx.Exec(`
        UPDATE bookings
        SET status = ?, cancel_reason = ?, updated_at = ?
        WHERE booking_id = ? AND status = ?
    `, string(models.BookingCancelled), reason, at, bookingID, string(from))
	if err != nil {
		return fmt.Errorf("%w booking cancel: %w", errFailedToUpdate, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		err = ErrStatusChanged
		return err
	}

	notes := reason
	if notes == "" {
		notes = "Booking cancelled"
	}

	if _, err = tx.Exec(`
        INSERT INTO booking_timeline (booking_id, status, timestamp, notes)
        VALUES (?, ?, ?, ?)
    `, bookingID, string(models.BookingCancelled), at, notes); err != nil {
		return fmt.Errorf("%w timeline entry: %w", errFailedToInsert, err)
	}

	return tx.Commit()
}

// ListBookingsForVehicle returns a vehicle's bookings, newest first.
func (db *DB) ListBookingsForVehicle(vehicleID string) ([]models.Booking, error) {
	const query = `
        SELECT booking_id, vehicle_id, user_id, centre_id, slot_id, slot_start, slot_end,
               status, alert_id, cancel_reason, created_at, updated_at
        FROM bookings
        WHERE vehicle_id = ?
        ORDER BY created_at DESC
    `

	rows, err := db.Query(query, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("%w bookings: %w", errFailedToQuery, err)
	}
	defer closeRows(rows)

	var bookings []models.Booking

	for rows.Next() {
		var (
			b            models.Booking
			status       string
			slotID       sql.NullString
			alertID      sql.NullString
			cancelReason sql.NullString
		)

		if err := rows.Scan(&b.ID, &b.VehicleID, &b.UserID, &b.CentreID, &slotID,
			&b.SlotStart, &b.SlotEnd, &status, &alertID, &cancelReason,
			&b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w booking row: %w", errFailedToScan, err)
		}

		b.Status = models.BookingStatus(status)
		b.SlotID = slotID.String
		b.AlertID = alertID.String
		b.CancelReason = cancelReason.String

		bookings = append(bookings, b)
	}

	return bookings, rows.Err()
}
