// Package db pkg/db/slots.go
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fleetward/fleetward/pkg/models"
)

// InsertSlot adds a bookable slot unit.
func (db *DB) InsertSlot(s *models.ServiceSlot) error {
	_, err := db.Exec(`
        INSERT INTO service_slots (slot_id, centre_id, slot_start, slot_end, is_available)
        VALUES (?, ?, ?, ?, ?)
    `, s.ID, s.CentreID, s.SlotStart, s.SlotEnd, s.IsAvailable)

	if err != nil {
		return fmt.Errorf("%w slot: %w", errFailedToInsert, err)
	}

	return nil
}

// GetSlot retrieves a slot by id.
func (db *DB) GetSlot(slotID string) (*models.ServiceSlot, error) {
	const query = `
        SELECT slot_id, centre_id, slot_start, slot_end, is_available
        FROM service_slots
        WHERE slot_id = ?
    `

	var s models.ServiceSlot

	err := db.QueryRow(query, slotID).Scan(
		&s.ID, &s.CentreID, &s.SlotStart, &s.SlotEnd, &s.IsAvailable)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("%w slot: %w", errFailedToQuery, err)
	}

	return &s, nil
}

// ListAvailableSlots returns the available slot units for a centre within
// [from, to), earliest first.
func (db *DB) ListAvailableSlots(centreID string, from, to time.Time) ([]models.ServiceSlot, error) {
	const query = `
        SELECT slot_id, centre_id, slot_start, slot_end, is_available
        FROM service_slots
        WHERE centre_id = ? AND is_available = 1 AND slot_start >= ? AND slot_start < ?
        ORDER BY slot_start
    `

	rows, err := db.Query(query, centreID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w available slots: %w", errFailedToQuery, err)
	}
	defer closeRows(rows)

	var slots []models.ServiceSlot

	for rows.Next() {
		var s models.ServiceSlot

		if err := rows.Scan(&s.ID, &s.CentreID, &s.SlotStart, &s.SlotEnd, &s.IsAvailable); err != nil {
			return nil, fmt.Errorf("%w slot row: %w", errFailedToScan, err)
		}

		slots = append(slots, s)
	}

	return slots, rows.Err()
}

// ReserveSlotForBooking marks a slot unavailable and creates its booking as
// one transaction. The slot update is guarded by the availability flag, so a
// concurrent reservation of the same unit fails with ErrSlotUnavailable.
func (db *DB) ReserveSlotForBooking(slotID string, b *models.Booking) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %w", errFailedToBeginTx, err)
	}
	defer func() { rollbackOnError(tx, err) }()

	result, err := tx.Exec(`
        UPDATE service_slots
        SET is_available = 0
        WHERE slot_id = ? AND is_available = 1
    `, slotID)
	if err != nil {
		return fmt.Errorf("%w slot reservation: %w", errFailedToUpdate, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		err = ErrSlotUnavailable
		return err
	}

	if _, err = tx.Exec(`
        INSERT INTO bookings
            (booking_id, vehicle_id, user_id, centre_id, slot_id, slot_start, slot_end,
             status, alert_id, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, b.ID, b.VehicleID, b.UserID, b.CentreID, b.SlotID, b.SlotStart, b.SlotEnd,
		string(b.Status), b.AlertID, b.CreatedAt, b.UpdatedAt); err != nil {
		return fmt.Errorf("%w booking: %w", errFailedToInsert, err)
	}

	notes := "Booking created"
	if len(b.Timeline) > 0 {
		notes = b.Timeline[0].Notes
	}

	if _, err = tx.Exec(`
        INSERT INTO booking_timeline (booking_id, status, timestamp, notes)
        VALUES (?, ?, ?, ?)
    `, b.ID, string(b.Status), b.CreatedAt, notes); err != nil {
		return fmt.Errorf("%w timeline entry: %w", errFailedToInsert, err)
	}

	return tx.Commit()
}

// ReleaseSlot returns a reserved slot unit to the pool.
func (db *DB) ReleaseSlot(slotID string) error {
	result, err := db.Exec(`
        UPDATE service_slots
        SET is_available = 1
        WHERE slot_id = ? AND is_available = 0
    `, slotID)
	if err != nil {
		return fmt.Errorf("%w slot release: %w", errFailedToUpdate, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// CountSlots reports how many slot units, reserved or free, a centre has
// in the window. Used to keep boot-time seeding idempotent.
func (db *DB) CountSlots(centreID string, from, to time.Time) (int, error) {
	const query = `
        SELECT COUNT(*)
        FROM service_slots
        WHERE centre_id = ? AND slot_start >= ? AND slot_start < ?
    `

	var count int

	err := db.QueryRow(query, centreID, from, to).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w slot count: %w", errFailedToQuery, err)
	}

	return count, nil
}

// CountCommittedBookings reports how many bookings hold capacity for a
// centre's slot window. Cancelled bookings do not count.
func (db *DB) CountCommittedBookings(centreID string, slotStart time.Time) (int, error) {
	const query = `
        SELECT COUNT(*)
        FROM bookings
        WHERE centre_id = ? AND slot_start = ? AND status != ?
    `

	var count int

	err := db.QueryRow(query, centreID, slotStart, string(models.BookingCancelled)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w booking count: %w", errFailedToQuery, err)
	}

	return count, nil
}
