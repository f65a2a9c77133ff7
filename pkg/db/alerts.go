// Package db pkg/db/alerts.go
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fleetward/fleetward/pkg/models"
)

// CreateAlert inserts a new open alert. The partial unique index on open
// alerts makes a concurrent duplicate fail, which is surfaced as
// ErrOpenAlertExists.
func (db *DB) CreateAlert(a *models.Alert) error {
	_, err := db.Exec(`
        INSERT INTO alerts (alert_id, vehicle_id, category, value, severity, resolved, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `, a.ID, a.VehicleID, string(a.Category), a.Value, string(a.Severity), a.Resolved, a.CreatedAt)

	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrOpenAlertExists
		}

		return fmt.Errorf("%w alert: %w", errFailedToInsert, err)
	}

	return nil
}

// GetOpenAlert returns the open alert for (vehicle, category), or ErrNotFound.
func (db *DB) GetOpenAlert(vehicleID string, category models.AnomalyCategory) (*models.Alert, error) {
	const query = `
        SELECT alert_id, vehicle_id, category, value, severity, resolved, created_at
        FROM alerts
        WHERE vehicle_id = ? AND category = ? AND resolved = 0
    `

	return db.scanAlert(db.QueryRow(query, vehicleID, string(category)))
}

// GetAlert retrieves an alert by id.
func (db *DB) GetAlert(alertID string) (*models.Alert, error) {
	const query = `
        SELECT alert_id, vehicle_id, category, value, severity, resolved, created_at
        FROM alerts
        WHERE alert_id = ?
    `

	return db.scanAlert(db.QueryRow(query, alertID))
}

func (*DB) scanAlert(row *sql.Row) (*models.Alert, error) {
	var (
		a        models.Alert
		category string
		severity string
	)

	err := row.Scan(&a.ID, &a.VehicleID, &category, &a.Value, &severity, &a.Resolved, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("%w alert: %w", errFailedToQuery, err)
	}

	a.Category = models.AnomalyCategory(category)
	a.Severity = models.Severity(severity)

	return &a, nil
}

// ListOpenAlerts returns all unresolved alerts, oldest first.
func (db *DB) ListOpenAlerts() ([]models.Alert, error) {
	const query = `
        SELECT alert_id, vehicle_id, category, value, severity, resolved, created_at
        FROM alerts
        WHERE resolved = 0
        ORDER BY created_at
    `

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("%w open alerts: %w", errFailedToQuery, err)
	}
	defer closeRows(rows)

	var alerts []models.Alert

	for rows.Next() {
		var (
			a        models.Alert
			category string
			severity string
		)

		if err := rows.Scan(&a.ID, &a.VehicleID, &category, &a.Value, &severity,
			&a.Resolved, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w alert row: %w", errFailedToScan, err)
		}

		a.Category = models.AnomalyCategory(category)
		a.Severity = models.Severity(severity)

		alerts = append(alerts, a)
	}

	return alerts, rows.Err()
}

// ResolveAlert marks an open alert resolved. Resolving an already resolved
// or missing alert returns ErrNotFound.
func (db *DB) ResolveAlert(alertID string) error {
	result, err := db.Exec(`
        UPDATE alerts
        SET resolved = 1
        WHERE alert_id = ? AND resolved = 0
    `, alertID)
	if err != nil {
		return fmt.Errorf("%w alert resolve: %w", errFailedToUpdate, err)
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

// CreateDiagnosis inserts the diagnosis produced for an alert.
func (db *DB) CreateDiagnosis(d *models.Diagnosis) error {
	_, err := db.Exec(`
        INSERT INTO diagnoses
            (diagnosis_id, alert_id, probable_cause, recommended_action, urgency, confidence, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `, d.ID, d.AlertID, d.ProbableCause, d.RecommendedAction, string(d.Urgency), d.Confidence, d.CreatedAt)

	if err != nil {
		return fmt.Errorf("%w diagnosis: %w", errFailedToInsert, err)
	}

	return nil
}

// GetDiagnosisForAlert returns an alert's diagnosis, or ErrNotFound.
func (db *DB) GetDiagnosisForAlert(alertID string) (*models.Diagnosis, error) {
	const query = `
        SELECT diagnosis_id, alert_id, probable_cause, recommended_action, urgency, confidence, created_at
        FROM diagnoses
        WHERE alert_id = ?
    `

	var (
		d       models.Diagnosis
		urgency string
	)

	err := db.QueryRow(query, alertID).Scan(
		&d.ID, &d.AlertID, &d.ProbableCause, &d.RecommendedAction, &urgency, &d.Confidence, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("%w diagnosis: %w", errFailedToQuery, err)
	}

	d.Urgency = models.Severity(urgency)

	return &d, nil
}

// InsertNotification appends one dispatch attempt outcome.
func (db *DB) InsertNotification(n *models.Notification) error {
	_, err := db.Exec(`
        INSERT INTO notifications
            (notification_id, alert_id, booking_id, recipient_kind, recipient,
             channel, category, message, status, failure_reason, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, n.ID, n.AlertID, n.BookingID, string(n.RecipientKind), n.Recipient,
		string(n.Channel), n.Category, n.Message, string(n.Status), n.FailureReason, n.CreatedAt)

	if err != nil {
		return fmt.Errorf("%w notification: %w", errFailedToInsert, err)
	}

	return nil
}

// ListNotificationsForAlert returns the dispatch log for an alert, oldest first.
func (db *DB) ListNotificationsForAlert(alertID string) ([]models.Notification, error) {
	const query = `
        SELECT notification_id, alert_id, booking_id, recipient_kind, recipient,
               channel, category, message, status, failure_reason, created_at
        FROM notifications
        WHERE alert_id = ?
        ORDER BY created_at
    `

	rows, err := db.Query(query, alertID)
	if err != nil {
		return nil, fmt.Errorf("%w notifications: %w", errFailedToQuery, err)
	}
	defer closeRows(rows)

	var notifications []models.Notification

	for rows.Next() {
		var (
			n             models.Notification
			alertRef      sql.NullString
			bookingRef    sql.NullString
			failureReason sql.NullString
			kind          string
			channel       string
			status        string
		)

		if err := rows.Scan(&n.ID, &alertRef, &bookingRef, &kind, &n.Recipient,
			&channel, &n.Category, &n.Message, &status, &failureReason, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w notification row: %w", errFailedToScan, err)
		}

		n.AlertID = alertRef.String
		n.BookingID = bookingRef.String
		n.FailureReason = failureReason.String
		n.RecipientKind = models.RecipientKind(kind)
		n.Channel = models.NotificationChannel(channel)
		n.Status = models.NotificationStatus(status)

		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}
