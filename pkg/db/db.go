// Package db pkg/db/db.go provides SQLite persistence for fleetward.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/fleetward/fleetward/pkg/models"
)

const (
	// SQL statements for database initialization.
	createTablesSQL = `
	-- Service centres
	CREATE TABLE IF NOT EXISTS service_centres (
		centre_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		location TEXT,
		contact TEXT,
		max_capacity INTEGER NOT NULL DEFAULT 5,
		work_start TEXT NOT NULL DEFAULT '09:00',
		work_end TEXT NOT NULL DEFAULT '18:00',
		working_days TEXT NOT NULL DEFAULT 'Monday,Tuesday,Wednesday,Thursday,Friday,Saturday',
		slot_minutes INTEGER NOT NULL DEFAULT 60
	);

	-- Bookable slot units; a centre with max_capacity N carries N units per window
	CREATE TABLE IF NOT EXISTS service_slots (
		slot_id TEXT PRIMARY KEY,
		centre_id TEXT NOT NULL,
		slot_start TIMESTAMP NOT NULL,
		slot_end TIMESTAMP NOT NULL,
		is_available BOOLEAN NOT NULL DEFAULT 1,
		FOREIGN KEY (centre_id) REFERENCES service_centres(centre_id) ON DELETE CASCADE
	);

	-- Bookings are never deleted, only terminally statused
	CREATE TABLE IF NOT EXISTS bookings (
		booking_id TEXT PRIMARY KEY,
		vehicle_id TEXT NOT NULL,
		user_id TEXT,
		centre_id TEXT NOT NULL,
		slot_id TEXT,
		slot_start TIMESTAMP,
		slot_end TIMESTAMP,
		status TEXT NOT NULL,
		alert_id TEXT,
		cancel_reason TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		FOREIGN KEY (centre_id) REFERENCES service_centres(centre_id),
		FOREIGN KEY (slot_id) REFERENCES service_slots(slot_id)
	);

	-- Append-only audit trail of booking transitions
	CREATE TABLE IF NOT EXISTS booking_timeline (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		booking_id TEXT NOT NULL,
		status TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		notes TEXT,
		FOREIGN KEY (booking_id) REFERENCES bookings(booking_id) ON DELETE CASCADE
	);

	-- Alerts stay open until their booking completes or an operator resolves them
	CREATE TABLE IF NOT EXISTS alerts (
		alert_id TEXT PRIMARY KEY,
		vehicle_id TEXT NOT NULL,
		category TEXT NOT NULL,
		value REAL NOT NULL DEFAULT 0,
		severity TEXT NOT NULL,
		resolved BOOLEAN NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS diagnoses (
		diagnosis_id TEXT PRIMARY KEY,
		alert_id TEXT NOT NULL,
		probable_cause TEXT NOT NULL,
		recommended_action TEXT NOT NULL,
		urgency TEXT NOT NULL,
		confidence REAL NOT NULL,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (alert_id) REFERENCES alerts(alert_id) ON DELETE CASCADE
	);

	-- One row per dispatch attempt outcome
	CREATE TABLE IF NOT EXISTS notifications (
		notification_id TEXT PRIMARY KEY,
		alert_id TEXT,
		booking_id TEXT,
		recipient_kind TEXT NOT NULL,
		recipient TEXT NOT NULL,
		channel TEXT NOT NULL,
		category TEXT,
		message TEXT NOT NULL,
		status TEXT NOT NULL,
		failure_reason TEXT,
		created_at TIMESTAMP NOT NULL
	);

	-- At most one open alert per (vehicle, category)
	CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_open
		ON alerts(vehicle_id, category) WHERE resolved = 0;
	CREATE INDEX IF NOT EXISTS idx_slots_centre_start
		ON service_slots(centre_id, slot_start);
	CREATE INDEX IF NOT EXISTS idx_bookings_centre_start
		ON bookings(centre_id, slot_start);
	CREATE INDEX IF NOT EXISTS idx_timeline_booking
		ON booking_timeline(booking_id);
	CREATE INDEX IF NOT EXISTS idx_notifications_alert
		ON notifications(alert_id);

	PRAGMA foreign_keys=ON;
	`
)

// DB represents the database connection and operations.
type DB struct {
	*sql.DB
}

// New creates a new database connection and initializes the schema.
func New(dbPath string) (Service, error) {
	sqlDB, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedOpenDB, err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedToEnableWAL, err)
	}

	// SQLite serializes writes; a single connection avoids SQLITE_BUSY under
	// concurrent reservations.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{sqlDB}
	if err := db.initSchema(); err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedToInit, err)
	}

	return db, nil
}

// initSchema creates the database tables if they don't exist.
func (db *DB) initSchema() error {
	_, err := db.Exec(createTablesSQL)

	return err
}

func rollbackOnError(tx *sql.Tx, err error) {
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Printf("Error rolling back transaction: %v", rbErr)
		}
	}
}

// CreateServiceCentre inserts a new centre.
func (db *DB) CreateServiceCentre(c *models.ServiceCentre) error {
	_, err := db.Exec(`
        INSERT INTO service_centres
            (centre_id, name, location, contact, max_capacity, work_start, work_end, working_days, slot_minutes)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, c.ID, c.Name, c.Location, c.Contact, c.MaxCapacity,
		c.WorkingHours.Start, c.WorkingHours.End,
		strings.Join(c.WorkingDays, ","), c.SlotMinutes)

	if err != nil {
		return fmt.Errorf("%w service centre: %w", errFailedToInsert, err)
	}

	return nil
}

// GetServiceCentre retrieves a centre by id.
func (db *DB) GetServiceCentre(centreID string) (*models.ServiceCentre, error) {
	const query = `
        SELECT centre_id, name, location, contact, max_capacity, work_start, work_end, working_days, slot_minutes
        FROM service_centres
        WHERE centre_id = ?
    `

	row := db.QueryRow(query, centreID)

	centre, err := scanCentre(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("%w service centre: %w", errFailedToQuery, err)
	}

	return centre, nil
}

// ListServiceCentres returns all centres.
func (db *DB) ListServiceCentres() ([]models.ServiceCentre, error) {
	const query = `
        SELECT centre_id, name, location, contact, max_capacity, work_start, work_end, working_days, slot_minutes
        FROM service_centres
        ORDER BY name
    `

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("%w service centres: %w", errFailedToQuery, err)
	}
	defer closeRows(rows)

	var centres []models.ServiceCentre

	for rows.Next() {
		centre, err := scanCentre(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("%w centre row: %w", errFailedToScan, err)
		}

		centres = append(centres, *centre)
	}

	return centres, rows.Err()
}

func scanCentre(scan func(dest ...interface{}) error) (*models.ServiceCentre, error) {
	var c models.ServiceCentre

	var days string

	err := scan(&c.ID, &c.Name, &c.Location, &c.Contact, &c.MaxCapacity,
		&c.WorkingHours.Start, &c.WorkingHours.End, &days, &c.SlotMinutes)
	if err != nil {
		return nil, err
	}

	if days != "" {
		c.WorkingDays = strings.Split(days, ",")
	}

	return &c, nil
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		log.Printf("failed to close rows: %v", err)
	}
}

// CleanOldData removes resolved alerts, their notifications, and stale free
// slots older than the retention period.
func (db *DB) CleanOldData(retentionPeriod time.Duration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %w", errFailedToBeginTx, err)
	}
	defer func() { rollbackOnError(tx, err) }()

	cutoff := time.Now().Add(-retentionPeriod)

	if _, err = tx.Exec(
		`DELETE FROM notifications WHERE created_at < ?`, cutoff); err != nil {
		return fmt.Errorf("%w notifications: %w", errFailedToClean, err)
	}

	if _, err = tx.Exec(
		`DELETE FROM alerts WHERE resolved = 1 AND created_at < ?`, cutoff); err != nil {
		return fmt.Errorf("%w alerts: %w", errFailedToClean, err)
	}

	if _, err = tx.Exec(
		`DELETE FROM service_slots WHERE is_available = 1 AND slot_end < ?`, cutoff); err != nil {
		return fmt.Errorf("%w slots: %w", errFailedToClean, err)
	}

	return tx.Commit()
}
