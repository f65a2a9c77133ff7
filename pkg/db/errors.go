// Package db pkg/db/errors.go
package db

import (
	"errors"
)

// Sentinel errors callers are expected to test for.
var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrSlotUnavailable is returned when a conditional slot reservation
	// finds the slot already taken.
	ErrSlotUnavailable = errors.New("slot is not available")

	// ErrStatusChanged is returned when a conditional booking transition
	// finds the booking no longer in the expected status.
	ErrStatusChanged = errors.New("booking status changed concurrently")

	// ErrOpenAlertExists is returned when an open alert already exists for
	// the same (vehicle, category).
	ErrOpenAlertExists = errors.New("open alert already exists")
)

var (
	errFailedToClean     = errors.New("failed to clean")
	errFailedToBeginTx   = errors.New("failed to begin transaction")
	errFailedToScan      = errors.New("failed to scan")
	errFailedToQuery     = errors.New("failed to query")
	errFailedToInsert    = errors.New("failed to insert")
	errFailedToUpdate    = errors.New("failed to update")
	errFailedToInit      = errors.New("failed to initialize schema")
	errFailedToEnableWAL = errors.New("failed to enable WAL mode")
	errFailedOpenDB      = errors.New("failed to open database")
)
