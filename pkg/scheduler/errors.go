// Package scheduler pkg/scheduler/errors.go
package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/fleetward/fleetward/pkg/models"
)

var (
	// ErrNoCentres is returned when no service centres are registered at all.
	ErrNoCentres = errors.New("no service centres registered")
)

// CentreAvailability lists a centre's free slots for a date, offered as an
// alternative when the requested capacity is exhausted.
type CentreAvailability struct {
	Centre models.ServiceCentre `json:"centre"`
	Slots  []models.ServiceSlot `json:"available_slots"`
}

// CapacityConflictError reports that no requested capacity was available.
// Alternatives carry every other centre's free slots for the date; an empty
// list means the whole network is booked out.
type CapacityConflictError struct {
	CentreID     string               `json:"centre_id,omitempty"`
	Date         time.Time            `json:"date"`
	Alternatives []CentreAvailability `json:"available_alternatives"`
}

func (e *CapacityConflictError) Error() string {
	if e.CentreID != "" {
		return fmt.Sprintf("service centre %s is at full capacity for %s (%d alternatives)",
			e.CentreID, e.Date.Format("2006-01-02"), len(e.Alternatives))
	}

	return fmt.Sprintf("no service centre has capacity for %s (%d alternatives)",
		e.Date.Format("2006-01-02"), len(e.Alternatives))
}
