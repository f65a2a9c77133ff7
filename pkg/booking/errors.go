// Package booking pkg/booking/errors.go
package booking

import (
	"errors"
	"fmt"

	"github.com/fleetward/fleetward/pkg/models"
)

var (
	// ErrUnknownStatus is returned when a requested target status is not a
	// member of the closed status set.
	ErrUnknownStatus = errors.New("unknown booking status")
)

// InvalidTransitionError names a rejected lifecycle move so the caller can
// correct it. It is never silently coerced into a different transition.
type InvalidTransitionError struct {
	BookingID string               `json:"booking_id"`
	Current   models.BookingStatus `json:"current_status"`
	Requested models.BookingStatus `json:"requested_status"`
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid booking transition for %s: %s -> %s",
		e.BookingID, e.Current, e.Requested)
}
