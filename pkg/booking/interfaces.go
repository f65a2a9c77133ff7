// Package booking pkg/booking/interfaces.go
package booking

import "github.com/fleetward/fleetward/pkg/models"

//go:generate mockgen -destination=mock_booking.go -package=booking github.com/fleetward/fleetward/pkg/booking BillingHook

// BillingHook receives the hand-off when a booking completes. Invoicing
// itself lives outside this service.
type BillingHook interface {
	BookingCompleted(b *models.Booking)
}
