// Package notify routes escalations to the channel their severity warrants
// and keeps the append-only dispatch log.
package notify

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/fleetward/fleetward/pkg/db"
	"github.com/fleetward/fleetward/pkg/models"
)

// Request is one escalation event to deliver.
type Request struct {
	AlertID       string
	BookingID     string
	RecipientKind models.RecipientKind
	Recipient     string
	Level         models.EscalationLevel
	Category      string
	Message       string
}

// Dispatcher selects the channel by escalation level, makes a single
// delivery attempt, and records the outcome. Failures never propagate to
// the caller's business flow.
type Dispatcher struct {
	store   db.Service
	gateway MessagingGateway
	now     func() time.Time
}

// New creates a Dispatcher. now is injectable for deterministic tests.
func New(store db.Service, gateway MessagingGateway, now func() time.Time) *Dispatcher {
	if now == nil {
		now = time.Now
	}

	return &Dispatcher{store: store, gateway: gateway, now: now}
}

// Dispatch delivers one escalation. HIGH goes out as a voice call, MEDIUM
// as a text message, LOW is logged to the dashboard feed only. Exactly one
// attempt per event; repeated failures surface only through the log.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) *models.Notification {
	n := &models.Notification{
		ID:            uuid.New().String(),
		AlertID:       req.AlertID,
		BookingID:     req.BookingID,
		RecipientKind: req.RecipientKind,
		Recipient:     req.Recipient,
		Category:      req.Category,
		Message:       req.Message,
		CreatedAt:     d.now(),
	}

	switch req.Level {
	case models.EscalationHigh:
		n.Channel = models.ChannelVoice
		d.attempt(ctx, n, d.gateway.SendVoice)
	case models.EscalationMedium:
		n.Channel = models.ChannelText
		d.attempt(ctx, n, d.gateway.SendText)
	default:
		n.Channel = models.ChannelDashboard
		n.Status = models.NotificationLogged
	}

	if err := d.store.InsertNotification(n); err != nil {
		log.Printf("failed to record notification %s: %v", n.ID, err)
	}

	return n
}

func (d *Dispatcher) attempt(ctx context.Context, n *models.Notification, send func(context.Context, string, string) error) {
	if err := send(ctx, n.Recipient, n.Message); err != nil {
		n.Status = models.NotificationFailed
		n.FailureReason = err.Error()

		log.Printf("dispatch via %s failed for %s: %v", n.Channel, n.Recipient, err)

		return
	}

	n.Status = models.NotificationSent
}
