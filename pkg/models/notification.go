package models

import "time"

// NotificationChannel selects how a notification is delivered.
type NotificationChannel string

const (
	ChannelVoice     NotificationChannel = "VOICE"
	ChannelText      NotificationChannel = "TEXT"
	ChannelDashboard NotificationChannel = "DASHBOARD"
)

// NotificationStatus is the outcome of one dispatch attempt.
type NotificationStatus string

const (
	NotificationQueued NotificationStatus = "QUEUED"
	NotificationSent   NotificationStatus = "SENT"
	NotificationFailed NotificationStatus = "FAILED"
	NotificationLogged NotificationStatus = "LOGGED"
)

// RecipientKind distinguishes who a notification addresses.
type RecipientKind string

const (
	RecipientUser   RecipientKind = "USER"
	RecipientCentre RecipientKind = "CENTRE"
)

// Notification is one append-only dispatch attempt outcome.
type Notification struct {
	ID            string              `json:"id"`
	AlertID       string              `json:"alert_id,omitempty"`
	BookingID     string              `json:"booking_id,omitempty"`
	RecipientKind RecipientKind       `json:"recipient_kind"`
	Recipient     string              `json:"recipient"`
	Channel       NotificationChannel `json:"channel"`
	Category      string              `json:"category"`
	Message       string              `json:"message"`
	Status        NotificationStatus  `json:"status"`
	FailureReason string              `json:"failure_reason,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}
