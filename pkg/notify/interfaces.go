// Package notify pkg/notify/interfaces.go
package notify

import "context"

//go:generate mockgen -destination=mock_notify.go -package=notify github.com/fleetward/fleetward/pkg/notify MessagingGateway

// MessagingGateway reaches the external voice/text delivery channels.
type MessagingGateway interface {
	// SendVoice places a voice call to the recipient.
	SendVoice(ctx context.Context, recipient, message string) error

	// SendText sends a text/chat message to the recipient.
	SendText(ctx context.Context, recipient, message string) error
}
