package email

import (
	"context"
	"time"
)

// SendRequest is one message to one address.
type SendRequest struct {
	To      string
	Subject string
	HTML    string
}

// SendResult contains the response from the email provider.
type SendResult struct {
	MessageID string    // Provider's message ID for tracking
	SentAt    time.Time // When the send was accepted
}

// Sender delivers a single email. Implementations must honour ctx
// cancellation so a per-send timeout can abandon a stuck provider call.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
}
