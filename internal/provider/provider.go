// Package provider sends SMS and WhatsApp messages through third-party HTTP
// APIs and queries their delivery status.
//
// Two transports implement Sender: PushrClient, the primary SMS API, and
// GatewayClient, a carrier gateway used when the primary API has no
// credentials. Select picks one of them once at startup; callers never
// branch on which one they hold.
//
// All failures are returned as *Error values whose Unwrap yields one of the
// kind sentinels (ErrNotConfigured, ErrValidation, ErrTransport,
// ErrRejected), so callers classify them with errors.Is.
package provider

import (
	"context"
	"time"

	"github.com/popeskul/gathering-dispatch/internal/models"
)

//go:generate mockgen -source=provider.go -destination=mocks/mock_provider.go -package=mocks

// Sender is the capability shared by every SMS/WhatsApp transport.
type Sender interface {
	// Send delivers one message to one recipient.
	Send(ctx context.Context, req SendRequest) (*SendResult, error)
	// CheckStatus asks the transport for the current state of a sent message.
	CheckStatus(ctx context.Context, externalID string) (*StatusResult, error)
	// Name identifies the transport in logs and health output.
	Name() string
}

type SendRequest struct {
	To       string
	Body     string
	SenderID string
	Channel  models.Channel
}

type SendResult struct {
	MessageID string
	Status    string
	Cost      float64
	Currency  string
}

// Delivery states reported by CheckStatus. Transports map their own
// vocabulary onto these.
const (
	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
	StatusRead      = "read"
	StatusUnknown   = "unknown"
)

type StatusResult struct {
	Status      string
	Recipient   string
	Cost        float64
	Currency    string
	SentAt      *time.Time
	DeliveredAt *time.Time
	ErrorCode   string
}
