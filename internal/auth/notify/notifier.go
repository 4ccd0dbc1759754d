package notify

import (
	"context"
	"time"
)

// Event kinds emitted by the auth service.
const (
	KindRegistration     = "registration"
	KindLogin            = "login"
	KindLogout           = "logout"
	KindPasswordReset    = "password_reset"
	KindCodesRegenerated = "recovery_codes_regenerated"
)

// Event is a notification about something that happened to an account.
type Event struct {
	Kind       string            `json:"kind"`
	Message    string            `json:"message"`
	IdentityID string            `json:"identity_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	At         time.Time         `json:"at"`
}

// Notifier delivers account events to interested parties. Delivery is best
// effort: publish failures must not fail the operation that produced the
// event.
type Notifier interface {
	Publish(ctx context.Context, e Event)
	Close() error
}
