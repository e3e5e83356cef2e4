package broadcast

import (
	"context"

	"promobot/internal/store"
)

// Status is the delivery outcome class for a single recipient.
type Status int

const (
	// Delivered: the message was accepted by the platform.
	Delivered Status = iota
	// Blocked: the recipient can no longer receive messages (blocked the bot,
	// deleted their account, chat gone). Triggers deactivation.
	Blocked
	// TransientError: any other delivery failure. Logged and skipped; a later
	// fan-out is the retry path.
	TransientError
)

func (s Status) String() string {
	switch s {
	case Delivered:
		return "delivered"
	case Blocked:
		return "blocked"
	case TransientError:
		return "transient"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of one send. Err carries detail for
// TransientError; the dispatcher's branching never inspects error types.
type Outcome struct {
	Status Status
	Err    error
}

// Payload is a fully-resolved outgoing message. ButtonURL empty means no
// button is attached at all.
type Payload struct {
	Kind        store.ContentKind
	MediaRef    string
	Text        string
	ButtonURL   string
	ButtonLabel string
}

func (p Payload) HasButton() bool { return p.ButtonURL != "" }

// Report aggregates one fan-out.
type Report struct {
	Sent    int
	Blocked int
}

// Gateway sends one rendered payload to one recipient.
type Gateway interface {
	Send(ctx context.Context, userID int64, p Payload) Outcome
}

// SubscriberStore is the persistence surface the dispatcher needs.
type SubscriberStore interface {
	ListActive(ctx context.Context, limit, offset int) ([]store.Subscriber, error)
	SetActive(ctx context.Context, userID int64, active bool) error
	IncrementDelivered(ctx context.Context, postID int64, count int) error
}

// Settings resolves the process-wide fallbacks for payload rendering.
type Settings interface {
	GlobalLink(ctx context.Context) (string, error)
	GlobalButtonLabel(ctx context.Context) (string, error)
}
