package outbox

import (
	"context"
	"time"
)

type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSuccess    Status = "SUCCESS"
)

type Kind int

const (
	KindUserSignedUp     Kind = 1
	KindSessionStarted   Kind = 2
	KindSessionRefreshed Kind = 3
	KindSessionEnded     Kind = 4
)

func (k Kind) String() string {
	switch k {
	case KindUserSignedUp:
		return "user.signed_up"
	case KindSessionStarted:
		return "session.started"
	case KindSessionRefreshed:
		return "session.refreshed"
	case KindSessionEnded:
		return "session.ended"
	default:
		return "unknown"
	}
}

// AuthEvent is the outbox payload for every auth kind. It never carries
// tokens or the auth subject value.
type AuthEvent struct {
	PID string    `json:"pid"`
	At  time.Time `json:"at"`
}

type Message struct {
	IdempotencyKey string
	Kind           Kind
	Data           []byte
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Tracestate     string
	Traceparent    string
	Baggage        string
}

type Repository interface {
	Enqueue(ctx context.Context, key string, kind Kind, data []byte) error

	PickBatch(ctx context.Context, batch int, inProgressTTL time.Duration) ([]Message, error)

	MarkSuccess(ctx context.Context, keys []string) error
}

type KindHandler func(ctx context.Context, data []byte) error

type GlobalHandler func(kind Kind) (KindHandler, error)
