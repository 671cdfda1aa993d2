package kafka

import (
	"context"
	"time"
)

type AuthEvents interface {
	PublishAuthEvent(ctx context.Context, eventType, pid string, at time.Time) error
}
