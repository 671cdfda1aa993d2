package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const AuthEventPublish = "auth_event_publish"

// AuthEventPublishPolicy retries publishing one auth event to Kafka.
// Temporary broker errors and network failures are retried in place.
// Anything else gives up at once; the outbox row stays IN_PROGRESS and is
// picked again after its in-progress TTL.
func AuthEventPublishPolicy(log *zap.Logger) Policy {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("policy", AuthEventPublish))
	return Policy{
		Name:      AuthEventPublish,
		Attempts:  6,
		Backoff:   ExpoJitter{Base: 200 * time.Millisecond, Max: 30 * time.Second, Jitter: 0.2},
		Retryable: publishRetryable,
		OnAttempt: func(i int, err error) {
			log.Warn("auth event publish retry", zap.Int("attempt", i+1), zap.Error(err))
		},
		OnExhaust: func(err error) {
			if !errors.Is(err, context.Canceled) {
				log.Error("auth event publish failed", zap.Error(err))
			}
		},
	}
}

func publishRetryable(err error) bool {
	if err == nil || IsPermanent(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var writeErrs kafka.WriteErrors
	if errors.As(err, &writeErrs) {
		for _, e := range writeErrs {
			if e != nil && publishRetryable(e) {
				return true
			}
		}
		return false
	}
	var kerr kafka.Error
	if errors.As(err, &kerr) {
		return kerr.Temporary()
	}

	var nerr net.Error
	return errors.As(err, &nerr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
