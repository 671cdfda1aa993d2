package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NordCoder/authgate/internal/domain/kafka"
	"github.com/NordCoder/authgate/internal/obs/retry"

	kafkago "github.com/segmentio/kafka-go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// EventTypeHeader repeats the event type outside the payload so consumers
// can filter without decoding.
const EventTypeHeader = "event-type"

// AuthEventsKafka publishes auth events as google.protobuf.Struct values
// {type, pid, at} keyed by pid.
type AuthEventsKafka struct {
	p *Producer
}

func NewAuthEventsKafka(p *Producer) *AuthEventsKafka { return &AuthEventsKafka{p: p} }

var _ kafka.AuthEvents = (*AuthEventsKafka)(nil)

func (e *AuthEventsKafka) PublishAuthEvent(ctx context.Context, eventType, pid string, at time.Time) error {
	msg, err := encodeAuthEvent(AuthEventRecord{Type: eventType, PID: pid, At: at})
	if err != nil {
		return retry.Permanent(err)
	}
	return e.p.PublishProto(ctx, []byte(pid), msg,
		kafkago.Header{Key: EventTypeHeader, Value: []byte(eventType)})
}

type AuthEventRecord struct {
	Type string
	PID  string
	At   time.Time
}

func encodeAuthEvent(r AuthEventRecord) (*structpb.Struct, error) {
	if r.Type == "" || r.PID == "" {
		return nil, errors.New("auth event: missing type or pid")
	}
	msg, err := structpb.NewStruct(map[string]any{
		"type": r.Type,
		"pid":  r.PID,
		"at":   r.At.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("build auth event: %w", err)
	}
	return msg, nil
}

// DecodeAuthEvent parses a message value written by PublishAuthEvent.
func DecodeAuthEvent(value []byte) (AuthEventRecord, error) {
	var m structpb.Struct
	if err := proto.Unmarshal(value, &m); err != nil {
		return AuthEventRecord{}, fmt.Errorf("auth event: %w", err)
	}
	fields := m.GetFields()
	rec := AuthEventRecord{
		Type: fields["type"].GetStringValue(),
		PID:  fields["pid"].GetStringValue(),
	}
	if rec.Type == "" || rec.PID == "" {
		return AuthEventRecord{}, errors.New("auth event: missing type or pid")
	}
	at, err := time.Parse(time.RFC3339Nano, fields["at"].GetStringValue())
	if err != nil {
		return AuthEventRecord{}, fmt.Errorf("auth event: bad timestamp: %w", err)
	}
	rec.At = at
	return rec, nil
}
