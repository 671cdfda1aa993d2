package main

import (
	"context"

	config "github.com/NordCoder/authgate/internal/config/auth-api"
	domainoutbox "github.com/NordCoder/authgate/internal/domain/outbox"
	"github.com/NordCoder/authgate/internal/obs/retry"
	"github.com/NordCoder/authgate/internal/outbox"
	kafkarepo "github.com/NordCoder/authgate/internal/repository/kafka"
	pg "github.com/NordCoder/authgate/internal/repository/postgres"

	"go.uber.org/zap"
)

// eventsHandle owns the outbox relay. With events disabled every method
// is a no-op and Repo is nil.
type eventsHandle struct {
	Repo     domainoutbox.Repository
	producer *kafkarepo.Producer
	runner   *outbox.Runner
}

func initEvents(ctx context.Context, cfg *config.Config, logger *zap.Logger, db *pg.DB) (*eventsHandle, error) {
	ev := cfg.Events
	if !ev.Enable {
		logger.Info("auth events disabled")
		return &eventsHandle{}, nil
	}

	if err := kafkarepo.EnsureTopic(ctx, ev.Brokers, kafkarepo.TopicSpec{
		Name:              ev.Topic,
		NumPartitions:     ev.Partitions,
		ReplicationFactor: ev.ReplicationFactor,
	}, logger); err != nil {
		logger.Warn("ensure topic", zap.String("topic", ev.Topic), zap.Error(err))
	}

	producer := kafkarepo.NewProducer(ev.Brokers, ev.Topic).WithLogger(logger)
	repo := pg.NewOutboxRepo(db)
	dispatch := outbox.MakeGlobalOutboxHandler(kafkarepo.NewAuthEventsKafka(producer), retry.AuthEventPublishPolicy(logger))

	return &eventsHandle{
		Repo:     repo,
		producer: producer,
		runner: outbox.NewOutboxRunner(logger.Named("outbox"), repo, dispatch,
			ev.Workers, ev.BatchSize, ev.WaitTime, ev.InProgressTTL),
	}, nil
}

// Start launches the relay; the returned channel closes once it stopped.
func (e *eventsHandle) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	if e.runner == nil {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		e.runner.Run(ctx)
	}()
	return done
}

func (e *eventsHandle) Close() {
	if e.producer != nil {
		_ = e.producer.Close()
	}
}
