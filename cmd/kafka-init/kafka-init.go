package main

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/NordCoder/authgate/internal/obs"
	kafkarepo "github.com/NordCoder/authgate/internal/repository/kafka"

	"go.uber.org/zap"
)

// kafka-init creates the auth events topic. It reads the same EVENTS_*
// variables as auth-api.
func main() {
	logger, err := obs.NewLogger(obs.LogConfig{Level: env("LOG_LEVEL", "info"), App: "authgate", Component: "kafka-init"})
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	brokers := strings.Split(env("EVENTS_BROKERS", "kafka:9092"), ",")
	topic := env("EVENTS_TOPIC", "auth-events")

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := kafkarepo.EnsureTopic(ctx, brokers, kafkarepo.TopicSpec{
		Name:              topic,
		NumPartitions:     envInt("EVENTS_PARTITIONS", 1),
		ReplicationFactor: envInt("EVENTS_REPLICATION_FACTOR", 1),
		MaxWait:           30 * time.Second,
	}, logger); err != nil {
		logger.Fatal("ensure topic", zap.String("topic", topic), zap.Error(err))
	}
	logger.Info("kafka-init ok", zap.String("topic", topic))
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, _ := strconv.Atoi(v); n > 0 {
			return n
		}
	}
	return def
}
